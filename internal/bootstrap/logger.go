package bootstrap

import (
	"gridwalls/pkg/logging"
)

// InitLogger builds the process logger from the app section
func InitLogger(cfg *Config) (*logging.ZapLogger, error) {
	opts := []logging.Option{logging.WithServiceName(cfg.App.Name)}
	if cfg.App.LogFormat == "json" {
		opts = append(opts, logging.WithJSON())
	}
	return logging.NewZapLogger(cfg.App.LogLevel, opts...)
}
