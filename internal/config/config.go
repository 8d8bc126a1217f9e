// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gridwalls/internal/core"
	apperrors "gridwalls/pkg/errors"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App       AppConfig       `yaml:"app"`
	Storage   StorageConfig   `yaml:"storage"`
	Prices    PricesConfig    `yaml:"prices"`
	Loop      LoopConfig      `yaml:"loop"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Walls     []WallSeed      `yaml:"walls"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // console or json
}

// StorageConfig selects the wall and execution store
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or memory
	DSN    Secret `yaml:"dsn"`
}

// PricesConfig configures the market price source
type PricesConfig struct {
	BaseURL     string        `yaml:"base_url"`
	VSCurrency  string        `yaml:"vs_currency"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// LoopConfig contains the evaluation cadence
type LoopConfig struct {
	Interval        time.Duration `yaml:"interval"`
	OrdersPerSecond float64       `yaml:"orders_per_second"` // 0 is unlimited
}

// MonitorConfig contains the error burst thresholds
type MonitorConfig struct {
	ErrorThreshold int           `yaml:"error_threshold"`
	ErrorInterval  time.Duration `yaml:"error_interval"`
}

// AlertsConfig contains notification channels
type AlertsConfig struct {
	WebhookURL       Secret  `yaml:"webhook_url"`
	TelegramBotToken Secret  `yaml:"telegram_bot_token"`
	TelegramChatID   string  `yaml:"telegram_chat_id"`
	RatePerSecond    float64 `yaml:"rate_per_second"`
	Workers          int     `yaml:"workers"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
	ExportTraces  bool `yaml:"export_traces"`
}

// WallSeed is a wall definition upserted into an empty store at startup.
// Numbers are strings so they keep their exact decimal value.
type WallSeed struct {
	Pair       string   `yaml:"pair"`
	BidPrice   string   `yaml:"bid_price"`
	AskPrice   string   `yaml:"ask_price"`
	Quantities []string `yaml:"quantities"`
	Keep       string   `yaml:"keep"`
	Spread     string   `yaml:"spread"`
	Selloff    string   `yaml:"selloff"`
	SellFirst  bool     `yaml:"sell_first"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. Fields missing from the file keep their DefaultConfig value.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML content
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Alerts.WebhookURL == "" {
		config.Alerts.WebhookURL = Secret(os.Getenv("WEBHOOK_URL"))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	checks := []func() error{
		c.validateAppConfig,
		c.validateStorageConfig,
		c.validatePricesConfig,
		c.validateLoopConfig,
		c.validateMonitorConfig,
		c.validateAlertsConfig,
		c.validateTelemetryConfig,
		c.validateWalls,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%w: configuration validation failed:\n%s", apperrors.ErrInvalidConfig, strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.App.LogLevel)) {
		return ValidationError{
			Field:   "app.log_level",
			Value:   c.App.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	if c.App.LogFormat != "" && !contains([]string{"console", "json"}, c.App.LogFormat) {
		return ValidationError{
			Field:   "app.log_format",
			Value:   c.App.LogFormat,
			Message: "must be one of: console, json",
		}
	}
	return nil
}

func (c *Config) validateStorageConfig() error {
	validDrivers := []string{"sqlite", "postgres", "memory"}
	if !contains(validDrivers, c.Storage.Driver) {
		return ValidationError{
			Field:   "storage.driver",
			Value:   c.Storage.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validDrivers, ", ")),
		}
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return ValidationError{
			Field:   "storage.dsn",
			Message: "dsn is required for " + c.Storage.Driver,
		}
	}
	return nil
}

func (c *Config) validatePricesConfig() error {
	if c.Prices.BaseURL == "" {
		return ValidationError{Field: "prices.base_url", Message: "base url is required"}
	}
	if c.Prices.VSCurrency == "" {
		return ValidationError{Field: "prices.vs_currency", Message: "quote currency is required"}
	}
	if c.Prices.MaxAttempts < 1 {
		return ValidationError{
			Field:   "prices.max_attempts",
			Value:   c.Prices.MaxAttempts,
			Message: "must be at least 1",
		}
	}
	if c.Prices.Timeout <= 0 {
		return ValidationError{Field: "prices.timeout", Value: c.Prices.Timeout, Message: "must be positive"}
	}
	if c.Prices.RetryDelay < 0 {
		return ValidationError{Field: "prices.retry_delay", Value: c.Prices.RetryDelay, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateLoopConfig() error {
	if c.Loop.Interval <= 0 {
		return ValidationError{Field: "loop.interval", Value: c.Loop.Interval, Message: "must be positive"}
	}
	if c.Loop.OrdersPerSecond < 0 {
		return ValidationError{Field: "loop.orders_per_second", Value: c.Loop.OrdersPerSecond, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateMonitorConfig() error {
	if c.Monitor.ErrorThreshold < 1 {
		return ValidationError{
			Field:   "monitor.error_threshold",
			Value:   c.Monitor.ErrorThreshold,
			Message: "must be at least 1",
		}
	}
	if c.Monitor.ErrorInterval <= 0 {
		return ValidationError{Field: "monitor.error_interval", Value: c.Monitor.ErrorInterval, Message: "must be positive"}
	}
	return nil
}

func (c *Config) validateAlertsConfig() error {
	if (c.Alerts.TelegramBotToken == "") != (c.Alerts.TelegramChatID == "") {
		return ValidationError{
			Field:   "alerts.telegram_chat_id",
			Value:   c.Alerts.TelegramChatID,
			Message: "telegram needs both a bot token and a chat id",
		}
	}
	if c.Alerts.RatePerSecond < 0 {
		return ValidationError{Field: "alerts.rate_per_second", Value: c.Alerts.RatePerSecond, Message: "must not be negative"}
	}
	if c.Alerts.Workers < 1 {
		return ValidationError{Field: "alerts.workers", Value: c.Alerts.Workers, Message: "must be at least 1"}
	}
	return nil
}

func (c *Config) validateTelemetryConfig() error {
	if c.Telemetry.EnableMetrics && (c.Telemetry.MetricsPort < 1 || c.Telemetry.MetricsPort > 65535) {
		return ValidationError{
			Field:   "telemetry.metrics_port",
			Value:   c.Telemetry.MetricsPort,
			Message: "must be a valid port",
		}
	}
	return nil
}

func (c *Config) validateWalls() error {
	for i, seed := range c.Walls {
		if _, err := seed.WallConfig(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("walls[%d]", i),
				Value:   seed.Pair,
				Message: err.Error(),
			}
		}
	}
	return nil
}

// WallConfig converts the seed into a wall definition
func (s WallSeed) WallConfig() (core.WallConfig, error) {
	pair, err := core.ParsePair(s.Pair)
	if err != nil {
		return core.WallConfig{}, err
	}

	wall := core.WallConfig{Pair: pair, SellFirst: s.SellFirst}
	fields := []struct {
		name     string
		raw      string
		optional bool
		dst      *decimal.Decimal
	}{
		{"bid_price", s.BidPrice, false, &wall.BidPrice},
		{"ask_price", s.AskPrice, false, &wall.AskPrice},
		{"keep", s.Keep, true, &wall.Keep},
		{"spread", s.Spread, false, &wall.Spread},
		{"selloff", s.Selloff, true, &wall.Selloff},
	}
	for _, f := range fields {
		if f.raw == "" && f.optional {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return core.WallConfig{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	if len(s.Quantities) == 0 {
		return core.WallConfig{}, fmt.Errorf("quantities: at least one level is required")
	}
	for i, raw := range s.Quantities {
		q, err := decimal.NewFromString(raw)
		if err != nil {
			return core.WallConfig{}, fmt.Errorf("quantities[%d]: %w", i, err)
		}
		wall.Quantities = append(wall.Quantities, q)
	}

	return wall, nil
}

// String returns a YAML representation with secrets redacted
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the configuration used when a field is not set
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:      "gridwalls",
			LogLevel:  "INFO",
			LogFormat: "console",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "trading.sqlite",
		},
		Prices: PricesConfig{
			BaseURL:     "https://api.coingecko.com/api/v3",
			VSCurrency:  "usd",
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
			RetryDelay:  5 * time.Second,
		},
		Loop: LoopConfig{
			Interval:        60 * time.Second,
			OrdersPerSecond: 1,
		},
		Monitor: MonitorConfig{
			ErrorThreshold: 5,
			ErrorInterval:  300 * time.Second,
		},
		Alerts: AlertsConfig{
			RatePerSecond: 1,
			Workers:       2,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
