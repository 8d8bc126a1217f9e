package alert

import (
	"context"

	"gridwalls/internal/core"
)

// LogChannel writes notifications to the logger. It is the fallback when no
// remote channel is configured.
type LogChannel struct {
	logger core.ILogger
}

func NewLogChannel(logger core.ILogger) *LogChannel {
	return &LogChannel{logger: logger.WithField("component", "notification")}
}

func (l *LogChannel) Name() string {
	return "log"
}

func (l *LogChannel) Send(_ context.Context, alert AlertPayload) error {
	fields := []interface{}{"level", alert.Level, "message", alert.Text()}
	switch alert.Level {
	case Error, Critical:
		l.logger.Error("Notification", fields...)
	case Warning:
		l.logger.Warn("Notification", fields...)
	default:
		l.logger.Info("Notification", fields...)
	}
	return nil
}
