// Package logging provides structured logging on zap, bridged into OpenTelemetry
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gridwalls/internal/core"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultServiceName = "gridwalls"

// ZapLogger implements the ILogger interface using zap.Logger
type ZapLogger struct {
	logger *zap.Logger
}

type options struct {
	json        bool
	writer      io.Writer
	serviceName string
	bridge      bool
}

// Option configures NewZapLogger
type Option func(*options)

// WithJSON switches the encoder from console to JSON
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithWriter redirects output, stdout by default
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithServiceName sets the instrumentation scope of the OTel bridge
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithoutBridge disables the OTel log bridge
func WithoutBridge() Option {
	return func(o *options) { o.bridge = false }
}

// ParseLevel parses a log level string
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zap.DebugLevel, nil
	case "INFO", "":
		return zap.InfoLevel, nil
	case "WARN", "WARNING":
		return zap.WarnLevel, nil
	case "ERROR":
		return zap.ErrorLevel, nil
	case "FATAL":
		return zap.FatalLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// NewZapLogger creates a new ZapLogger instance
func NewZapLogger(levelStr string, opts ...Option) (*ZapLogger, error) {
	o := options{writer: os.Stdout, serviceName: defaultServiceName, bridge: true}
	for _, opt := range opts {
		opt(&o)
	}

	zapLevel, err := ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if o.json {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	combined := zapcore.NewCore(encoder, zapcore.AddSync(o.writer), zapLevel)
	if o.bridge {
		otelCore := otelzap.NewCore(o.serviceName, otelzap.WithLoggerProvider(global.GetLoggerProvider()))
		combined = zapcore.NewTee(combined, otelCore)
	}

	return &ZapLogger{
		logger: zap.New(combined, zap.AddCaller(), zap.AddCallerSkip(1)),
	}, nil
}

// convertToZapFields converts variadic key/value pairs to zap fields. A
// trailing key without a value is dropped.
func (l *ZapLogger) convertToZapFields(fields []interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		if err, isErr := fields[i+1].(error); isErr {
			zapFields = append(zapFields, zap.NamedError(key, err))
			continue
		}
		zapFields = append(zapFields, zap.Any(key, fields[i+1]))
	}
	return zapFields
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Debug(msg, l.convertToZapFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields ...interface{}) {
	l.logger.Info(msg, l.convertToZapFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Warn(msg, l.convertToZapFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields ...interface{}) {
	l.logger.Error(msg, l.convertToZapFields(fields)...)
}

func (l *ZapLogger) Fatal(msg string, fields ...interface{}) {
	l.logger.Fatal(msg, l.convertToZapFields(fields)...)
}

func (l *ZapLogger) WithField(key string, value interface{}) core.ILogger {
	return &ZapLogger{
		logger: l.logger.With(zap.Any(key, value)),
	}
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) core.ILogger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &ZapLogger{
		logger: l.logger.With(zapFields...),
	}
}

// Sync flushes any buffered log entries
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// NewNop returns a logger that discards everything
func NewNop() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}
