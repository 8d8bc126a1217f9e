// Package monitor watches cycle health and market prices
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridwalls/internal/core"
	"gridwalls/pkg/telemetry"
)

const (
	DefaultErrorThreshold = 5
	DefaultErrorInterval  = 300 * time.Second

	alertSubject = "Trading Bot Alert"
)

// ErrorMonitor counts errors in bursts and sends one alert per threshold
// errors. A burst ends when an error arrives interval or more after the
// first error of the current burst.
type ErrorMonitor struct {
	threshold int
	interval  time.Duration
	notifier  core.INotifier
	logger    core.ILogger
	now       func() time.Time

	mu            sync.Mutex
	count         int
	lastErrorTime time.Time
}

var _ core.IErrorMonitor = (*ErrorMonitor)(nil)

// Option configures an ErrorMonitor
type Option func(*ErrorMonitor)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *ErrorMonitor) { m.now = now }
}

// NewErrorMonitor creates a monitor. Non-positive values select the defaults.
func NewErrorMonitor(threshold int, interval time.Duration, notifier core.INotifier, logger core.ILogger, opts ...Option) *ErrorMonitor {
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}
	if interval <= 0 {
		interval = DefaultErrorInterval
	}
	m := &ErrorMonitor{
		threshold: threshold,
		interval:  interval,
		notifier:  notifier,
		logger:    logger.WithField("component", "error_monitor"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordSuccess clears the current burst
func (m *ErrorMonitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = 0
	m.lastErrorTime = time.Time{}
}

// RecordError counts an error and alerts once the burst reaches the threshold
func (m *ErrorMonitor) RecordError(ctx context.Context, message string) {
	m.mu.Lock()
	now := m.now()
	if m.lastErrorTime.IsZero() || now.Sub(m.lastErrorTime) >= m.interval {
		m.count = 1
		m.lastErrorTime = now
	} else {
		m.count++
	}

	fire := m.count >= m.threshold
	if fire {
		m.count = 0
	}
	count := m.count
	m.mu.Unlock()

	if !fire {
		m.logger.Debug("Error recorded", "count", count, "threshold", m.threshold)
		return
	}

	m.logger.Warn("Error threshold reached, sending alert", "threshold", m.threshold)
	telemetry.GetGlobalMetrics().RecordAlert(ctx)
	m.notifier.Notify(ctx, FormatAlert(message))
}

// Count returns the errors counted in the current burst
func (m *ErrorMonitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// FormatAlert renders the alert text sent for an error burst
func FormatAlert(message string) string {
	return fmt.Sprintf("%s\n\nAn error occurred in the trading bot:\n\n%s", alertSubject, message)
}
