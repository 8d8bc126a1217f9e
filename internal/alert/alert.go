// Package alert delivers notifications to webhook, telegram and log channels
package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gridwalls/internal/core"
	"gridwalls/pkg/concurrency"
)

type AlertLevel string

const (
	Info     AlertLevel = "INFO"
	Warning  AlertLevel = "WARNING"
	Error    AlertLevel = "ERROR"
	Critical AlertLevel = "CRITICAL"
)

const defaultSendTimeout = 10 * time.Second

type AlertPayload struct {
	Level     AlertLevel
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// Text renders the payload as plain text. Fields are sorted by key.
func (p AlertPayload) Text() string {
	var b strings.Builder
	if p.Title != "" {
		b.WriteString(p.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(p.Message)

	if len(p.Fields) > 0 {
		keys := make([]string, 0, len(p.Fields))
		for k := range p.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n- %s: %s", k, p.Fields[k])
		}
	}
	return b.String()
}

type AlertChannel interface {
	Send(ctx context.Context, alert AlertPayload) error
	Name() string
}

// AlertManager fans a payload out to every channel on a worker pool and
// waits for all deliveries. Delivery errors are logged, never returned.
type AlertManager struct {
	channels    []AlertChannel
	pool        *concurrency.WorkerPool
	logger      core.ILogger
	sendTimeout time.Duration
	mu          sync.RWMutex
}

var _ core.INotifier = (*AlertManager)(nil)

func NewAlertManager(pool *concurrency.WorkerPool, logger core.ILogger) *AlertManager {
	return &AlertManager{
		channels:    make([]AlertChannel, 0),
		pool:        pool,
		logger:      logger.WithField("component", "alert_manager"),
		sendTimeout: defaultSendTimeout,
	}
}

func (am *AlertManager) AddChannel(ch AlertChannel) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.channels = append(am.channels, ch)
	am.logger.Info("Added alert channel", "name", ch.Name())
}

// Channels returns the names of the registered channels
func (am *AlertManager) Channels() []string {
	am.mu.RLock()
	defer am.mu.RUnlock()
	names := make([]string, 0, len(am.channels))
	for _, ch := range am.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Notify sends a plain message at info level
func (am *AlertManager) Notify(ctx context.Context, message string) {
	am.Alert(ctx, "", message, Info, nil)
}

func (am *AlertManager) Alert(ctx context.Context, title, message string, level AlertLevel, fields map[string]string) {
	payload := AlertPayload{
		Level:     level,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	am.logger.Debug("Triggering alert", "title", title, "level", level)

	am.mu.RLock()
	channels := make([]AlertChannel, len(am.channels))
	copy(channels, am.channels)
	am.mu.RUnlock()

	tasks := make([]func(), 0, len(channels))
	for _, ch := range channels {
		c := ch
		tasks = append(tasks, func() {
			timeoutCtx, cancel := context.WithTimeout(ctx, am.sendTimeout)
			defer cancel()

			if err := c.Send(timeoutCtx, payload); err != nil {
				am.logger.Error("Failed to send alert", "channel", c.Name(), "error", err)
			}
		})
	}
	am.pool.RunAll(tasks...)
}
