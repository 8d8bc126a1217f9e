// Package health aggregates component health checks
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gridwalls/internal/core"
)

const defaultCheckTimeout = 2 * time.Second

// Check reports a component failure as an error
type Check func(ctx context.Context) error

// HealthManager aggregates health status from different components
type HealthManager struct {
	logger  core.ILogger
	timeout time.Duration
	mu      sync.RWMutex
	checks  map[string]Check
}

// NewHealthManager creates a new health manager
func NewHealthManager(logger core.ILogger) *HealthManager {
	hm := &HealthManager{
		timeout: defaultCheckTimeout,
		checks:  make(map[string]Check),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds a new health check for a component
func (hm *HealthManager) Register(component string, check Check) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

// Components returns the registered component names, sorted
func (hm *HealthManager) Components() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStatus runs every check and returns the status per component
func (hm *HealthManager) GetStatus(ctx context.Context) map[string]string {
	hm.mu.RLock()
	checks := make(map[string]Check, len(hm.checks))
	for k, v := range hm.checks {
		checks[k] = v
	}
	hm.mu.RUnlock()

	status := make(map[string]string, len(checks))
	for component, check := range checks {
		if err := hm.run(ctx, check); err != nil {
			status[component] = "Unhealthy: " + err.Error()
			if hm.logger != nil {
				hm.logger.Warn("Health check failed", "check", component, "error", err)
			}
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy returns true if all components are healthy
func (hm *HealthManager) IsHealthy(ctx context.Context) bool {
	for _, s := range hm.GetStatus(ctx) {
		if s != "Healthy" {
			return false
		}
	}
	return true
}

func (hm *HealthManager) run(ctx context.Context, check Check) error {
	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()
	return check(ctx)
}

// Pinger is implemented by stores
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck fails when the store does not answer a ping
func StoreCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// FreshnessCheck fails when the last success, as unix seconds, is older
// than maxAge. No success yet is healthy during the first maxAge after
// startedAt.
func FreshnessCheck(lastSuccess func() int64, maxAge time.Duration, startedAt time.Time, now func() time.Time) Check {
	return func(context.Context) error {
		last := lastSuccess()
		if last == 0 {
			if now().Sub(startedAt) > maxAge {
				return fmt.Errorf("no successful cycle since start")
			}
			return nil
		}
		if age := now().Sub(time.Unix(last, 0)); age > maxAge {
			return fmt.Errorf("last successful cycle %s ago", age.Truncate(time.Second))
		}
		return nil
	}
}
