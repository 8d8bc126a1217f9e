// Package metrics serves the Prometheus scrape endpoint and health probes
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"gridwalls/internal/core"
	"gridwalls/internal/infrastructure/health"
	"gridwalls/pkg/telemetry"
)

// Server handles Prometheus metrics export and health checks
type Server struct {
	port    int
	metrics http.Handler
	health  *health.HealthManager
	logger  core.ILogger
	srv     *http.Server
	now     func() time.Time

	priceUpdated func() time.Time
}

// NewServer creates a new metrics server. A nil health manager serves an
// always healthy /health.
func NewServer(port int, metricsHandler http.Handler, hm *health.HealthManager, logger core.ILogger) *Server {
	if hm == nil {
		hm = health.NewHealthManager(logger)
	}
	return &Server{
		port:    port,
		metrics: metricsHandler,
		health:  hm,
		logger:  logger.WithField("component", "metrics_server"),
		now:     time.Now,
	}
}

// WithPriceUpdates reports the last price fetch time on /status
func (s *Server) WithPriceUpdates(lastUpdate func() time.Time) *Server {
	s.priceUpdated = lastUpdate
	return s
}

// Handler returns the routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Start binds the port and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("Starting metrics server", "port", s.port)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping metrics server")
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Time       time.Time         `json:"time"`
	Components map[string]string `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := s.health.GetStatus(r.Context())
	resp := healthResponse{Status: "healthy", Time: s.now().UTC(), Components: components}
	code := http.StatusOK
	for _, st := range components {
		if st != "Healthy" {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, resp)
}

type statusResponse struct {
	LastCycleSuccess int64              `json:"last_cycle_success"`
	LastPriceUpdate  *time.Time         `json:"last_price_update,omitempty"`
	Holdings         map[string]float64 `json:"holdings"`
	PotentialSpend   map[string]float64 `json:"potential_spend"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m := telemetry.GetGlobalMetrics()
	resp := statusResponse{
		LastCycleSuccess: m.LastCycleSuccess(),
		Holdings:         m.GetHoldings(),
		PotentialSpend:   m.GetPotentialSpend(),
	}
	if s.priceUpdated != nil {
		if at := s.priceUpdated(); !at.IsZero() {
			at = at.UTC()
			resp.LastPriceUpdate = &at
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
