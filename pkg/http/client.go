// Package http provides an HTTP fetcher with bounded retries
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gridwalls/internal/core"
	apperrors "gridwalls/pkg/errors"
	"gridwalls/pkg/retry"
	"gridwalls/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// APIError represents a non 2xx API response
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Transient reports whether the response is worth retrying
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is a network failure or a retryable status
func IsTransient(err error) bool {
	if errors.Is(err, apperrors.ErrNetwork) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return false
}

// Fetcher issues GET requests and retries transient failures with a fixed delay
type Fetcher struct {
	client *http.Client
	policy retry.Policy
	logger core.ILogger

	tracer      trace.Tracer
	reqCounter  metric.Int64Counter
	errCounter  metric.Int64Counter
	latencyHist metric.Float64Histogram
}

// NewFetcher creates a fetcher using the given retry policy
func NewFetcher(policy retry.Policy, logger core.ILogger) *Fetcher {
	meter := telemetry.GetMeter("http-fetcher")

	reqCounter, _ := meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP attempts"))
	errCounter, _ := meter.Int64Counter("http_errors_total",
		metric.WithDescription("Total number of failed HTTP attempts"))
	latencyHist, _ := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP attempt latency in seconds"))

	return &Fetcher{
		client:      &http.Client{},
		policy:      policy,
		logger:      logger.WithField("component", "http_fetcher"),
		tracer:      telemetry.GetTracer("http-fetcher"),
		reqCounter:  reqCounter,
		errCounter:  errCounter,
		latencyHist: latencyHist,
	}
}

// Fetch returns the body of a successful GET of url. Every attempt is bounded
// by timeout. After the last attempt fails its error is returned.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, span := f.tracer.Start(ctx, "GET "+url, trace.WithAttributes(
		attribute.String("http.method", http.MethodGet),
		attribute.String("http.url", url),
	))
	defer span.End()

	onRetry := func(attempt int, err error) {
		f.logger.Warn("Fetch failed, retrying",
			"url", url,
			"attempt", attempt,
			"max_attempts", f.policy.MaxAttempts,
			"delay", f.policy.Delay.String(),
			"error", err)
	}

	body, err := retry.Do(ctx, f.policy, IsTransient, onRetry, func(ctx context.Context) ([]byte, error) {
		return f.attempt(ctx, url, timeout)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return body, nil
}

func (f *Fetcher) attempt(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("method", req.Method), attribute.String("host", req.URL.Host))
	f.reqCounter.Add(ctx, 1, attrs)
	defer func() {
		f.latencyHist.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	resp, err := f.client.Do(req)
	if err != nil {
		f.errCounter.Add(ctx, 1, attrs)
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.errCounter.Add(ctx, 1, attrs)
		return nil, fmt.Errorf("%w: read response body: %v", apperrors.ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		f.errCounter.Add(ctx, 1, attrs)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, nil
}
