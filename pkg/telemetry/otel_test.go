package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetrySetup(t *testing.T) {
	tel, err := Setup("test-service", Options{})
	require.NoError(t, err)

	assert.NotNil(t, GetTracer("test-tracer"))
	assert.NotNil(t, GetMeter("test-meter"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_HandlerExposesDomainMetrics(t *testing.T) {
	tel, err := Setup("test-service", Options{})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	m := GetGlobalMetrics()
	m.SetHoldings("near/nano", 42)
	m.RecordCycle(context.Background(), true, 0.5, time.Now().Unix())
	m.RecordAction(context.Background(), "near/nano", "buy", 10)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, MetricHoldings)
	assert.Contains(t, text, `pair="near/nano"`)
	assert.Contains(t, text, MetricCyclesTotal)
	assert.Contains(t, text, MetricActionsTotal)
}

func TestMetricsHolder_StateSnapshots(t *testing.T) {
	m := GetGlobalMetrics()
	m.SetPotentialSpend("tst/nano", 12.5)

	snapshot := m.GetPotentialSpend()
	assert.Equal(t, 12.5, snapshot["tst/nano"])

	// snapshot is a copy
	snapshot["tst/nano"] = 0
	assert.Equal(t, 12.5, m.GetPotentialSpend()["tst/nano"])
}
