package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names
const (
	MetricCyclesTotal      = "gridwalls_cycles_total"
	MetricCycleDuration    = "gridwalls_cycle_duration_seconds"
	MetricActionsTotal     = "gridwalls_actions_total"
	MetricVolumeTotal      = "gridwalls_volume_total"
	MetricAlertsTotal      = "gridwalls_alerts_total"
	MetricPairsSkipped     = "gridwalls_pairs_skipped_total"
	MetricHoldings         = "gridwalls_holdings"
	MetricPotentialSpend   = "gridwalls_potential_spend"
	MetricRealizedProfit   = "gridwalls_realized_profit"
	MetricUnitPrice        = "gridwalls_unit_price"
	MetricLastCycleSuccess = "gridwalls_last_cycle_success_timestamp"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	CyclesTotal      metric.Int64Counter
	CycleDuration    metric.Float64Histogram
	ActionsTotal     metric.Int64Counter
	VolumeTotal      metric.Float64Counter
	AlertsTotal      metric.Int64Counter
	PairsSkipped     metric.Int64Counter
	Holdings         metric.Float64ObservableGauge
	PotentialSpend   metric.Float64ObservableGauge
	RealizedProfit   metric.Float64ObservableGauge
	UnitPrice        metric.Float64ObservableGauge
	LastSuccessGauge metric.Int64ObservableGauge

	// State for observable gauges, keyed by pair
	mu                sync.RWMutex
	holdingsMap       map[string]float64
	potentialSpendMap map[string]float64
	realizedProfitMap map[string]float64
	unitPriceMap      map[string]float64
	lastSuccessUnix   int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder. Until Setup runs the
// instruments record into a no-op meter.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			holdingsMap:       make(map[string]float64),
			potentialSpendMap: make(map[string]float64),
			realizedProfitMap: make(map[string]float64),
			unitPriceMap:      make(map[string]float64),
		}
		_ = globalMetrics.InitMetrics(noop.NewMeterProvider().Meter("noop"))
	})
	return globalMetrics
}

func (m *MetricsHolder) gaugeCallback(values map[string]float64) metric.Float64Callback {
	return func(ctx context.Context, obs metric.Float64Observer) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for pair, val := range values {
			obs.Observe(val, metric.WithAttributes(attribute.String("pair", pair)))
		}
		return nil
	}
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.CyclesTotal, err = meter.Int64Counter(MetricCyclesTotal, metric.WithDescription("Evaluation cycles by outcome"))
	if err != nil {
		return err
	}

	m.CycleDuration, err = meter.Float64Histogram(MetricCycleDuration, metric.WithDescription("Duration of one evaluation cycle"), metric.WithUnit("s"))
	if err != nil {
		return err
	}

	m.ActionsTotal, err = meter.Int64Counter(MetricActionsTotal, metric.WithDescription("Actions decided by pair and side"))
	if err != nil {
		return err
	}

	m.VolumeTotal, err = meter.Float64Counter(MetricVolumeTotal, metric.WithDescription("Traded volume in base asset"))
	if err != nil {
		return err
	}

	m.AlertsTotal, err = meter.Int64Counter(MetricAlertsTotal, metric.WithDescription("Error alerts sent"))
	if err != nil {
		return err
	}

	m.PairsSkipped, err = meter.Int64Counter(MetricPairsSkipped, metric.WithDescription("Walls skipped for missing prices"))
	if err != nil {
		return err
	}

	// Observables
	m.Holdings, err = meter.Float64ObservableGauge(MetricHoldings, metric.WithDescription("Current holdings replayed from the execution log"),
		metric.WithFloat64Callback(m.gaugeCallback(m.holdingsMap)))
	if err != nil {
		return err
	}

	m.PotentialSpend, err = meter.Float64ObservableGauge(MetricPotentialSpend, metric.WithDescription("Quote capital needed to fill the buy ladder"),
		metric.WithFloat64Callback(m.gaugeCallback(m.potentialSpendMap)))
	if err != nil {
		return err
	}

	m.RealizedProfit, err = meter.Float64ObservableGauge(MetricRealizedProfit, metric.WithDescription("Sell notional minus buy notional"),
		metric.WithFloat64Callback(m.gaugeCallback(m.realizedProfitMap)))
	if err != nil {
		return err
	}

	m.UnitPrice, err = meter.Float64ObservableGauge(MetricUnitPrice, metric.WithDescription("Last evaluated unit price"),
		metric.WithFloat64Callback(m.gaugeCallback(m.unitPriceMap)))
	if err != nil {
		return err
	}

	m.LastSuccessGauge, err = meter.Int64ObservableGauge(MetricLastCycleSuccess, metric.WithDescription("Unix time of the last successful cycle"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			if m.lastSuccessUnix > 0 {
				obs.Observe(m.lastSuccessUnix)
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// RecordCycle counts a finished cycle
func (m *MetricsHolder) RecordCycle(ctx context.Context, success bool, seconds float64, finishedUnix int64) {
	outcome := "failure"
	if success {
		outcome = "success"
		m.mu.Lock()
		m.lastSuccessUnix = finishedUnix
		m.mu.Unlock()
	}
	m.CyclesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.CycleDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAction counts a decided action and its volume
func (m *MetricsHolder) RecordAction(ctx context.Context, pair, side string, amount float64) {
	attrs := metric.WithAttributes(attribute.String("pair", pair), attribute.String("side", side))
	m.ActionsTotal.Add(ctx, 1, attrs)
	m.VolumeTotal.Add(ctx, amount, attrs)
}

func (m *MetricsHolder) RecordAlert(ctx context.Context) {
	m.AlertsTotal.Add(ctx, 1)
}

func (m *MetricsHolder) RecordSkippedPair(ctx context.Context, pair string) {
	m.PairsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
}

// Helpers to update observable state

func (m *MetricsHolder) SetHoldings(pair string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdingsMap[pair] = value
}

func (m *MetricsHolder) SetPotentialSpend(pair string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.potentialSpendMap[pair] = value
}

func (m *MetricsHolder) SetRealizedProfit(pair string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realizedProfitMap[pair] = value
}

func (m *MetricsHolder) SetUnitPrice(pair string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unitPriceMap[pair] = value
}

func (m *MetricsHolder) GetHoldings() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64)
	for k, v := range m.holdingsMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetPotentialSpend() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64)
	for k, v := range m.potentialSpendMap {
		res[k] = v
	}
	return res
}

// LastCycleSuccess returns the unix time of the last successful cycle, 0 if none
func (m *MetricsHolder) LastCycleSuccess() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSuccessUnix
}
