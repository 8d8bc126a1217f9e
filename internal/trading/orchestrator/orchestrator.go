// Package orchestrator runs the evaluation loop over every configured wall
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gridwalls/internal/core"
	"gridwalls/internal/trading/grid"
	apperrors "gridwalls/pkg/errors"
	"gridwalls/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultInterval is the pause after every cycle
const DefaultInterval = 60 * time.Second

// Dependencies are the collaborators of the loop
type Dependencies struct {
	Walls      core.IWallStore
	Executions core.IExecutionStore
	Prices     core.IPriceSource
	Executor   core.IOrderExecutor
	Notifier   core.INotifier
	Monitor    core.IErrorMonitor
}

// WallAction is an action taken for a wall during a cycle
type WallAction struct {
	WallID int64
	Pair   core.Pair
	Action core.Action
}

// CycleReport summarizes one evaluation cycle
type CycleReport struct {
	CycleID  string
	Walls    int
	Actions  []WallAction
	Skipped  []core.Pair
	Spend    map[string]decimal.Decimal // potential spend by quote token
	Duration time.Duration
}

// Orchestrator evaluates all walls once per interval, sequentially
type Orchestrator struct {
	deps     Dependencies
	interval time.Duration
	logger   core.ILogger
	now      func() time.Time

	tracer  trace.Tracer
	metrics *telemetry.MetricsHolder
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now for execution timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(deps Dependencies, interval time.Duration, logger core.ILogger, opts ...Option) *Orchestrator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	o := &Orchestrator{
		deps:     deps,
		interval: interval,
		logger:   logger.WithField("component", "orchestrator"),
		now:      time.Now,
		tracer:   telemetry.GetTracer("orchestrator"),
		metrics:  telemetry.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes cycles until ctx is cancelled. Cycle failures, panics
// included, go to the error monitor and never stop the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("Starting evaluation loop", "interval", o.interval.String())
	for {
		_, err := o.RunCycle(ctx)
		if ctx.Err() != nil {
			o.logger.Info("Evaluation loop stopped")
			return nil
		}
		if err != nil {
			o.logger.Error("Cycle failed", "error", err)
			o.deps.Monitor.RecordError(ctx, err.Error())
		} else {
			o.deps.Monitor.RecordSuccess()
		}

		if !o.sleep(ctx) {
			o.logger.Info("Evaluation loop stopped")
			return nil
		}
	}
}

func (o *Orchestrator) sleep(ctx context.Context) bool {
	timer := time.NewTimer(o.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type wallState struct {
	engine  *grid.Engine
	history []core.HistoryEntry
}

// RunCycle evaluates every wall once. Any error abandons the cycle and a
// panic is returned as an error.
func (o *Orchestrator) RunCycle(ctx context.Context) (report *CycleReport, err error) {
	start := o.now()
	report = &CycleReport{CycleID: uuid.NewString(), Spend: make(map[string]decimal.Decimal)}
	logger := o.logger.WithField("cycle_id", report.CycleID)

	ctx, span := o.tracer.Start(ctx, "Orchestrator.RunCycle", trace.WithAttributes(
		attribute.String("cycle_id", report.CycleID),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
		report.Duration = o.now().Sub(start)
		o.metrics.RecordCycle(ctx, err == nil, report.Duration.Seconds(), o.now().Unix())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	states, err := o.loadWalls(ctx)
	if err != nil {
		return report, err
	}
	report.Walls = len(states)
	if len(states) == 0 {
		logger.Debug("No walls configured")
		return report, nil
	}

	prices, err := o.deps.Prices.Prices(ctx, tokenIDs(states))
	if err != nil {
		return report, fmt.Errorf("fetch prices: %w", err)
	}

	for _, st := range states {
		wall := st.engine.Wall()
		pair := wall.Pair.String()

		unit, err := unitPrice(prices, wall.Pair)
		if err != nil {
			logger.Warn("Missing price, skipping wall", "wall_id", wall.ID, "pair", pair, "error", err)
			o.metrics.RecordSkippedPair(ctx, pair)
			report.Skipped = append(report.Skipped, wall.Pair)
			continue
		}
		o.metrics.SetUnitPrice(pair, unit.InexactFloat64())

		if action := st.engine.Step(unit, st.history); action != nil {
			if err := o.apply(ctx, logger, wall, *action, &st.history); err != nil {
				return report, err
			}
			report.Actions = append(report.Actions, WallAction{WallID: wall.ID, Pair: wall.Pair, Action: *action})
		}

		holdings := st.engine.Holdings(st.history)
		profit := grid.RealizedProfit(st.history)
		_, cost := st.engine.PotentialSpend(st.history)
		report.Spend[wall.Pair.Quote] = report.Spend[wall.Pair.Quote].Add(cost)

		o.metrics.SetHoldings(pair, holdings.InexactFloat64())
		o.metrics.SetRealizedProfit(pair, profit.InexactFloat64())
		o.metrics.SetPotentialSpend(pair, cost.InexactFloat64())

		logger.Debug("Wall evaluated",
			"wall_id", wall.ID,
			"pair", pair,
			"unit_price", unit.String(),
			"holdings", holdings.String(),
			"realized_profit", profit.String(),
			"potential_spend", cost.String())
	}

	logger.Info("Cycle finished",
		"walls", report.Walls,
		"actions", len(report.Actions),
		"skipped", len(report.Skipped))
	return report, nil
}

func (o *Orchestrator) loadWalls(ctx context.Context) ([]*wallState, error) {
	walls, err := o.deps.Walls.ListWalls(ctx)
	if err != nil {
		return nil, fmt.Errorf("list walls: %w", err)
	}

	states := make([]*wallState, 0, len(walls))
	for _, wall := range walls {
		eng, err := grid.NewEngine(wall)
		if err != nil {
			return nil, err
		}
		history, err := o.deps.Executions.History(ctx, wall.ID)
		if err != nil {
			return nil, fmt.Errorf("load history for wall %d: %w", wall.ID, err)
		}
		states = append(states, &wallState{engine: eng, history: history})
	}
	return states, nil
}

func (o *Orchestrator) apply(ctx context.Context, logger core.ILogger, wall core.WallConfig, action core.Action, history *[]core.HistoryEntry) error {
	if err := o.deps.Executor.Execute(ctx, wall, action); err != nil {
		return fmt.Errorf("execute %s for wall %d: %w", action.Side, wall.ID, err)
	}

	entry := action.Entry(o.now())
	if err := o.deps.Executions.Append(ctx, wall.ID, entry); err != nil {
		return fmt.Errorf("record %s for wall %d: %w", action.Side, wall.ID, err)
	}
	*history = append(*history, entry)

	o.metrics.RecordAction(ctx, wall.Pair.String(), string(action.Side), action.Amount.InexactFloat64())
	logger.Info("Action taken",
		"wall_id", wall.ID,
		"pair", wall.Pair.String(),
		"side", string(action.Side),
		"amount", action.Amount.String(),
		"price", action.Price.String())

	o.deps.Notifier.Notify(ctx, fmt.Sprintf("%s %s", wall.Pair, action))
	return nil
}

// ReportPotentialSpend logs the quote capital every wall still needs and
// the totals per quote token.
func (o *Orchestrator) ReportPotentialSpend(ctx context.Context) (map[string]decimal.Decimal, error) {
	states, err := o.loadWalls(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, st := range states {
		wall := st.engine.Wall()
		_, cost := st.engine.PotentialSpend(st.history)
		totals[wall.Pair.Quote] = totals[wall.Pair.Quote].Add(cost)
		o.metrics.SetPotentialSpend(wall.Pair.String(), cost.InexactFloat64())
		o.logger.Info("Potential spend",
			"token", wall.Pair.Base,
			"cost", cost.StringFixed(2),
			"quote", wall.Pair.Quote)
	}

	quotes := make([]string, 0, len(totals))
	for q := range totals {
		quotes = append(quotes, q)
	}
	sort.Strings(quotes)
	for _, q := range quotes {
		o.logger.Info("Total potential spend", "cost", totals[q].StringFixed(2), "quote", q)
	}
	return totals, nil
}

func tokenIDs(states []*wallState) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, st := range states {
		p := st.engine.Wall().Pair
		for _, id := range []string{p.Base, p.Quote} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// unitPrice is the base price expressed in the quote token. Missing or
// non positive prices wrap ErrPriceUnavailable.
func unitPrice(prices map[string]decimal.Decimal, pair core.Pair) (decimal.Decimal, error) {
	base, ok := prices[pair.Base]
	if !ok || !base.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrPriceUnavailable, pair.Base)
	}
	quote, ok := prices[pair.Quote]
	if !ok || !quote.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrPriceUnavailable, pair.Quote)
	}
	return grid.Quotient(base, quote), nil
}

// RunOnce runs a single cycle and reports it to the error monitor
func (o *Orchestrator) RunOnce(ctx context.Context) (*CycleReport, error) {
	report, err := o.RunCycle(ctx)
	if err != nil {
		o.deps.Monitor.RecordError(ctx, err.Error())
		return report, err
	}
	o.deps.Monitor.RecordSuccess()
	return report, nil
}
