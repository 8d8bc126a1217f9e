// Package order carries out decided grid actions
package order

import (
	"context"
	"fmt"

	"gridwalls/internal/core"
	"gridwalls/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// PaperExecutor records market orders in the log without touching a venue
type PaperExecutor struct {
	logger      core.ILogger
	rateLimiter *rate.Limiter

	tracer       trace.Tracer
	orderCounter metric.Int64Counter
}

var _ core.IOrderExecutor = (*PaperExecutor)(nil)

// NewPaperExecutor creates an executor accepting ordersPerSecond orders.
// Zero means unlimited.
func NewPaperExecutor(ordersPerSecond float64, logger core.ILogger) *PaperExecutor {
	limit := rate.Inf
	if ordersPerSecond > 0 {
		limit = rate.Limit(ordersPerSecond)
	}
	meter := telemetry.GetMeter("order-executor")
	orderCounter, _ := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Total number of orders placed"))

	return &PaperExecutor{
		logger:       logger.WithField("component", "paper_executor"),
		rateLimiter:  rate.NewLimiter(limit, 1),
		tracer:       telemetry.GetTracer("order-executor"),
		orderCounter: orderCounter,
	}
}

func (e *PaperExecutor) Execute(ctx context.Context, wall core.WallConfig, action core.Action) error {
	if !action.Amount.IsPositive() {
		return fmt.Errorf("refusing %s of non positive amount %s", action.Side, action.Amount)
	}

	ctx, span := e.tracer.Start(ctx, "PaperExecutor.Execute", trace.WithAttributes(
		attribute.String("pair", wall.Pair.String()),
		attribute.String("side", string(action.Side)),
	))
	defer span.End()

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	msg := "Market buy"
	if action.Side == core.SideSell {
		msg = "Market sell"
	}
	e.logger.Info(msg,
		"wall_id", wall.ID,
		"token", wall.Pair.Base,
		"pair", wall.Pair.String(),
		"amount", action.Amount.String(),
		"price", action.Price.String(),
		"notional", action.Notional().String(),
		"quote", wall.Pair.Quote)

	e.orderCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pair", wall.Pair.String()),
		attribute.String("side", string(action.Side)),
	))
	return nil
}
