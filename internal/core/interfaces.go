// Package core defines the core interfaces for the grid wall trader
package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// IWallStore persists wall configurations. SaveWall inserts a wall with a
// zero ID and assigns one, otherwise it updates the existing row.
type IWallStore interface {
	ListWalls(ctx context.Context) ([]WallConfig, error)
	GetWall(ctx context.Context, id int64) (WallConfig, error)
	SaveWall(ctx context.Context, wall *WallConfig) error
}

// IExecutionStore is the append-only execution log of every wall.
// History must return entries in creation order.
type IExecutionStore interface {
	History(ctx context.Context, wallID int64) ([]HistoryEntry, error)
	Append(ctx context.Context, wallID int64, entry HistoryEntry) error
}

// IStore combines wall and execution persistence
type IStore interface {
	IWallStore
	IExecutionStore
	Ping(ctx context.Context) error
	Close() error
}

// IPriceSource resolves current prices for a batch of token identifiers.
// Tokens the source does not know are absent from the result.
type IPriceSource interface {
	Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// INotifier delivers a human readable message, best effort
type INotifier interface {
	Notify(ctx context.Context, message string)
}

// IOrderExecutor carries out a decided action for a wall
type IOrderExecutor interface {
	Execute(ctx context.Context, wall WallConfig, action Action) error
}

// IErrorMonitor throttles alerts for repeated cycle failures
type IErrorMonitor interface {
	RecordSuccess()
	RecordError(ctx context.Context, message string)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
