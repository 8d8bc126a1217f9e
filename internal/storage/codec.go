package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gridwalls/internal/core"

	"github.com/shopspring/decimal"
)

// WallRow is the column representation of a wall. Decimals are kept as text
// so they round-trip exactly.
type WallRow struct {
	ID         int64
	Pair       string
	BidPrice   string
	AskPrice   string
	Quantities string // JSON array of decimal strings
	Keep       string
	Spread     string
	Selloff    string
	SellFirst  bool
}

// ExecutionRow is the column representation of a history entry
type ExecutionRow struct {
	Side      string
	Amount    string
	UnitPrice string
	CreatedAt time.Time
}

// EncodeWall converts a wall into its row
func EncodeWall(w *core.WallConfig) (WallRow, error) {
	if w == nil || w.Pair.Base == "" || w.Pair.Quote == "" {
		return WallRow{}, ErrInvalidInput
	}
	qs := make([]string, len(w.Quantities))
	for i, q := range w.Quantities {
		qs[i] = q.String()
	}
	data, err := json.Marshal(qs)
	if err != nil {
		return WallRow{}, fmt.Errorf("encode quantities: %w", err)
	}
	return WallRow{
		ID:         w.ID,
		Pair:       w.Pair.String(),
		BidPrice:   w.BidPrice.String(),
		AskPrice:   w.AskPrice.String(),
		Quantities: string(data),
		Keep:       w.Keep.String(),
		Spread:     w.Spread.String(),
		Selloff:    w.Selloff.String(),
		SellFirst:  w.SellFirst,
	}, nil
}

// Decode parses the row. Malformed numbers wrap ErrInvalidRecord.
func (r WallRow) Decode() (core.WallConfig, error) {
	pair, err := core.ParsePair(r.Pair)
	if err != nil {
		return core.WallConfig{}, fmt.Errorf("%w: wall %d: %v", ErrInvalidRecord, r.ID, err)
	}
	wall := core.WallConfig{ID: r.ID, Pair: pair, SellFirst: r.SellFirst}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"bid_price", r.BidPrice, &wall.BidPrice},
		{"ask_price", r.AskPrice, &wall.AskPrice},
		{"keep", r.Keep, &wall.Keep},
		{"spread", r.Spread, &wall.Spread},
		{"selloff", r.Selloff, &wall.Selloff},
	}
	for _, f := range fields {
		v, err := parseDecimal(f.raw)
		if err != nil {
			return core.WallConfig{}, fmt.Errorf("%w: wall %d %s: %v", ErrInvalidRecord, r.ID, f.name, err)
		}
		*f.dst = v
	}

	var qs []string
	if err := json.Unmarshal([]byte(r.Quantities), &qs); err != nil {
		return core.WallConfig{}, fmt.Errorf("%w: wall %d quantities: %v", ErrInvalidRecord, r.ID, err)
	}
	wall.Quantities = make([]decimal.Decimal, len(qs))
	for i, raw := range qs {
		q, err := decimal.NewFromString(raw)
		if err != nil {
			return core.WallConfig{}, fmt.Errorf("%w: wall %d quantities[%d]: %v", ErrInvalidRecord, r.ID, i, err)
		}
		wall.Quantities[i] = q
	}
	return wall, nil
}

// EncodeExecution converts a history entry into its row
func EncodeExecution(e core.HistoryEntry) (ExecutionRow, error) {
	if _, err := core.ParseSide(string(e.Side)); err != nil {
		return ExecutionRow{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return ExecutionRow{
		Side:      string(e.Side),
		Amount:    e.Amount.String(),
		UnitPrice: e.UnitPrice.String(),
		CreatedAt: e.Timestamp,
	}, nil
}

// Decode parses the row. Malformed values wrap ErrInvalidRecord.
func (r ExecutionRow) Decode() (core.HistoryEntry, error) {
	side, err := core.ParseSide(r.Side)
	if err != nil {
		return core.HistoryEntry{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.HistoryEntry{}, fmt.Errorf("%w: amount: %v", ErrInvalidRecord, err)
	}
	price, err := decimal.NewFromString(r.UnitPrice)
	if err != nil {
		return core.HistoryEntry{}, fmt.Errorf("%w: unit_price: %v", ErrInvalidRecord, err)
	}
	return core.HistoryEntry{Side: side, Amount: amount, UnitPrice: price, Timestamp: r.CreatedAt}, nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
