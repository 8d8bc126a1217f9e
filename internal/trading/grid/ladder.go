// Package grid implements the pure wall logic: ladder construction, holdings
// replay, spend estimation and the per-tick decision step.
package grid

import (
	"errors"
	"fmt"
	"strings"

	"gridwalls/internal/core"

	"github.com/shopspring/decimal"
)

// ErrInvalidWall is returned when a wall configuration cannot produce a ladder
var ErrInvalidWall = errors.New("invalid wall configuration")

// Level is one rung of a ladder
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Ladder holds the buy and sell levels derived from a WallConfig.
// BuyLevels[0] and SellLevels[0] are the levels closest to the market.
type Ladder struct {
	BuyLevels  []Level
	SellLevels []Level
}

func invalid(wall core.WallConfig, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidWall, wall.Pair, fmt.Sprintf(format, args...))
}

// Validate checks the invariants a wall must satisfy before a ladder is built
func Validate(wall core.WallConfig) error {
	if len(wall.Quantities) == 0 {
		return invalid(wall, "quantities must not be empty")
	}
	if !wall.BidPrice.IsPositive() {
		return invalid(wall, "bid_price must be positive, got %s", wall.BidPrice)
	}
	if wall.AskPrice.LessThan(wall.BidPrice) {
		return invalid(wall, "ask_price %s must be >= bid_price %s", wall.AskPrice, wall.BidPrice)
	}
	if wall.Spread.LessThanOrEqual(decimal.NewFromInt(1)) {
		return invalid(wall, "spread must be > 1, got %s", wall.Spread)
	}
	if wall.Keep.IsNegative() {
		return invalid(wall, "keep must be >= 0, got %s", wall.Keep)
	}
	if wall.Selloff.IsNegative() || wall.Selloff.GreaterThan(decimal.NewFromInt(1)) {
		return invalid(wall, "selloff must be within [0,1], got %s", wall.Selloff)
	}
	for i, q := range wall.Quantities {
		if !q.IsPositive() {
			return invalid(wall, "quantity %d must be positive, got %s", i, q)
		}
	}
	return nil
}

// BuildLadder derives the buy and sell levels of a wall.
// Level i is priced at bid/spread^i on the buy side and ask*spread^i on the sell side.
func BuildLadder(wall core.WallConfig) (*Ladder, error) {
	if err := Validate(wall); err != nil {
		return nil, err
	}

	n := len(wall.Quantities)
	ladder := &Ladder{
		BuyLevels:  make([]Level, 0, n),
		SellLevels: make([]Level, 0, n),
	}

	factor := decimal.NewFromInt(1)
	for _, q := range wall.Quantities {
		ladder.BuyLevels = append(ladder.BuyLevels, Level{Price: Quotient(wall.BidPrice, factor), Amount: q})
		ladder.SellLevels = append(ladder.SellLevels, Level{Price: wall.AskPrice.Mul(factor), Amount: q})
		factor = factor.Mul(wall.Spread)
	}
	return ladder, nil
}

// String renders a short summary of both sides of the ladder
func (l *Ladder) String() string {
	var b strings.Builder
	b.WriteString("Buy ")
	writeColumn(&b, l.BuyLevels, func(lv Level) decimal.Decimal { return lv.Amount })
	b.WriteString(" Sell ")
	writeColumn(&b, l.SellLevels, func(lv Level) decimal.Decimal { return lv.Amount })
	b.WriteString("\nUnit price ")
	writeColumn(&b, l.BuyLevels, func(lv Level) decimal.Decimal { return lv.Price })
	b.WriteString(" Sell ")
	writeColumn(&b, l.SellLevels, func(lv Level) decimal.Decimal { return lv.Price })
	return b.String()
}

func writeColumn(b *strings.Builder, levels []Level, field func(Level) decimal.Decimal) {
	b.WriteByte('[')
	for i, lv := range levels {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(field(lv).String())
	}
	b.WriteByte(']')
}
