package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an action or execution
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide converts a stored side string into a Side
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(SideBuy):
		return SideBuy, nil
	case string(SideSell):
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Pair identifies the traded tokens, e.g. near/nano.
// Base and Quote are the identifiers used by the price source.
type Pair struct {
	Base  string
	Quote string
}

// ParsePair parses "BASE/QUOTE" or "VENUE:BASE/QUOTE". Token ids are
// lowercased to match price source identifiers.
func ParsePair(s string) (Pair, error) {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("invalid pair %q: expected BASE/QUOTE", s)
	}
	base := strings.ToLower(strings.TrimSpace(parts[0]))
	quote := strings.ToLower(strings.TrimSpace(parts[1]))
	if base == "" || quote == "" {
		return Pair{}, fmt.Errorf("invalid pair %q: empty token", s)
	}
	return Pair{Base: base, Quote: quote}, nil
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// WallConfig is the configuration of one grid wall
type WallConfig struct {
	ID         int64
	Pair       Pair
	BidPrice   decimal.Decimal
	AskPrice   decimal.Decimal
	Quantities []decimal.Decimal
	Keep       decimal.Decimal
	Spread     decimal.Decimal
	Selloff    decimal.Decimal
	SellFirst  bool
}

// HistoryEntry is one recorded execution of a wall
type HistoryEntry struct {
	Side      Side
	Amount    decimal.Decimal
	UnitPrice decimal.Decimal
	Timestamp time.Time
}

// Action is a proposed buy or sell at a unit price
type Action struct {
	Side   Side
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Notional returns amount * price
func (a Action) Notional() decimal.Decimal {
	return a.Amount.Mul(a.Price)
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s @ %s", a.Side, a.Amount.String(), a.Price.String())
}

// Entry converts the action into the execution record persisted for it
func (a Action) Entry(at time.Time) HistoryEntry {
	return HistoryEntry{
		Side:      a.Side,
		Amount:    a.Amount,
		UnitPrice: a.Price,
		Timestamp: at,
	}
}
