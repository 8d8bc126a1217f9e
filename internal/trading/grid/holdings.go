package grid

import (
	"gridwalls/internal/core"

	"github.com/shopspring/decimal"
)

// SeedAmount is the starting holdings of a wall: the first ladder quantity
// when the wall sells first, otherwise zero.
func SeedAmount(wall core.WallConfig) decimal.Decimal {
	if wall.SellFirst && len(wall.Quantities) > 0 {
		return wall.Quantities[0]
	}
	return decimal.Zero
}

// Holdings replays the history on top of seed. The result is not clamped, a
// negative value means the log sold more than it bought.
func Holdings(history []core.HistoryEntry, seed decimal.Decimal) decimal.Decimal {
	holdings := seed
	for _, h := range history {
		switch h.Side {
		case core.SideBuy:
			holdings = holdings.Add(h.Amount)
		case core.SideSell:
			holdings = holdings.Sub(h.Amount)
		}
	}
	return holdings
}

// RealizedProfit is the quote value received from sells minus the quote value
// spent on buys.
func RealizedProfit(history []core.HistoryEntry) decimal.Decimal {
	profit := decimal.Zero
	for _, h := range history {
		notional := h.Amount.Mul(h.UnitPrice)
		switch h.Side {
		case core.SideBuy:
			profit = profit.Sub(notional)
		case core.SideSell:
			profit = profit.Add(notional)
		}
	}
	return profit
}
