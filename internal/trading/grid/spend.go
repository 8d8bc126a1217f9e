package grid

import (
	"gridwalls/internal/core"

	"github.com/shopspring/decimal"
)

// PotentialSpend estimates the quote capital still needed to fill the buy
// ladder and the keep reserve.
//
// Every history entry counts towards the filled volume whatever its side, so
// the figure is meant for reporting and never feeds the decision step.
// The returned coins value is what is left of the filled volume after the
// ladder and keep have been served; it goes negative when the reserve is short.
func PotentialSpend(ladder *Ladder, keep decimal.Decimal, sellFirst bool, history []core.HistoryEntry) (coins decimal.Decimal, cost decimal.Decimal) {
	coins = decimal.Zero
	cost = decimal.Zero
	if ladder == nil || len(ladder.BuyLevels) == 0 {
		return coins, cost
	}

	if sellFirst {
		coins = ladder.BuyLevels[0].Amount
	}
	for _, h := range history {
		coins = coins.Add(h.Amount)
	}

	for _, level := range ladder.BuyLevels {
		remaining := level.Amount.Sub(coins)
		coins = coins.Sub(level.Amount)
		if remaining.IsPositive() {
			cost = cost.Add(remaining.Mul(level.Price))
		}
		if coins.IsNegative() {
			coins = decimal.Zero
		}
	}

	reserve := keep.Sub(coins)
	coins = coins.Sub(keep)
	if reserve.IsPositive() {
		cost = cost.Add(reserve.Mul(ladder.BuyLevels[0].Price))
	}
	return coins, cost
}
