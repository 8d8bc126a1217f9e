package grid

import (
	"gridwalls/internal/core"

	"github.com/shopspring/decimal"
)

// Engine decides the next action of a single wall. It keeps no state between
// calls; everything it needs comes from the wall and the history passed in.
type Engine struct {
	wall   core.WallConfig
	ladder *Ladder
	seed   decimal.Decimal
}

// NewEngine validates the wall and builds its ladder
func NewEngine(wall core.WallConfig) (*Engine, error) {
	ladder, err := BuildLadder(wall)
	if err != nil {
		return nil, err
	}
	return &Engine{
		wall:   wall,
		ladder: ladder,
		seed:   SeedAmount(wall),
	}, nil
}

// Wall returns the configuration the engine was built from
func (e *Engine) Wall() core.WallConfig {
	return e.wall
}

// Ladder returns the derived price levels
func (e *Engine) Ladder() *Ladder {
	return e.ladder
}

// Holdings replays history for this wall
func (e *Engine) Holdings(history []core.HistoryEntry) decimal.Decimal {
	return Holdings(history, e.seed)
}

// PotentialSpend reports the capital still needed to fill the buy ladder
func (e *Engine) PotentialSpend(history []core.HistoryEntry) (decimal.Decimal, decimal.Decimal) {
	return PotentialSpend(e.ladder, e.wall.Keep, e.wall.SellFirst, history)
}

// Step returns the action to take at currentPrice, or nil.
// A buy is returned as soon as the buy side triggers; the sell side is only
// evaluated otherwise.
func (e *Engine) Step(currentPrice decimal.Decimal, history []core.HistoryEntry) *core.Action {
	holdings := e.Holdings(history)

	if buy, ok := e.buyAmount(currentPrice, holdings); ok {
		return &core.Action{Side: core.SideBuy, Amount: buy, Price: currentPrice}
	}

	if sell, ok := e.sellAmount(currentPrice, holdings, history); ok {
		return &core.Action{Side: core.SideSell, Amount: sell, Price: currentPrice}
	}

	return nil
}

// buyAmount sums keep and every buy level priced above the market, and
// proposes buying the shortfall against holdings.
func (e *Engine) buyAmount(currentPrice, holdings decimal.Decimal) (decimal.Decimal, bool) {
	target := e.wall.Keep
	active := false
	for _, level := range e.ladder.BuyLevels {
		if currentPrice.LessThan(level.Price) {
			target = target.Add(level.Amount)
			active = true
		}
	}
	amount := target.Sub(holdings)
	return amount, active && amount.IsPositive()
}

func (e *Engine) sellAmount(currentPrice, holdings decimal.Decimal, history []core.HistoryEntry) (decimal.Decimal, bool) {
	needed := e.wall.Keep
	active := false
	for _, level := range e.ladder.SellLevels {
		if currentPrice.LessThan(level.Price) {
			needed = needed.Add(level.Amount)
		} else {
			active = true
		}
	}
	if !active {
		return decimal.Zero, false
	}

	amount := holdings.Sub(needed)
	if n := len(history); n > 0 && history[n-1].Side == core.SideBuy && e.wall.Selloff.IsPositive() {
		// resell a fraction of the buy that just happened
		amount = history[n-1].Amount.Mul(e.wall.Selloff)
	}
	return amount, amount.IsPositive()
}

// TriggeringLevel returns the lowest priced sell level at or below
// currentPrice, i.e. the first level the market crossed.
func (e *Engine) TriggeringLevel(currentPrice decimal.Decimal) (int, Level, bool) {
	idx := -1
	var found Level
	for i, level := range e.ladder.SellLevels {
		if currentPrice.LessThan(level.Price) {
			continue
		}
		if idx < 0 || level.Price.LessThan(found.Price) {
			idx = i
			found = level
		}
	}
	return idx, found, idx >= 0
}
