package grid

import (
	"math"
	"testing"
	"time"

	"gridwalls/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleLevelWall() core.WallConfig {
	return core.WallConfig{
		ID:         7,
		Pair:       core.Pair{Base: "tst", Quote: "nano"},
		BidPrice:   d("6"),
		AskPrice:   d("12"),
		Quantities: quantities("10"),
		Keep:       d("10"),
		Spread:     d("2"),
	}
}

func newEngine(t *testing.T, wall core.WallConfig) *Engine {
	t.Helper()
	e, err := NewEngine(wall)
	require.NoError(t, err)
	return e
}

func TestStep_BuyBelowBid(t *testing.T) {
	e := newEngine(t, singleLevelWall())

	action := e.Step(d("5"), nil)
	require.NotNil(t, action)
	assert.Equal(t, core.SideBuy, action.Side)
	assert.True(t, action.Amount.Equal(d("20")), "keep 10 + level 10, got %s", action.Amount)
	assert.True(t, action.Price.Equal(d("5")))
}

func TestStep_PriceAtBidDoesNothing(t *testing.T) {
	e := newEngine(t, singleLevelWall())
	assert.Nil(t, e.Step(d("6"), nil))
}

func TestStep_SellTriggerNeedsHoldings(t *testing.T) {
	e := newEngine(t, singleLevelWall())
	// the wall is crossed but holdings 0 < keep 10
	assert.Nil(t, e.Step(d("13"), nil))
}

func TestStep_SellAboveAsk(t *testing.T) {
	e := newEngine(t, singleLevelWall())
	action := e.Step(d("13"), []core.HistoryEntry{buy("20", "5")})
	require.NotNil(t, action)
	assert.Equal(t, core.SideSell, action.Side)
	assert.True(t, action.Amount.Equal(d("10")), "holdings 20 - keep 10, got %s", action.Amount)
	assert.True(t, action.Price.Equal(d("13")))
}

func TestStep_SellAtAskBoundary(t *testing.T) {
	e := newEngine(t, singleLevelWall())
	action := e.Step(d("12"), []core.HistoryEntry{buy("25", "5")})
	require.NotNil(t, action)
	assert.Equal(t, core.SideSell, action.Side)
	assert.True(t, action.Amount.Equal(d("15")))
}

func TestStep_BuyTopsUpToTarget(t *testing.T) {
	e := newEngine(t, testWall())

	// price under the first two levels: target = 10 + 10 + 20
	action := e.Step(d("0.15"), []core.HistoryEntry{buy("20", "0.3")})
	require.NotNil(t, action)
	assert.Equal(t, core.SideBuy, action.Side)
	assert.True(t, action.Amount.Equal(d("20")))

	assert.Nil(t, e.Step(d("0.15"), []core.HistoryEntry{buy("20", "0.3"), buy("20", "0.15")}))
}

func TestStep_SellKeepsUnreachedLevels(t *testing.T) {
	e := newEngine(t, testWall())
	history := []core.HistoryEntry{buy("80", "0.05")}

	// 1.3 crosses 0.6 and 1.2 but not 2.4: keep 10 + 40 stays
	action := e.Step(d("1.3"), history)
	require.NotNil(t, action)
	assert.Equal(t, core.SideSell, action.Side)
	assert.True(t, action.Amount.Equal(d("30")))
}

func TestStep_SellFirstSeedsHoldings(t *testing.T) {
	wall := singleLevelWall()
	wall.SellFirst = true
	e := newEngine(t, wall)

	// seeded with 10, exactly the keep reserve
	assert.Nil(t, e.Step(d("13"), nil))

	wall.Keep = decimal.Zero
	e = newEngine(t, wall)
	action := e.Step(d("13"), nil)
	require.NotNil(t, action)
	assert.Equal(t, core.SideSell, action.Side)
	assert.True(t, action.Amount.Equal(d("10")))
}

// Known deviation: the selloff amount used to be routed through a price
// lookup helper. The amount proposed is selloff times the last bought amount.
func TestStep_SelloffResellsFractionOfLastBuy(t *testing.T) {
	wall := singleLevelWall()
	wall.Selloff = d("0.5")
	e := newEngine(t, wall)

	action := e.Step(d("13"), []core.HistoryEntry{buy("30", "5")})
	require.NotNil(t, action)
	assert.Equal(t, core.SideSell, action.Side)
	assert.True(t, action.Amount.Equal(d("15")), "got %s", action.Amount)

	// last entry is a sell: regular holdings based amount
	action = e.Step(d("13"), []core.HistoryEntry{buy("30", "5"), sell("5", "13")})
	require.NotNil(t, action)
	assert.True(t, action.Amount.Equal(d("15")), "holdings 25 - keep 10, got %s", action.Amount)

	// selloff only applies while the sell wall is active
	assert.Nil(t, e.Step(d("11"), []core.HistoryEntry{buy("30", "5")}))
}

func TestStep_MutuallyExclusive(t *testing.T) {
	e := newEngine(t, testWall())
	var history []core.HistoryEntry

	for i := 0; i <= 300; i++ {
		price := decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(100))
		action := e.Step(price, history)
		if action == nil {
			continue
		}
		switch action.Side {
		case core.SideBuy:
			assert.True(t, price.LessThan(d("0.4")), "buy at %s", price)
		case core.SideSell:
			assert.True(t, price.GreaterThanOrEqual(d("0.6")), "sell at %s", price)
		default:
			t.Fatalf("unexpected side %q", action.Side)
		}
		history = append(history, action.Entry(time.Unix(int64(i), 0)))
	}
}

func TestStep_DoesNotMutateHistory(t *testing.T) {
	e := newEngine(t, testWall())
	history := []core.HistoryEntry{buy("80", "0.05")}
	snapshot := append([]core.HistoryEntry{}, history...)

	first := e.Step(d("3"), history)
	second := e.Step(d("3"), history)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Side, second.Side)
	assert.True(t, first.Amount.Equal(second.Amount))
	assert.True(t, first.Amount.Equal(d("70")))
	assert.Equal(t, snapshot, history)
}

func TestTriggeringLevel(t *testing.T) {
	e := newEngine(t, testWall())

	_, _, ok := e.TriggeringLevel(d("0.5"))
	assert.False(t, ok)

	idx, level, ok := e.TriggeringLevel(d("1.5"))
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.True(t, level.Price.Equal(d("0.6")))
}

func TestEngine_Simulation(t *testing.T) {
	e := newEngine(t, testWall())
	var history []core.HistoryEntry

	step := func(i int, price float64) {
		if action := e.Step(decimal.NewFromFloat(price), history); action != nil {
			history = append(history, action.Entry(time.Unix(int64(i), 0)))
		}
	}

	var price float64
	for i := 0; i < 1502; i++ {
		price = (math.Sin(0.017*float64(i)) + 1) / 2.0 * 3.0
		step(i, price)
	}
	assert.True(t, e.Holdings(history).IsPositive())

	// melt down: every buy level is filled
	for i := 0; i < 1000; i++ {
		price *= 0.99
		step(2000+i, price)
	}
	assert.True(t, e.Holdings(history).Equal(d("80")), "got %s", e.Holdings(history))

	// melt up: everything above keep is sold
	for i := 0; i < 1000; i++ {
		price *= 1.02
		step(4000+i, price)
	}
	assert.True(t, e.Holdings(history).Equal(d("10")), "got %s", e.Holdings(history))
	assert.True(t, RealizedProfit(history).IsPositive(), "profit %s", RealizedProfit(history))
}

func TestStep_DeepLadderLevelsStayReachable(t *testing.T) {
	e := newEngine(t, deepWall("0.0000000002", "2", 24))
	deepest := e.Ladder().BuyLevels[23].Price

	action := e.Step(deepest, nil)
	require.NotNil(t, action)
	assert.True(t, action.Amount.Equal(d("23")), "got %s", action.Amount)

	action = e.Step(Quotient(deepest, d("2")), nil)
	require.NotNil(t, action)
	assert.True(t, action.Amount.Equal(d("24")), "got %s", action.Amount)
}
