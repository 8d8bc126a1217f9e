package grid

import (
	"testing"
	"time"

	"gridwalls/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func buy(amount, price string) core.HistoryEntry {
	return core.HistoryEntry{Side: core.SideBuy, Amount: d(amount), UnitPrice: d(price), Timestamp: time.Unix(0, 0)}
}

func sell(amount, price string) core.HistoryEntry {
	return core.HistoryEntry{Side: core.SideSell, Amount: d(amount), UnitPrice: d(price), Timestamp: time.Unix(0, 0)}
}

func TestHoldings(t *testing.T) {
	history := []core.HistoryEntry{buy("10", "0.3"), buy("20", "0.15"), sell("5", "0.7")}
	assert.True(t, Holdings(history, decimal.Zero).Equal(d("25")))
	assert.True(t, Holdings(history, d("10")).Equal(d("35")))
	assert.True(t, Holdings(nil, d("10")).Equal(d("10")))
}

func TestHoldings_Additivity(t *testing.T) {
	history := []core.HistoryEntry{buy("10", "0.3"), sell("2.5", "0.8")}
	base := Holdings(history, decimal.Zero)

	withBuy := append(append([]core.HistoryEntry{}, history...), buy("7.25", "0.2"))
	assert.True(t, Holdings(withBuy, decimal.Zero).Equal(base.Add(d("7.25"))))

	withSell := append(append([]core.HistoryEntry{}, history...), sell("3", "0.9"))
	assert.True(t, Holdings(withSell, decimal.Zero).Equal(base.Sub(d("3"))))
}

func TestHoldings_NotClamped(t *testing.T) {
	history := []core.HistoryEntry{sell("5", "1")}
	assert.True(t, Holdings(history, decimal.Zero).Equal(d("-5")))
}

func TestSeedAmount(t *testing.T) {
	wall := testWall()
	assert.True(t, SeedAmount(wall).IsZero())

	wall.SellFirst = true
	assert.True(t, SeedAmount(wall).Equal(d("10")))
}

func TestRealizedProfit(t *testing.T) {
	history := []core.HistoryEntry{buy("10", "1"), sell("5", "3")}
	assert.True(t, RealizedProfit(history).Equal(d("5")))
	assert.True(t, RealizedProfit(nil).IsZero())
}
