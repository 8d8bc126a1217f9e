// Package storagetest runs the same behaviour checks against every store
package storagetest

import (
	"context"
	"testing"
	"time"

	"gridwalls/internal/core"
	"gridwalls/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wall returns a valid wall for tests
func Wall() core.WallConfig {
	return core.WallConfig{
		Pair:       core.Pair{Base: "near", Quote: "nano"},
		BidPrice:   decimal.RequireFromString("0.4"),
		AskPrice:   decimal.RequireFromString("0.6"),
		Quantities: []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.RequireFromString("40.5")},
		Keep:       decimal.NewFromInt(10),
		Spread:     decimal.NewFromInt(2),
		Selloff:    decimal.RequireFromString("0.25"),
	}
}

// Run exercises a store created by newStore
func Run(t *testing.T, newStore func(t *testing.T) core.IStore) {
	t.Run("SaveAndList", func(t *testing.T) {
		testSaveAndList(t, newStore(t))
	})
	t.Run("UpdateWall", func(t *testing.T) {
		testUpdateWall(t, newStore(t))
	})
	t.Run("GetMissingWall", func(t *testing.T) {
		_, err := newStore(t).GetWall(context.Background(), 999)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
	t.Run("HistoryInCreationOrder", func(t *testing.T) {
		testHistoryOrder(t, newStore(t))
	})
	t.Run("AppendUnknownWall", func(t *testing.T) {
		err := newStore(t).Append(context.Background(), 999, entry(core.SideBuy, "1", "1", 0))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
	t.Run("Seed", func(t *testing.T) {
		testSeed(t, newStore(t))
	})
	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(context.Background()))
	})
}

func entry(side core.Side, amount, price string, sec int64) core.HistoryEntry {
	return core.HistoryEntry{
		Side:      side,
		Amount:    decimal.RequireFromString(amount),
		UnitPrice: decimal.RequireFromString(price),
		Timestamp: time.Unix(1_700_000_000+sec, 0).UTC(),
	}
}

func testSaveAndList(t *testing.T, store core.IStore) {
	ctx := context.Background()

	first := Wall()
	require.NoError(t, store.SaveWall(ctx, &first))
	assert.NotZero(t, first.ID)

	second := Wall()
	second.Pair = core.Pair{Base: "tst", Quote: "nano"}
	second.SellFirst = true
	require.NoError(t, store.SaveWall(ctx, &second))
	assert.NotEqual(t, first.ID, second.ID)

	walls, err := store.ListWalls(ctx)
	require.NoError(t, err)
	require.Len(t, walls, 2)
	assert.Equal(t, first.ID, walls[0].ID)
	assert.Equal(t, second.ID, walls[1].ID)

	got := walls[0]
	assert.Equal(t, first.Pair, got.Pair)
	assert.True(t, got.BidPrice.Equal(first.BidPrice))
	assert.True(t, got.AskPrice.Equal(first.AskPrice))
	assert.True(t, got.Keep.Equal(first.Keep))
	assert.True(t, got.Spread.Equal(first.Spread))
	assert.True(t, got.Selloff.Equal(first.Selloff))
	require.Len(t, got.Quantities, 3)
	assert.Equal(t, "40.5", got.Quantities[2].String())
	assert.True(t, walls[1].SellFirst)

	byID, err := store.GetWall(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Pair, byID.Pair)
}

func testUpdateWall(t *testing.T, store core.IStore) {
	ctx := context.Background()

	wall := Wall()
	require.NoError(t, store.SaveWall(ctx, &wall))

	wall.AskPrice = decimal.RequireFromString("0.75")
	require.NoError(t, store.SaveWall(ctx, &wall))

	got, err := store.GetWall(ctx, wall.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.75", got.AskPrice.String())

	walls, err := store.ListWalls(ctx)
	require.NoError(t, err)
	assert.Len(t, walls, 1)

	missing := Wall()
	missing.ID = 999
	assert.ErrorIs(t, store.SaveWall(ctx, &missing), storage.ErrNotFound)
	assert.ErrorIs(t, store.SaveWall(ctx, nil), storage.ErrInvalidInput)
}

func testHistoryOrder(t *testing.T, store core.IStore) {
	ctx := context.Background()

	wall := Wall()
	require.NoError(t, store.SaveWall(ctx, &wall))
	other := Wall()
	require.NoError(t, store.SaveWall(ctx, &other))

	empty, err := store.History(ctx, wall.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// same timestamp for two entries: creation order must still win
	appended := []core.HistoryEntry{
		entry(core.SideBuy, "10", "0.3", 5),
		entry(core.SideBuy, "20", "0.15", 5),
		entry(core.SideSell, "5.5", "0.7", 1),
	}
	for _, e := range appended {
		require.NoError(t, store.Append(ctx, wall.ID, e))
	}
	require.NoError(t, store.Append(ctx, other.ID, entry(core.SideSell, "1", "9", 0)))

	history, err := store.History(ctx, wall.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, e := range appended {
		assert.Equal(t, e.Side, history[i].Side, "entry %d", i)
		assert.True(t, e.Amount.Equal(history[i].Amount), "entry %d amount", i)
		assert.True(t, e.UnitPrice.Equal(history[i].UnitPrice), "entry %d price", i)
		assert.True(t, e.Timestamp.Equal(history[i].Timestamp), "entry %d time", i)
	}

	otherHistory, err := store.History(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, otherHistory, 1)
}

func testSeed(t *testing.T, store core.IStore) {
	ctx := context.Background()

	n, err := storage.SeedWalls(ctx, store, []core.WallConfig{Wall(), Wall()})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a populated store is left alone
	n, err = storage.SeedWalls(ctx, store, []core.WallConfig{Wall()})
	require.NoError(t, err)
	assert.Zero(t, n)

	walls, err := store.ListWalls(ctx)
	require.NoError(t, err)
	assert.Len(t, walls, 2)
}
