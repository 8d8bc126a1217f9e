package storage

import (
	"context"
	"fmt"

	"gridwalls/internal/core"
)

// SeedWalls saves walls into the store when it holds none yet. It returns
// the number of walls saved.
func SeedWalls(ctx context.Context, store core.IWallStore, walls []core.WallConfig) (int, error) {
	if len(walls) == 0 {
		return 0, nil
	}
	existing, err := store.ListWalls(ctx)
	if err != nil {
		return 0, fmt.Errorf("list walls: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range walls {
		wall := walls[i]
		wall.ID = 0
		if err := store.SaveWall(ctx, &wall); err != nil {
			return i, fmt.Errorf("seed wall %s: %w", wall.Pair, err)
		}
	}
	return len(walls), nil
}
