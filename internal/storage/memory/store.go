// Package memory keeps walls and executions in process memory
package memory

import (
	"context"
	"sync"

	"gridwalls/internal/core"
	"gridwalls/internal/storage"

	"github.com/shopspring/decimal"
)

// Store is an in-memory implementation of core.IStore.
type Store struct {
	mu         sync.RWMutex
	walls      map[int64]core.WallConfig
	order      []int64
	executions map[int64][]core.HistoryEntry
	nextID     int64
}

// Compile-time interface check.
var _ core.IStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		walls:      make(map[int64]core.WallConfig),
		executions: make(map[int64][]core.HistoryEntry),
	}
}

func (s *Store) ListWalls(_ context.Context) ([]core.WallConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	walls := make([]core.WallConfig, 0, len(s.order))
	for _, id := range s.order {
		walls = append(walls, cloneWall(s.walls[id]))
	}
	return walls, nil
}

func (s *Store) GetWall(_ context.Context, id int64) (core.WallConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wall, ok := s.walls[id]
	if !ok {
		return core.WallConfig{}, storage.ErrNotFound
	}
	return cloneWall(wall), nil
}

func (s *Store) SaveWall(_ context.Context, wall *core.WallConfig) error {
	if wall == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if wall.ID == 0 {
		s.nextID++
		wall.ID = s.nextID
		s.order = append(s.order, wall.ID)
	} else if _, ok := s.walls[wall.ID]; !ok {
		return storage.ErrNotFound
	}
	s.walls[wall.ID] = cloneWall(*wall)
	return nil
}

// History returns a copy of the wall's entries in append order.
func (s *Store) History(_ context.Context, wallID int64) ([]core.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.executions[wallID]
	out := make([]core.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *Store) Append(_ context.Context, wallID int64, entry core.HistoryEntry) error {
	if _, err := storage.EncodeExecution(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.walls[wallID]; !ok {
		return storage.ErrNotFound
	}
	s.executions[wallID] = append(s.executions[wallID], entry)
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func cloneWall(w core.WallConfig) core.WallConfig {
	w.Quantities = append([]decimal.Decimal(nil), w.Quantities...)
	return w
}
