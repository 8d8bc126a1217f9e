package postgres

import (
	"context"
	"fmt"

	"gridwalls/internal/core"
	"gridwalls/internal/storage"

	"github.com/jackc/pgx/v5"
)

// Store implements core.IStore using PostgreSQL.
type Store struct {
	pool *Pool
}

// Compile-time interface check.
var _ core.IStore = (*Store)(nil)

// NewStore creates a store on an existing pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to dsn, applies the schema and returns the store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

const wallColumns = `id, pair, bid_price, ask_price, quantities, keep, spread, selloff, sell_first`

func (s *Store) ListWalls(ctx context.Context) ([]core.WallConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+wallColumns+` FROM walls ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query walls: %w", err)
	}
	defer rows.Close()

	var walls []core.WallConfig
	for rows.Next() {
		wall, err := scanWall(rows)
		if err != nil {
			return nil, err
		}
		walls = append(walls, wall)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate walls: %w", err)
	}
	return walls, nil
}

// GetWall retrieves a wall by id. Returns ErrNotFound if not exists.
func (s *Store) GetWall(ctx context.Context, id int64) (core.WallConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+wallColumns+` FROM walls WHERE id = $1`, id)
	wall, err := scanWall(row)
	if isNotFoundError(err) {
		return core.WallConfig{}, storage.ErrNotFound
	}
	return wall, err
}

func (s *Store) SaveWall(ctx context.Context, wall *core.WallConfig) error {
	r, err := storage.EncodeWall(wall)
	if err != nil {
		return err
	}

	if r.ID == 0 {
		var id int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO walls (pair, bid_price, ask_price, quantities, keep, spread, selloff, sell_first)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, r.Pair, r.BidPrice, r.AskPrice, r.Quantities, r.Keep, r.Spread, r.Selloff, r.SellFirst).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert wall: %w", err)
		}
		wall.ID = id
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE walls
		SET pair = $1, bid_price = $2, ask_price = $3, quantities = $4, keep = $5, spread = $6, selloff = $7, sell_first = $8
		WHERE id = $9
	`, r.Pair, r.BidPrice, r.AskPrice, r.Quantities, r.Keep, r.Spread, r.Selloff, r.SellFirst, r.ID)
	if err != nil {
		return fmt.Errorf("update wall: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// History returns the wall's executions ordered by insertion.
func (s *Store) History(ctx context.Context, wallID int64) ([]core.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT side, amount, unit_price, created_at
		FROM executions
		WHERE wall_id = $1
		ORDER BY id ASC
	`, wallID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	history := make([]core.HistoryEntry, 0)
	for rows.Next() {
		var r storage.ExecutionRow
		if err := rows.Scan(&r.Side, &r.Amount, &r.UnitPrice, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		entry, err := r.Decode()
		if err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return history, nil
}

// Append adds an execution. Returns ErrNotFound if the wall does not exist.
func (s *Store) Append(ctx context.Context, wallID int64, entry core.HistoryEntry) error {
	r, err := storage.EncodeExecution(entry)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO executions (wall_id, side, amount, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, wallID, r.Side, r.Amount, r.UnitPrice, r.CreatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanWall(row pgx.Row) (core.WallConfig, error) {
	var r storage.WallRow
	if err := row.Scan(&r.ID, &r.Pair, &r.BidPrice, &r.AskPrice, &r.Quantities, &r.Keep, &r.Spread, &r.Selloff, &r.SellFirst); err != nil {
		if isNotFoundError(err) {
			return core.WallConfig{}, err
		}
		return core.WallConfig{}, fmt.Errorf("scan wall: %w", err)
	}
	return r.Decode()
}
