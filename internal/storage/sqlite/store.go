// Package sqlite stores walls and executions in an embedded SQLite database
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gridwalls/internal/core"
	"gridwalls/internal/storage"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

// Compile-time interface check.
var _ core.IStore = (*Store)(nil)

// NewStore opens the database at dbPath and applies the schema
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps pragmas and :memory: databases consistent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

const wallColumns = `id, pair, bid_price, ask_price, quantities, keep, spread, selloff, sell_first`

func (s *Store) ListWalls(ctx context.Context) ([]core.WallConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+wallColumns+` FROM walls ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query walls: %w", err)
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
		return nil, fmt.Errorf("failed to iterate walls: %w", err)
	}
	return walls, nil
}

func (s *Store) GetWall(ctx context.Context, id int64) (core.WallConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+wallColumns+` FROM walls WHERE id = ?`, id)
	wall, err := scanWall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WallConfig{}, storage.ErrNotFound
	}
	return wall, err
}

func (s *Store) SaveWall(ctx context.Context, wall *core.WallConfig) error {
	r, err := storage.EncodeWall(wall)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.ID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO walls (pair, bid_price, ask_price, quantities, keep, spread, selloff, sell_first, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Pair, r.BidPrice, r.AskPrice, r.Quantities, r.Keep, r.Spread, r.Selloff, r.SellFirst, time.Now().UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert wall: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read wall id: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		wall.ID = id
		return nil
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE walls SET pair = ?, bid_price = ?, ask_price = ?, quantities = ?, keep = ?, spread = ?, selloff = ?, sell_first = ?
		 WHERE id = ?`,
		r.Pair, r.BidPrice, r.AskPrice, r.Quantities, r.Keep, r.Spread, r.Selloff, r.SellFirst, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update wall: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

// History returns the wall's executions ordered by insertion
func (s *Store) History(ctx context.Context, wallID int64) ([]core.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT side, amount, unit_price, created_at FROM executions WHERE wall_id = ? ORDER BY id ASC`, wallID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	history := make([]core.HistoryEntry, 0)
	for rows.Next() {
		var r storage.ExecutionRow
		var createdAt int64
		if err := rows.Scan(&r.Side, &r.Amount, &r.UnitPrice, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		entry, err := r.Decode()
		if err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return history, nil
}

func (s *Store) Append(ctx context.Context, wallID int64, entry core.HistoryEntry) error {
	r, err := storage.EncodeExecution(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (wall_id, side, amount, unit_price, created_at) VALUES (?, ?, ?, ?, ?)`,
		wallID, r.Side, r.Amount, r.UnitPrice, r.CreatedAt.UnixNano())
	if err != nil {
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWall(row scanner) (core.WallConfig, error) {
	var r storage.WallRow
	if err := row.Scan(&r.ID, &r.Pair, &r.BidPrice, &r.AskPrice, &r.Quantities, &r.Keep, &r.Spread, &r.Selloff, &r.SellFirst); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.WallConfig{}, err
		}
		return core.WallConfig{}, fmt.Errorf("failed to scan wall: %w", err)
	}
	return r.Decode()
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
