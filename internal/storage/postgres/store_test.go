package postgres

import (
	"context"
	"testing"
	"time"

	"gridwalls/internal/core"
	"gridwalls/internal/storage/storagetest"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container and returns a migrated pool.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Migrate(ctx))
	return pool
}

func TestStore(t *testing.T) {
	pool := setupTestDB(t)

	storagetest.Run(t, func(t *testing.T) core.IStore {
		_, err := pool.Exec(context.Background(), `TRUNCATE executions, walls RESTART IDENTITY`)
		require.NoError(t, err)
		return NewStore(pool)
	})
}

func TestPool_MigrateIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	require.NoError(t, pool.Migrate(context.Background()))
}
