package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newMemoryPool(t *testing.T) *Pool {
	t.Helper()

	manager := NewManager(nil)
	pool, err := manager.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.CloseAll() })
	return pool
}

func TestMigrateAppliesAllVersions(t *testing.T) {
	ctx := context.Background()
	pool := newMemoryPool(t)

	migrator := NewMigrator(pool, Migrations())
	require.NoError(t, migrator.Migrate(ctx))

	version, err := migrator.CurrentVersion()
	require.NoError(t, err)
	require.Equal(t, Migrations()[len(Migrations())-1].Version, version)

	// Spot-check tables from both migration blocks.
	for _, table := range []string{"sessions", "check_ins", "bandit_actions", "memory_events", "reward_log"} {
		var name string
		err := pool.QueryRow(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoErrorf(t, err, "table %q missing after migration", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := newMemoryPool(t)

	migrator := NewMigrator(pool, Migrations())
	require.NoError(t, migrator.Migrate(ctx))
	require.NoError(t, migrator.Migrate(ctx))

	pending, err := migrator.PendingMigrations()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMigratorSortsByVersion(t *testing.T) {
	pool := newMemoryPool(t)

	migrations := Migrations()
	// Feed migrations reversed; the migrator must still apply v1 first.
	reversed := make([]Migration, 0, len(migrations))
	for i := len(migrations) - 1; i >= 0; i-- {
		reversed = append(reversed, migrations[i])
	}

	migrator := NewMigrator(pool, reversed)
	require.NoError(t, migrator.Migrate(context.Background()))

	version, err := migrator.CurrentVersion()
	require.NoError(t, err)
	require.Equal(t, migrations[len(migrations)-1].Version, version)
}

func TestPoolTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pool := newMemoryPool(t)
	require.NoError(t, NewMigrator(pool, Migrations()).Migrate(ctx))

	boom := errors.New("boom")
	err := pool.Transaction(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`INSERT INTO skills (name) VALUES ('piano')`)
		require.NoError(t, execErr)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM skills`).Scan(&count))
	require.Zero(t, count, "rolled-back insert must not persist")
}
