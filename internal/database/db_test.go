// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/oliverandrich/photobooth/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := database.Open(":memory:")

	require.NoError(t, err)
	require.NotNil(t, db)

	require.NoError(t, db.Close())
}

func TestOpen_DefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() {
		_ = os.Chdir(oldWd)
	}()

	db, err := database.Open("")

	require.NoError(t, err)
	require.NotNil(t, db)
	defer func() {
		_ = db.Close()
	}()

	assert.FileExists(t, filepath.Join(tmpDir, "data", "photobooth.db"))
}

func TestOpen_MigrationsApplied(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	for _, table := range []string{"users", "verification_challenges", "share_tokens", "photos"} {
		var count int64
		err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, table)
	}

	version, err := database.MigrationVersion(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestMigrateReset(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "reset.db"))
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, database.MigrateReset(db.DB))

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, database.RunMigrations(db.DB))
}

func TestOpen_PragmasApplied(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "pragma.db"))
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var journalMode string
	require.NoError(t, db.Get(&journalMode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.Get(&foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, foreignKeys)

	var busyTimeout int
	require.NoError(t, db.Get(&busyTimeout, "PRAGMA busy_timeout"))
	assert.Equal(t, 5000, busyTimeout)
}

func TestOpen_PragmasOnEveryConnection(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	var conns []*sqlx.Conn
	for range 3 {
		conn, err := db.Connx(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for _, conn := range conns {
		var foreignKeys int
		require.NoError(t, conn.GetContext(ctx, &foreignKeys, "PRAGMA foreign_keys"))
		assert.Equal(t, 1, foreignKeys)
		require.NoError(t, conn.Close())
	}
}

func TestOpen_FileDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "test.db")

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='users'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWithTx_Commit(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	ctx := context.Background()

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO share_tokens (id, resource_id, token, expires_at, created_at)
			VALUES ('s1', 'r1', 't1', '2030-01-01 00:00:00', '2025-01-01 00:00:00')`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM share_tokens"))
	assert.Equal(t, 1, count)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	ctx := context.Background()
	boom := errors.New("boom")

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO share_tokens (id, resource_id, token, expires_at, created_at)
			VALUES ('s1', 'r1', 't1', '2030-01-01 00:00:00', '2025-01-01 00:00:00')`)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM share_tokens"))
	assert.Zero(t, count)
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO share_tokens (id, resource_id, token, expires_at, created_at)
				VALUES ('s1', 'r1', 't1', '2030-01-01 00:00:00', '2025-01-01 00:00:00')`)
			panic("boom")
		})
	})

	var count int
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM share_tokens"))
	assert.Zero(t, count)
}
