package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: profile,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchemaIdempotentAndSeedsCashOnce(t *testing.T) {
	db := newTestDB(t, ProfileLedger)

	require.NoError(t, InitSchema(db.Conn(), 10000))

	var cash string
	require.NoError(t, db.Conn().QueryRow("SELECT v FROM portfolio WHERE k='cash'").Scan(&cash))
	assert.Equal(t, "10000", cash)

	// A second init with a different start amount must not reseed.
	require.NoError(t, InitSchema(db.Conn(), 55555))
	require.NoError(t, db.Conn().QueryRow("SELECT v FROM portfolio WHERE k='cash'").Scan(&cash))
	assert.Equal(t, "10000", cash)

	for _, table := range []string{"nodes", "edges", "edge_channels", "snapshots", "positions",
		"trades", "insights", "dream_log", "ticker_lookups", "option_contracts", "price_cache"} {
		var n int
		require.NoError(t, db.Conn().QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n))
		assert.Equal(t, 1, n, "missing table %s", table)
	}
}

func TestWithTransactionCommitAndRollback(t *testing.T) {
	db := newTestDB(t, ProfileStandard)
	require.NoError(t, InitSchema(db.Conn(), 10000))

	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO meta(k, v) VALUES('a', '1')")
		return err
	}))

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO meta(k, v) VALUES('b', '2')"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM meta").Scan(&n))
	// Only the committed row survives.
	assert.Equal(t, 1, n)
}

func TestWithTransactionRecoversPanic(t *testing.T) {
	db := newTestDB(t, ProfileStandard)
	require.NoError(t, InitSchema(db.Conn(), 10000))

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
}

func TestWithTransactionNilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	require.Error(t, err)
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newTestDB(t, ProfileLedger)
	require.NoError(t, InitSchema(db.Conn(), 10000))

	require.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestWALCheckpoint(t *testing.T) {
	db := newTestDB(t, ProfileLedger)
	require.NoError(t, InitSchema(db.Conn(), 10000))

	require.NoError(t, db.WALCheckpoint(""))
	require.NoError(t, db.WALCheckpoint("PASSIVE"))
}
