package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestNew_AndMigrate(t *testing.T) {
	db := newTestDB(t, "portfolio")

	// Schema applied: tables exist
	var n int
	err := db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('portfolios','rebalances','holdings','strategy_parameters')",
	).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Migrate is idempotent
	require.NoError(t, db.Migrate())
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "other.db"),
		Name: "other",
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "cache")
	require.NoError(t, db.QuickCheck(context.Background()))
	require.NoError(t, db.HealthCheck(context.Background()))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t, "universe")

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO instruments (symbol, universe) VALUES ('2330.TW', 'taiwan50')"); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM instruments").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_Commits(t *testing.T) {
	db := newTestDB(t, "universe")

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO instruments (symbol, universe) VALUES ('2330.TW', 'taiwan50')")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM instruments").Scan(&count))
	assert.Equal(t, 1, count)
}
