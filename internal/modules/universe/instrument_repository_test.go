package universe

import (
	"testing"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *InstrumentRepository {
	t.Helper()
	db, err := database.New(database.Config{Path: t.TempDir() + "/universe.db", Name: "universe"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return NewInstrumentRepository(db.Conn(), zerolog.Nop())
}

func TestSyncAndGetByUniverse(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Sync("taiwan50", []domain.Instrument{
		{Symbol: "2330.TW", Name: "TSMC"},
		{Symbol: "2317.TW", Name: "Hon Hai"},
	})
	require.NoError(t, err)

	instruments, err := repo.GetByUniverse("taiwan50")
	require.NoError(t, err)
	require.Len(t, instruments, 2)
	assert.Equal(t, "2317.TW", instruments[0].Symbol)
	assert.Equal(t, "2330.TW", instruments[1].Symbol)
	assert.True(t, instruments[0].Active)
}

func TestSyncDeactivatesMissing(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Sync("taiwan50", []domain.Instrument{
		{Symbol: "2330.TW"},
		{Symbol: "2317.TW"},
	}))
	require.NoError(t, repo.Sync("taiwan50", []domain.Instrument{
		{Symbol: "2330.TW"},
	}))

	instruments, err := repo.GetByUniverse("taiwan50")
	require.NoError(t, err)
	require.Len(t, instruments, 1)
	assert.Equal(t, "2330.TW", instruments[0].Symbol)

	// Deactivated rows still count toward membership history
	count, err := repo.Count("taiwan50")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestServiceSeedsBuiltinUniverse(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	symbols, err := svc.Symbols("taiwan50")
	require.NoError(t, err)
	assert.Len(t, symbols, 50)
	assert.Contains(t, symbols, "2330.TW")
}

func TestServiceUnknownUniverse(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.Instruments("nasdaq100")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
