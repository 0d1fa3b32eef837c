package market

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kginvest/internal/database"
)

func newTestRepo(t *testing.T) *SnapshotRepo {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitSchema(db.Conn(), 10000))
	return NewSnapshotRepo(db.Conn(), zerolog.Nop())
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	latest, err := repo.Latest(repo.DB())
	require.NoError(t, err)
	assert.Nil(t, latest)

	in := Snapshot{
		TS:     "2025-06-10T20:00:00Z",
		Prices: map[string]Quote{"AAPL": {Current: 200, Previous: 198, ChangePct: 1.01}},
		Bells:  map[string]Quote{"^VIX": {Current: 15, ChangePct: -2.5}},
		Indicators: map[string]Indicators{
			"AAPL": {Mom5: 0.012, Mom20: 0.034, Volatility: 0.011, ZScore: 1.2, RSI: 61.5},
		},
		Signals: Signals{RiskOff: 0.42, RatesUp: 0.5, OilShock: 0.5, SemiPulse: 0.55},
	}
	id, err := repo.Insert(repo.DB(), in)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	latest, err = repo.Latest(repo.DB())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, id, latest.SnapshotID)
	assert.Equal(t, in.Prices["AAPL"].Current, latest.Prices["AAPL"].Current)
	assert.Equal(t, in.Bells["^VIX"].ChangePct, latest.Bells["^VIX"].ChangePct)
	assert.Equal(t, in.Indicators["AAPL"], latest.Indicators["AAPL"])
	assert.Equal(t, in.Signals, latest.Signals)
}

func TestSnapshotTrimKeepsTail(t *testing.T) {
	repo := newTestRepo(t)

	for i := 0; i < 10; i++ {
		_, err := repo.Insert(repo.DB(), Snapshot{
			TS:     fmt.Sprintf("2025-06-10T20:00:%02dZ", i),
			Prices: map[string]Quote{}, Bells: map[string]Quote{},
			Indicators: map[string]Indicators{},
		})
		require.NoError(t, err)
	}

	require.NoError(t, repo.Trim(repo.DB(), 3))

	count, err := repo.Count(repo.DB())
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	latest, err := repo.Latest(repo.DB())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2025-06-10T20:00:09Z", latest.TS)
}
