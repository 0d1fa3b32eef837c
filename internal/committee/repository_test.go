package committee

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kginvest/internal/database"
)

func newTestInsightRepo(t *testing.T) *InsightRepo {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitSchema(db.Conn(), 10000))
	return NewInsightRepo(db.Conn(), zerolog.Nop())
}

func samplePlan() Plan {
	return Plan{
		Agents: map[string]any{"macro": map[string]any{"regime": "risk-on"}},
		Decisions: []Decision{
			{Ticker: "AAPL", Action: "BUY", AllocationPct: 7, Note: "leader"},
			{Ticker: "MSFT", Action: "HOLD"},
		},
		Explanation: "Buying AAPL because momentum is strong.",
		Confidence:  0.8,
	}
}

func TestInsightInsertAndGet(t *testing.T) {
	repo := newTestInsightRepo(t)

	id, err := repo.Insert(repo.DB(), "2025-06-10T20:00:00Z", "Agent committee plan",
		samplePlan(), 0.75, true, "new", 3)
	require.NoError(t, err)

	ins, err := repo.Get(repo.DB(), id)
	require.NoError(t, err)
	require.NotNil(t, ins)
	assert.Equal(t, "Agent committee plan", ins.Title)
	assert.True(t, ins.Starred)
	assert.Equal(t, "new", ins.Status)
	assert.Equal(t, int64(3), ins.EvidenceSnapshotID)

	decisions, err := ins.Decisions()
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "AAPL", decisions[0].Ticker)

	missing, err := repo.Get(repo.DB(), 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsightStatusTransitions(t *testing.T) {
	repo := newTestInsightRepo(t)
	id, err := repo.Insert(repo.DB(), "2025-06-10T20:00:00Z", "t", samplePlan(), 0.5, true, "new", 0)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(repo.DB(), id, "queued"))
	queued, err := repo.ListByStatus(repo.DB(), "queued")
	require.NoError(t, err)
	require.Len(t, queued, 1)

	require.NoError(t, repo.UpdateStatus(repo.DB(), id, "applied"))
	queued, err = repo.ListByStatus(repo.DB(), "queued")
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestRecentStarredOrdering(t *testing.T) {
	repo := newTestInsightRepo(t)
	for i, starred := range []bool{true, false, true, true} {
		_, err := repo.Insert(repo.DB(), "2025-06-10T20:00:00Z", "t", samplePlan(), 0.5, starred, "new", int64(i))
		require.NoError(t, err)
	}

	got, err := repo.RecentStarred(repo.DB(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first, unstarred rows skipped.
	assert.Equal(t, int64(3), got[0].EvidenceSnapshotID)
	assert.Equal(t, int64(2), got[1].EvidenceSnapshotID)
	for _, ins := range got {
		assert.True(t, ins.Starred)
	}
}
