package graph

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kginvest/internal/database"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitSchema(db.Conn(), 10000))
	return NewEngine(db.Conn(), zerolog.Nop())
}

func TestEnsureEdgeIDNormalizesPair(t *testing.T) {
	e := newTestEngine(t)
	now := "2025-06-10T20:00:00Z"
	require.NoError(t, e.EnsureNode(e.DB(), "AAPL", "investible", "AAPL", "", now))
	require.NoError(t, e.EnsureNode(e.DB(), "SPY", "bellwether", "SPY", "", now))

	id1, err := e.EnsureEdgeID(e.DB(), "SPY", "AAPL")
	require.NoError(t, err)
	id2, err := e.EnsureEdgeID(e.DB(), "AAPL", "SPY")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	edge, err := e.GetEdgeByPair(e.DB(), "SPY", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, "AAPL", edge.NodeA)
	assert.Equal(t, "SPY", edge.NodeB)
}

func TestReplaceChannelsDerivesWeightAndTop(t *testing.T) {
	e := newTestEngine(t)
	now := "2025-06-10T20:00:00Z"
	require.NoError(t, e.EnsureNode(e.DB(), "A", "investible", "A", "", now))
	require.NoError(t, e.EnsureNode(e.DB(), "B", "investible", "B", "", now))
	id, err := e.EnsureEdgeID(e.DB(), "A", "B")
	require.NoError(t, err)

	channels := map[string]float64{"correlates": 0.7, "liquidity_coupled": 0.9}
	require.NoError(t, e.ReplaceChannels(e.DB(), id, channels, now))

	edge, err := e.GetEdge(e.DB(), id)
	require.NoError(t, err)
	expectedWeight, expectedTop := WeightAndTop(channels)
	assert.InDelta(t, expectedWeight, edge.Weight, 1e-9)
	assert.Equal(t, expectedTop, edge.TopChannel)
	assert.Equal(t, 1, edge.AssessmentCount)

	// A reassessment fully replaces the channel set.
	require.NoError(t, e.ReplaceChannels(e.DB(), id, map[string]float64{"inverse_correlates": 0.5}, now))
	got, err := e.Channels(e.DB(), id)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "inverse_correlates", got[0].Channel)

	edge, err = e.GetEdge(e.DB(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, edge.AssessmentCount)
}

func TestTouchNodesMaintainsDegree(t *testing.T) {
	e := newTestEngine(t)
	now := "2025-06-10T20:00:00Z"
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, e.EnsureNode(e.DB(), id, "investible", id, "", now))
	}
	_, err := e.EnsureEdgeID(e.DB(), "A", "B")
	require.NoError(t, err)
	_, err = e.EnsureEdgeID(e.DB(), "A", "C")
	require.NoError(t, err)

	require.NoError(t, e.TouchNodes(e.DB(), "A", "B", now))

	a, err := e.GetNode(e.DB(), "A")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Degree)
	assert.InDelta(t, 0.005, a.Score, 1e-9)

	b, err := e.GetNode(e.DB(), "B")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Degree)
}

func TestBootstrapIfEmpty(t *testing.T) {
	e := newTestEngine(t)
	investibles := []string{"AAPL", "MSFT"}
	bellwethers := []string{"SPY", "^VIX", "UUP", "^TNX", "CL=F", "TSM"}

	require.NoError(t, e.BootstrapIfEmpty(investibles, bellwethers))

	nodes, err := e.NodeCount(e.DB())
	require.NoError(t, err)
	// 2 investibles + 6 bellwethers + 8 derived + 4 agents.
	assert.Equal(t, 20, nodes)

	edges, err := e.EdgeCount(e.DB())
	require.NoError(t, err)
	assert.Equal(t, 10, edges)

	sig, err := e.GetNode(e.DB(), "SIG_RISK_OFF")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "signal", sig.Kind)
	// ^VIX, UUP, SPY feed in; REG_RISK_OFF and REG_RISK_ON hang off it.
	assert.Equal(t, 5, sig.Degree)

	edge, err := e.GetEdgeByPair(e.DB(), "^VIX", "SIG_RISK_OFF")
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, "drives:^VIX->SIG_RISK_OFF", edge.TopChannel)
	assert.InDelta(t, 0.9*0.80, edge.Weight, 1e-9)

	// Second call is a no-op.
	require.NoError(t, e.BootstrapIfEmpty(investibles, bellwethers))
	nodes2, err := e.NodeCount(e.DB())
	require.NoError(t, err)
	assert.Equal(t, nodes, nodes2)
}

func TestOptionContractRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	now := "2025-06-10T20:00:00Z"

	meta := OptionMeta{
		NodeID:     "OPT:AAPL:call:200.00:2025-09-19",
		Underlying: "AAPL",
		OptType:    "call",
		Strike:     200,
		Expiration: "2025-09-19",
		IV:         0.31,
		Delta:      0.55,
		Vega:       0.12,
	}
	require.NoError(t, e.UpsertOptionContract(e.DB(), meta, now))

	got, err := e.GetOptionContract(e.DB(), meta.NodeID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []float64{0.31}, got.IVHistory)

	node, err := e.GetNode(e.DB(), meta.NodeID)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "option_call", node.Kind)

	// A refresh appends to the stored IV history.
	meta.IV = 0.35
	require.NoError(t, e.UpsertOptionContract(e.DB(), meta, now))
	got, err = e.GetOptionContract(e.DB(), meta.NodeID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.31, 0.35}, got.IVHistory)

	all, err := e.ListOptionContracts(e.DB())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
