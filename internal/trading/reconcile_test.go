package trading

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/portfolio"
)

func newReconcileFixture(t *testing.T) *portfolio.Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitSchema(db.Conn(), 10000))
	return portfolio.NewRepository(db.Conn(), zerolog.Nop())
}

func TestBuildReportReplaysLedger(t *testing.T) {
	repo := newReconcileFixture(t)

	// Buy 10 @ 100, buy 10 @ 120, sell 5 @ 130.
	require.NoError(t, repo.InsertTrade(repo.DB(), portfolio.Trade{
		TS: "2025-01-02T00:00:00Z", Symbol: "AAPL", Side: "BUY", Qty: 10, Price: 100, Notional: 1000,
	}))
	require.NoError(t, repo.InsertTrade(repo.DB(), portfolio.Trade{
		TS: "2025-01-03T00:00:00Z", Symbol: "AAPL", Side: "BUY", Qty: 10, Price: 120, Notional: 1200,
	}))
	require.NoError(t, repo.InsertTrade(repo.DB(), portfolio.Trade{
		TS: "2025-01-04T00:00:00Z", Symbol: "AAPL", Side: "SELL", Qty: 5, Price: 130, Notional: 650,
	}))
	require.NoError(t, repo.UpsertPosition(repo.DB(), portfolio.Position{
		Symbol: "AAPL", Qty: 15, AvgCost: 110, LastPrice: 130,
		UpdatedAt: "2025-01-04T00:00:00Z", ExecutedAt: "2025-01-02T00:00:00Z",
	}))
	require.NoError(t, repo.SetCash(repo.DB(), 8450))

	r, err := BuildReport(repo.DB(), repo, 10000, nil)
	require.NoError(t, err)

	assert.InDelta(t, 2200, r.TotalInvested, 1e-9)
	assert.InDelta(t, 650, r.TotalSold, 1e-9)
	// 10000 - 1000 - 1200 + 650.
	assert.InDelta(t, 8450, r.ExpectedCash, 1e-9)
	assert.InDelta(t, 8450, r.ActualCash, 1e-9)
	// Replayed average cost is 110; selling 5 @ 130 realizes 100.
	assert.InDelta(t, 100, r.RealizedPnL, 1e-9)
	require.Len(t, r.Positions, 1)
	assert.InDelta(t, 15*110, r.TotalCostBasis, 1e-9)
	assert.InDelta(t, 15*130, r.TotalMV, 1e-9)
	assert.InDelta(t, 15*20, r.UnrealizedPnL, 1e-9)

	// Ledger and positions table agree, so no deltas.
	assert.Empty(t, r.Deltas)

	require.Len(t, r.Trades, 3)
	assert.InDelta(t, 9000, r.Trades[0].CashAfter, 1e-9)
	assert.InDelta(t, 7800, r.Trades[1].CashAfter, 1e-9)
	assert.InDelta(t, 8450, r.Trades[2].CashAfter, 1e-9)
}

func TestBuildReportFlagsDrift(t *testing.T) {
	repo := newReconcileFixture(t)

	require.NoError(t, repo.InsertTrade(repo.DB(), portfolio.Trade{
		TS: "2025-01-02T00:00:00Z", Symbol: "AAPL", Side: "BUY", Qty: 10, Price: 100, Notional: 1000,
	}))
	// Positions table says 8 shares while the ledger implies 10.
	require.NoError(t, repo.UpsertPosition(repo.DB(), portfolio.Position{
		Symbol: "AAPL", Qty: 8, AvgCost: 100, LastPrice: 100,
		UpdatedAt: "2025-01-02T00:00:00Z", ExecutedAt: "2025-01-02T00:00:00Z",
	}))

	r, err := BuildReport(repo.DB(), repo, 10000, nil)
	require.NoError(t, err)

	require.Len(t, r.Deltas, 1)
	d := r.Deltas[0]
	assert.Equal(t, "AAPL", d.Symbol)
	assert.InDelta(t, 10, d.ExpectedQty, 1e-9)
	assert.InDelta(t, 8, d.ActualQty, 1e-9)
	assert.Equal(t, "BUY AAPL 2.000000 sh (market, DAY)", d.Correction)
}

func TestBuildReportAgainstBroker(t *testing.T) {
	repo := newReconcileFixture(t)

	require.NoError(t, repo.InsertTrade(repo.DB(), portfolio.Trade{
		TS: "2025-01-02T00:00:00Z", Symbol: "AAPL", Side: "BUY", Qty: 10, Price: 100, Notional: 1000,
	}))

	// Broker holds extra shares in a symbol the ledger never traded.
	brokerQty := map[string]float64{"AAPL": 10, "MSFT": 2}
	r, err := BuildReport(repo.DB(), repo, 10000, brokerQty)
	require.NoError(t, err)

	require.Len(t, r.Deltas, 1)
	d := r.Deltas[0]
	assert.Equal(t, "MSFT", d.Symbol)
	assert.Equal(t, "SELL MSFT 2.000000 sh (market, DAY)", d.Correction)
}

func TestReportRender(t *testing.T) {
	repo := newReconcileFixture(t)
	require.NoError(t, repo.InsertTrade(repo.DB(), portfolio.Trade{
		TS: "2025-01-02T00:00:00Z", Symbol: "AAPL", Side: "BUY", Qty: 10, Price: 100, Notional: 1000,
	}))
	require.NoError(t, repo.UpsertPosition(repo.DB(), portfolio.Position{
		Symbol: "AAPL", Qty: 10, AvgCost: 100, LastPrice: 110,
		UpdatedAt: "2025-01-02T00:00:00Z", ExecutedAt: "2025-01-02T00:00:00Z",
	}))

	r, err := BuildReport(repo.DB(), repo, 10000, nil)
	require.NoError(t, err)

	out := r.Render()
	assert.True(t, strings.Contains(out, "PORTFOLIO RECONCILIATION REPORT"))
	assert.Contains(t, out, "STARTING BALANCE: $10000.00")
	assert.Contains(t, out, "TRANSACTION HISTORY")
	assert.Contains(t, out, "CURRENT POSITIONS")
	assert.Contains(t, out, "Expected Cash Balance:            $9000.00")
	assert.NotContains(t, out, "QUANTITY DELTAS")
}
