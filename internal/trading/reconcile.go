package trading

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/portfolio"
)

// TradeLine is one replayed trade with the running cash after it.
type TradeLine struct {
	Trade     portfolio.Trade
	CashAfter float64
}

// PositionLine is one current holding with derived values.
type PositionLine struct {
	Symbol      string
	Qty         float64
	AvgCost     float64
	LastPrice   float64
	CostBasis   float64
	MarketValue float64
	GainLoss    float64
	ReturnPct   float64
}

// QtyDelta is a per-symbol mismatch between the replayed ledger and the
// live positions table (or broker holdings), with the corrective market
// order that would close it. Corrections are reported, never submitted.
type QtyDelta struct {
	Symbol      string
	ExpectedQty float64
	ActualQty   float64
	Delta       float64
	Correction  string
}

// Report is the full reconciliation view of the ledger.
type Report struct {
	StartCash      float64
	Trades         []TradeLine
	TotalInvested  float64
	TotalSold      float64
	Positions      []PositionLine
	TotalCostBasis float64
	TotalMV        float64
	ExpectedCash   float64
	ActualCash     float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	Deltas         []QtyDelta
}

type replayLot struct {
	qty     float64
	avgCost float64
}

// BuildReport replays every trade against startCash and compares the
// outcome with the live tables. When brokerQty is non-nil the quantity
// deltas compare against the broker instead of the local replay target.
func BuildReport(q database.Queryer, repo *portfolio.Repository, startCash float64, brokerQty map[string]float64) (*Report, error) {
	trades, err := repo.ListTrades(q)
	if err != nil {
		return nil, err
	}
	positions, err := repo.ListPositions(q)
	if err != nil {
		return nil, err
	}
	cash, err := repo.Cash(q, startCash)
	if err != nil {
		return nil, err
	}

	r := &Report{StartCash: startCash, ActualCash: cash}

	running := startCash
	lots := map[string]*replayLot{}
	for _, t := range trades {
		switch t.Side {
		case "BUY":
			running -= t.Notional
			r.TotalInvested += t.Notional
			lot := lots[t.Symbol]
			if lot == nil {
				lot = &replayLot{}
				lots[t.Symbol] = lot
			}
			newQty := lot.qty + t.Qty
			denom := newQty
			if denom < 1e-9 {
				denom = 1e-9
			}
			lot.avgCost = (lot.avgCost*lot.qty + t.Price*t.Qty) / denom
			lot.qty = newQty
		case "SELL":
			running += t.Notional
			r.TotalSold += t.Notional
			if lot := lots[t.Symbol]; lot != nil {
				r.RealizedPnL += (t.Price - lot.avgCost) * t.Qty
				lot.qty -= t.Qty
				if lot.qty <= residualEps {
					delete(lots, t.Symbol)
				}
			}
		}
		r.Trades = append(r.Trades, TradeLine{Trade: t, CashAfter: running})
	}
	r.ExpectedCash = running

	for _, p := range positions {
		costBasis := p.Qty * p.AvgCost
		mv := p.Qty * p.LastPrice
		returnPct := 0.0
		if costBasis > 0 {
			returnPct = (mv - costBasis) / costBasis * 100
		}
		r.Positions = append(r.Positions, PositionLine{
			Symbol: p.Symbol, Qty: p.Qty, AvgCost: p.AvgCost, LastPrice: p.LastPrice,
			CostBasis: costBasis, MarketValue: mv, GainLoss: mv - costBasis, ReturnPct: returnPct,
		})
		r.TotalCostBasis += costBasis
		r.TotalMV += mv
	}
	r.UnrealizedPnL = r.TotalMV - r.TotalCostBasis

	actual := map[string]float64{}
	if brokerQty != nil {
		actual = brokerQty
	} else {
		for _, p := range positions {
			actual[p.Symbol] = p.Qty
		}
	}

	syms := map[string]bool{}
	for s := range lots {
		syms[s] = true
	}
	for s := range actual {
		syms[s] = true
	}
	ordered := make([]string, 0, len(syms))
	for s := range syms {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	for _, sym := range ordered {
		expected := 0.0
		if lot := lots[sym]; lot != nil {
			expected = lot.qty
		}
		have := actual[sym]
		delta := have - expected
		if math.Abs(delta) <= 1e-6 {
			continue
		}
		correction := fmt.Sprintf("SELL %s %.6f sh (market, DAY)", sym, delta)
		if delta < 0 {
			correction = fmt.Sprintf("BUY %s %.6f sh (market, DAY)", sym, -delta)
		}
		r.Deltas = append(r.Deltas, QtyDelta{
			Symbol: sym, ExpectedQty: expected, ActualQty: have,
			Delta: delta, Correction: correction,
		})
	}
	return r, nil
}

// Render formats the report for the terminal.
func (r *Report) Render() string {
	var b strings.Builder
	rule := strings.Repeat("=", 100)
	thin := strings.Repeat("-", 100)

	fmt.Fprintf(&b, "%s\nPORTFOLIO RECONCILIATION REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "STARTING BALANCE: $%.2f\n\n", r.StartCash)

	fmt.Fprintf(&b, "%s\nTRANSACTION HISTORY (Chronological)\n%s\n", rule, rule)
	fmt.Fprintf(&b, "%-4s %-26s %-8s %-6s %-12s %-12s %-12s %s\n",
		"ID", "Date/Time", "Symbol", "Side", "Qty", "Price", "Notional", "Cash After")
	fmt.Fprintln(&b, thin)
	for _, line := range r.Trades {
		t := line.Trade
		sign := "+"
		if t.Side == "BUY" {
			sign = "-"
		}
		fmt.Fprintf(&b, "%-4d %-26s %-8s %-6s %-12.6f $%-11.2f %s$%-10.2f $%.2f\n",
			t.TradeID, t.TS, t.Symbol, t.Side, t.Qty, t.Price, sign, t.Notional, line.CashAfter)
	}
	fmt.Fprintln(&b, thin)
	fmt.Fprintf(&b, "Total Invested (BUY):  $%.2f\n", r.TotalInvested)
	fmt.Fprintf(&b, "Total Sold (SELL):     $%.2f\n", r.TotalSold)
	fmt.Fprintf(&b, "Net Cash Deployed:     $%.2f\n\n", r.TotalInvested-r.TotalSold)

	fmt.Fprintf(&b, "%s\nCURRENT POSITIONS\n%s\n", rule, rule)
	fmt.Fprintf(&b, "%-8s %-12s %-12s %-12s %-14s %-14s %-12s %s\n",
		"Symbol", "Qty", "Avg Cost", "Last Price", "Cost Basis", "Market Value", "Gain/Loss", "Return %")
	fmt.Fprintln(&b, thin)
	for _, p := range r.Positions {
		fmt.Fprintf(&b, "%-8s %-12.6f $%-11.2f $%-11.2f $%-13.2f $%-13.2f %+-12.2f %+.2f%%\n",
			p.Symbol, p.Qty, p.AvgCost, p.LastPrice, p.CostBasis, p.MarketValue, p.GainLoss, p.ReturnPct)
	}
	fmt.Fprintln(&b, thin)

	fmt.Fprintf(&b, "\n%s\nPORTFOLIO RECONCILIATION\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Starting Cash:                    $%.2f\n", r.StartCash)
	fmt.Fprintf(&b, "Expected Cash Balance:            $%.2f\n", r.ExpectedCash)
	fmt.Fprintf(&b, "Actual Cash Balance:              $%.2f\n", r.ActualCash)
	fmt.Fprintf(&b, "Cash Difference:                  $%.2f\n\n", r.ActualCash-r.ExpectedCash)
	fmt.Fprintf(&b, "Cost Basis:                       $%.2f\n", r.TotalCostBasis)
	fmt.Fprintf(&b, "Market Value:                     $%.2f\n", r.TotalMV)
	fmt.Fprintf(&b, "Realized Gain/Loss:               $%.2f\n", r.RealizedPnL)
	fmt.Fprintf(&b, "Unrealized Gain/Loss:             $%.2f\n", r.UnrealizedPnL)
	fmt.Fprintf(&b, "TOTAL PORTFOLIO VALUE:            $%.2f\n", r.ActualCash+r.TotalMV)
	total := r.ActualCash + r.TotalMV
	fmt.Fprintf(&b, "Total Gain:                       $%.2f\n", total-r.StartCash)
	if r.StartCash > 0 {
		fmt.Fprintf(&b, "Total Return:                     %.2f%%\n", (total-r.StartCash)/r.StartCash*100)
	}

	if len(r.Deltas) > 0 {
		fmt.Fprintf(&b, "\n%s\nQUANTITY DELTAS (corrections are suggestions only)\n%s\n", rule, rule)
		for _, d := range r.Deltas {
			fmt.Fprintf(&b, "%-8s expected %.6f actual %.6f delta %+.6f -> %s\n",
				d.Symbol, d.ExpectedQty, d.ActualQty, d.Delta, d.Correction)
		}
	}
	return b.String()
}
