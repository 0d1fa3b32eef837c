// Package trading turns sanitized committee decisions into trades:
// a guard-railed paper executor against the local ledger, a brokered
// variant routed through Alpaca, and a reconciliation engine.
package trading

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/committee"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/portfolio"
)

const residualEps = 1e-8

// ExecutedSlice is one filled order slice.
type ExecutedSlice struct {
	Ticker   string  `json:"ticker"`
	Side     string  `json:"side"`
	Shares   float64 `json:"shares"`
	Price    float64 `json:"price"`
	Notional float64 `json:"notional"`
}

// Result summarizes one executor run.
type Result struct {
	Executed []ExecutedSlice `json:"executed"`
	Skipped  []string        `json:"skipped"`
	Cash     float64         `json:"cash"`
}

// TradeExecutor is the routing point between the paper ledger and the
// brokered variant.
type TradeExecutor interface {
	Execute(q database.Queryer, decisions []committee.Decision, prices map[string]market.Quote, reason string, insightID int64) (*Result, error)
}

// Executor applies decisions to the paper ledger under guard rails.
// SELLs run first so freed cash is available to the BUY pass.
type Executor struct {
	repo      *portfolio.Repository
	rails     committee.Guardrails
	startCash float64
	log       zerolog.Logger
}

// NewExecutor creates a paper executor.
func NewExecutor(repo *portfolio.Repository, rails committee.Guardrails, startCash float64, log zerolog.Logger) *Executor {
	return &Executor{
		repo:      repo,
		rails:     rails,
		startCash: startCash,
		log:       log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs the SELL pass then the BUY pass inside the caller's
// transaction. Cash is written back once at the end.
func (e *Executor) Execute(q database.Queryer, decisions []committee.Decision, prices map[string]market.Quote, reason string, insightID int64) (*Result, error) {
	cash, err := e.repo.Cash(q, e.startCash)
	if err != nil {
		return nil, err
	}
	st, err := e.repo.State(q, prices, e.startCash)
	if err != nil {
		return nil, err
	}
	equity := st.Equity

	mvBySym := map[string]float64{}
	qtyBySym := map[string]float64{}
	for _, p := range st.Positions {
		mvBySym[p.Symbol] = p.MV
		qtyBySym[p.Symbol] = p.Qty
	}

	buyBudget := equity * (e.rails.MaxBuyEquityPct / 100.0)
	cashBuffer := equity * (e.rails.MinCashBufferPct / 100.0)

	res := &Result{Executed: []ExecutedSlice{}, Skipped: []string{}}
	reason = truncateReason(reason)
	now := portfolio.UTCNow()

	// SELL pass frees cash first.
	for _, d := range decisions {
		if d.Action != "SELL" {
			continue
		}
		sym := d.Ticker
		quote, ok := prices[sym]
		if !ok {
			continue
		}
		have := qtyBySym[sym]
		if have <= 0 {
			continue
		}
		pct := d.AllocationPct
		if pct > e.rails.MaxSellHoldingPct {
			pct = e.rails.MaxSellHoldingPct
		}
		if pct <= 0 {
			continue
		}
		sellSh := have * (pct / 100.0)
		p := quote.Current
		notional := sellSh * p
		if notional < e.rails.MinTradeNotional {
			res.Skipped = append(res.Skipped, fmt.Sprintf("SELL %s notional too small", sym))
			continue
		}

		newHave := have - sellSh
		cash += notional
		qtyBySym[sym] = newHave
		mvBySym[sym] = newHave * p

		if newHave <= residualEps {
			if err := e.repo.DeletePosition(q, sym); err != nil {
				return nil, err
			}
		} else {
			if err := e.repo.UpdatePositionQty(q, sym, newHave, p); err != nil {
				return nil, err
			}
		}
		if err := e.repo.InsertTrade(q, portfolio.Trade{
			TS: now, Symbol: sym, Side: "SELL",
			Qty: sellSh, Price: p, Notional: notional,
			Reason: reason, InsightID: insightID,
		}); err != nil {
			return nil, err
		}
		res.Executed = append(res.Executed, ExecutedSlice{sym, "SELL", sellSh, p, notional})
	}

	// BUY pass spends against the cycle budget and the cash buffer.
	for _, d := range decisions {
		if d.Action != "BUY" {
			continue
		}
		sym := d.Ticker
		quote, ok := prices[sym]
		if !ok {
			continue
		}
		if d.AllocationPct <= 0 {
			continue
		}
		p := quote.Current
		if p <= 0 {
			continue
		}

		spendable := cash - cashBuffer
		if spendable < 0 {
			spendable = 0
		}
		if spendable < e.rails.MinTradeNotional {
			res.Skipped = append(res.Skipped, "BUY: cash buffer prevents spending")
			break
		}

		notional := equity * (d.AllocationPct / 100.0)
		if notional > buyBudget {
			notional = buyBudget
		}
		if notional > spendable {
			notional = spendable
		}
		if notional < e.rails.MinTradeNotional {
			res.Skipped = append(res.Skipped, fmt.Sprintf("BUY %s notional too small", sym))
			continue
		}

		currentMV := mvBySym[sym]
		cap := equity * (e.rails.MaxSymbolWeightPct / 100.0)
		if currentMV >= cap {
			res.Skipped = append(res.Skipped, fmt.Sprintf("BUY %s cap reached", sym))
			continue
		}
		if room := cap - currentMV; notional > room {
			notional = room
		}
		if notional < e.rails.MinTradeNotional {
			res.Skipped = append(res.Skipped, fmt.Sprintf("BUY %s cap residual too small", sym))
			continue
		}

		shares := notional / p
		cash -= notional
		buyBudget -= notional

		have := qtyBySym[sym]
		prev, err := e.repo.GetPosition(q, sym)
		if err != nil {
			return nil, err
		}
		avg := p
		executedAt := now
		if prev != nil {
			avg = prev.AvgCost
			if prev.ExecutedAt != "" {
				executedAt = prev.ExecutedAt
			}
		}
		newQty := have + shares
		denom := newQty
		if denom < 1e-9 {
			denom = 1e-9
		}
		newAvg := (avg*have + p*shares) / denom

		qtyBySym[sym] = newQty
		mvBySym[sym] = newQty * p

		if err := e.repo.UpsertPosition(q, portfolio.Position{
			Symbol: sym, Qty: newQty, AvgCost: newAvg,
			LastPrice: p, UpdatedAt: now, ExecutedAt: executedAt,
		}); err != nil {
			return nil, err
		}
		if err := e.repo.InsertTrade(q, portfolio.Trade{
			TS: now, Symbol: sym, Side: "BUY",
			Qty: shares, Price: p, Notional: notional,
			Reason: reason, InsightID: insightID,
		}); err != nil {
			return nil, err
		}
		res.Executed = append(res.Executed, ExecutedSlice{sym, "BUY", shares, p, notional})

		if buyBudget < e.rails.MinTradeNotional {
			break
		}
	}

	if err := e.repo.SetCash(q, cash); err != nil {
		return nil, err
	}
	res.Cash = cash
	return res, nil
}

func truncateReason(reason string) string {
	if len(reason) > 400 {
		return reason[:400]
	}
	return reason
}
