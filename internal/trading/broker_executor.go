package trading

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/committee"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/portfolio"
)

// Broker is the order surface the brokered executor needs.
type Broker interface {
	GetAccount() (*Account, error)
	GetPositions() ([]BrokerPosition, error)
	SubmitMarketOrder(symbol, side string, qty float64) (*Order, error)
}

// BrokerExecutor applies decisions through a live/paper broker under
// the same guard rails as the local executor. The local ledger mirrors
// the broker: each run starts by syncing account and positions, and a
// slice mutates local state only after the order is acknowledged.
type BrokerExecutor struct {
	broker    Broker
	repo      *portfolio.Repository
	rails     committee.Guardrails
	startCash float64
	log       zerolog.Logger
}

// NewBrokerExecutor creates a broker-routed executor.
func NewBrokerExecutor(broker Broker, repo *portfolio.Repository, rails committee.Guardrails, startCash float64, log zerolog.Logger) *BrokerExecutor {
	return &BrokerExecutor{
		broker:    broker,
		repo:      repo,
		rails:     rails,
		startCash: startCash,
		log:       log.With().Str("component", "broker_executor").Logger(),
	}
}

// SyncAccount mirrors the broker cash balance locally. The first sync
// records the broker equity as the reconciliation baseline.
func (e *BrokerExecutor) SyncAccount(q database.Queryer) (*Account, error) {
	acct, err := e.broker.GetAccount()
	if err != nil {
		return nil, err
	}
	if err := e.repo.SetCash(q, acct.Cash); err != nil {
		return nil, err
	}
	start, err := e.repo.KVGet(q, "alpaca_start_balance")
	if err != nil {
		return nil, err
	}
	if start == nil {
		if err := e.repo.KVSet(q, "alpaca_start_balance",
			strconv.FormatFloat(acct.Equity, 'f', -1, 64)); err != nil {
			return nil, err
		}
		e.log.Info().Float64("equity", acct.Equity).Msg("stored broker starting balance")
	}
	return acct, nil
}

// SyncPositions mirrors broker holdings into the positions table.
// executed_at survives for rows already tracked locally; positions the
// broker no longer holds are removed.
func (e *BrokerExecutor) SyncPositions(q database.Queryer) ([]BrokerPosition, error) {
	brokerPositions, err := e.broker.GetPositions()
	if err != nil {
		return nil, err
	}
	now := portfolio.UTCNow()

	atBroker := make(map[string]bool, len(brokerPositions))
	for _, bp := range brokerPositions {
		atBroker[bp.Symbol] = true
		prev, err := e.repo.GetPosition(q, bp.Symbol)
		if err != nil {
			return nil, err
		}
		executedAt := now
		if prev != nil && prev.ExecutedAt != "" {
			executedAt = prev.ExecutedAt
		}
		if err := e.repo.UpsertPosition(q, portfolio.Position{
			Symbol: bp.Symbol, Qty: bp.Qty, AvgCost: bp.AvgEntryPrice,
			LastPrice: bp.CurrentPrice, UpdatedAt: now, ExecutedAt: executedAt,
		}); err != nil {
			return nil, err
		}
	}

	local, err := e.repo.PositionsAsMap(q)
	if err != nil {
		return nil, err
	}
	for sym := range local {
		if !atBroker[sym] {
			if err := e.repo.DeletePosition(q, sym); err != nil {
				return nil, err
			}
			e.log.Info().Str("symbol", sym).Msg("removed closed position")
		}
	}
	return brokerPositions, nil
}

// Execute syncs broker state, then runs the SELL pass and BUY pass.
// Order rejections skip the slice without touching local state.
func (e *BrokerExecutor) Execute(q database.Queryer, decisions []committee.Decision, prices map[string]market.Quote, reason string, insightID int64) (*Result, error) {
	if _, err := e.SyncAccount(q); err != nil {
		return nil, err
	}
	if _, err := e.SyncPositions(q); err != nil {
		return nil, err
	}

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
	tradeReason := brokerReason(reason)
	now := portfolio.UTCNow()

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

		if _, err := e.broker.SubmitMarketOrder(sym, "sell", sellSh); err != nil {
			e.log.Error().Err(err).Str("symbol", sym).Msg("sell order failed")
			res.Skipped = append(res.Skipped, fmt.Sprintf("SELL %s order failed: %s", sym, truncateErr(err)))
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
			Reason: tradeReason, InsightID: insightID,
		}); err != nil {
			return nil, err
		}
		res.Executed = append(res.Executed, ExecutedSlice{sym, "SELL", sellSh, p, notional})
	}

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

		if _, err := e.broker.SubmitMarketOrder(sym, "buy", shares); err != nil {
			e.log.Error().Err(err).Str("symbol", sym).Msg("buy order failed")
			res.Skipped = append(res.Skipped, fmt.Sprintf("BUY %s order failed: %s", sym, truncateErr(err)))
			continue
		}

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
			Reason: tradeReason, InsightID: insightID,
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

func brokerReason(reason string) string {
	if len(reason) > 390 {
		reason = reason[:390]
	}
	return "Alpaca: " + reason
}

func truncateErr(err error) string {
	s := err.Error()
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}
