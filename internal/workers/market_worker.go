package workers

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/config"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/portfolio"
)

const snapshotKeep = 1500

// MarketWorker owns the snapshot pipeline: fetch the universe, derive
// indicators and signals, and persist one snapshot per tick.
type MarketWorker struct {
	*Worker
	cfg       *config.Config
	router    *market.Router
	snapshots *market.SnapshotRepo
	repo      *portfolio.Repository
	log       zerolog.Logger
}

// NewMarketWorker wires the market loop.
func NewMarketWorker(cfg *config.Config, router *market.Router, snapshots *market.SnapshotRepo, repo *portfolio.Repository, log zerolog.Logger) *MarketWorker {
	w := &MarketWorker{
		cfg:       cfg,
		router:    router,
		snapshots: snapshots,
		repo:      repo,
		log:       log.With().Str("worker", "market").Logger(),
	}
	w.Worker = NewWorker("market", cfg.MarketInterval(), w.step, log)
	return w
}

func (w *MarketWorker) step() (string, error) {
	all := w.cfg.AllTickers()
	maxWorkers := 10
	if len(all) < maxWorkers {
		maxWorkers = len(all)
	}

	prices := w.router.FetchMany(all, maxWorkers)

	// Index/futures bellwethers only resolve via Yahoo regardless of the
	// configured provider.
	yf := w.router.FetchManyYahoo(w.cfg.BellwethersYF, maxWorkers)
	for sym, q := range yf {
		prices[sym] = q
	}

	if len(prices) == 0 {
		return "tick", errors.New("price fetch returned no symbols")
	}

	indicators := map[string]market.Indicators{}
	for _, t := range w.cfg.Investibles {
		if q, ok := prices[t]; ok {
			indicators[t] = market.ComputeIndicators(q.History)
		}
	}

	bells := map[string]market.Quote{}
	for _, b := range w.cfg.Bellwethers {
		if q, ok := prices[b]; ok {
			bells[b] = q
		}
	}
	signals := market.ComputeSignals(prices)

	total := len(all)
	err := database.WithTransaction(w.snapshots.DB(), func(tx *sql.Tx) error {
		if err := w.repo.MarkPositions(tx, prices); err != nil {
			return err
		}
		id, err := w.snapshots.Insert(tx, market.Snapshot{
			TS:         portfolio.UTCNow(),
			Prices:     prices,
			Bells:      bells,
			Indicators: indicators,
			Signals:    signals,
		})
		if err != nil {
			return err
		}
		if err := w.snapshots.Trim(tx, snapshotKeep); err != nil {
			return err
		}
		if err := w.repo.LogEvent(tx, "market", "tick",
			fmt.Sprintf("snapshot_id=%d have=%d/%d", id, len(prices), total)); err != nil {
			return err
		}
		for _, sym := range all {
			q, ok := prices[sym]
			if err := w.repo.InsertTickerLookup(tx, sym, ok, q.Current, q.ChangePct, q.Volume); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "tick", err
	}
	return "tick", nil
}
