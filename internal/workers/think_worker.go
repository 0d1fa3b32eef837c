package workers

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/committee"
	"github.com/aristath/kginvest/internal/config"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/metrics"
	"github.com/aristath/kginvest/internal/portfolio"
	"github.com/aristath/kginvest/internal/trading"
)

// ThinkWorker runs the committee each tick: propose a plan, score it,
// persist the insight, and when allowed, execute the starred plan.
// Ideas are generated even while the trading window is closed; starred
// plans produced then are queued instead of applied.
type ThinkWorker struct {
	*Worker
	cfg       *config.Config
	committee *committee.Committee
	insights  *committee.InsightRepo
	snapshots *market.SnapshotRepo
	repo      *portfolio.Repository
	executor  trading.TradeExecutor
	log       zerolog.Logger
}

// NewThinkWorker wires the think loop.
func NewThinkWorker(cfg *config.Config, com *committee.Committee, insights *committee.InsightRepo, snapshots *market.SnapshotRepo, repo *portfolio.Repository, executor trading.TradeExecutor, log zerolog.Logger) *ThinkWorker {
	w := &ThinkWorker{
		cfg:       cfg,
		committee: com,
		insights:  insights,
		snapshots: snapshots,
		repo:      repo,
		executor:  executor,
		log:       log.With().Str("worker", "think").Logger(),
	}
	w.Worker = NewWorker("think", cfg.ThinkInterval(), w.step, log)
	return w
}

func (w *ThinkWorker) step() (string, error) {
	snap, err := w.snapshots.Latest(w.snapshots.DB())
	if err != nil {
		return "think", err
	}
	if snap == nil {
		return "think", nil
	}

	db := w.insights.DB()
	st, err := w.repo.State(db, snap.Prices, w.cfg.StartCash)
	if err != nil {
		return "think", err
	}
	positions, err := w.repo.PositionsAsMap(db)
	if err != nil {
		return "think", err
	}
	tradeHist, err := w.repo.RecentTradeSummary(db, 12)
	if err != nil {
		return "think", err
	}

	canTradeNow := market.CanTradeNow(w.cfg.TradeAnytime, time.Now())

	plan := w.committee.Propose(committee.PromptInput{
		Investibles:  w.cfg.Investibles,
		Bellwethers:  w.cfg.Bellwethers,
		Prices:       snap.Prices,
		Indicators:   snap.Indicators,
		Signals:      snap.Signals,
		State:        *st,
		Positions:    positions,
		TradeHistory: tradeHist,
		Guardrails:   guardrails(w.cfg),
	})

	crit := committee.CriticScore(plan.Explanation, plan.Decisions, plan.Confidence, w.cfg.ExplanationMinLength)
	starred := crit >= w.cfg.StarThreshold
	title := committee.Title(snap.Signals)

	var insightID int64
	err = database.WithTransaction(db, func(tx *sql.Tx) error {
		id, err := w.insights.Insert(tx, portfolio.UTCNow(), title, plan, crit, starred, "new", snap.SnapshotID)
		if err != nil {
			return err
		}
		insightID = id
		return w.repo.LogEvent(tx, "think", "proposal",
			fmt.Sprintf("id=%d starred=%d score=%.2f conf=%.2f", id, boolInt(starred), crit, plan.Confidence))
	})
	if err != nil {
		return "think", err
	}

	w.AddCounter("insights_created", 1)
	metrics.InsightsCreated.WithLabelValues(fmt.Sprintf("%t", starred)).Inc()
	if starred {
		w.AddCounter("insights_starred", 1)
	}

	if w.cfg.AutoTrade && starred && canTradeNow {
		err = database.WithTransaction(db, func(tx *sql.Tx) error {
			res, err := w.executor.Execute(tx, plan.Decisions, snap.Prices,
				fmt.Sprintf("autotrade insight %d (score=%.2f)", insightID, crit), insightID)
			if err != nil {
				return err
			}
			for _, slice := range res.Executed {
				metrics.TradesExecuted.WithLabelValues(slice.Side).Inc()
			}
			if err := w.insights.UpdateStatus(tx, insightID, "applied"); err != nil {
				return err
			}
			return w.repo.LogEvent(tx, "trade", "autotrade",
				fmt.Sprintf("id=%d executed=%d skipped=%d", insightID, len(res.Executed), len(res.Skipped)))
		})
		if err != nil {
			return "think", err
		}
		w.AddCounter("trades_applied", 1)
	} else if w.cfg.AutoTrade && starred {
		if err := w.insights.UpdateStatus(db, insightID, "queued"); err != nil {
			return "think", err
		}
	}
	return "think", nil
}

func guardrails(cfg *config.Config) committee.Guardrails {
	return committee.Guardrails{
		MinCashBufferPct:   cfg.MinCashBufferPct,
		MaxBuyEquityPct:    cfg.MaxBuyEquityPctPerCycle,
		MaxSellHoldingPct:  cfg.MaxSellHoldingPctPerCycle,
		MaxSymbolWeightPct: cfg.MaxSymbolWeightPct,
		MinTradeNotional:   cfg.MinTradeNotional,
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
