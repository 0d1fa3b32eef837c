package workers

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/config"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/graph"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/portfolio"
)

const pairAssessCooldown = time.Hour

// DreamWorker maintains the knowledge graph: each tick it assesses one
// pair (investible-bellwether, option-bellwether, or option-option),
// derives heuristic channels, and occasionally lets the LLM adjudicate.
type DreamWorker struct {
	*Worker
	cfg         *config.Config
	engine      *graph.Engine
	adjudicator *graph.Adjudicator
	snapshots   *market.SnapshotRepo
	repo        *portfolio.Repository
	rng         *rand.Rand
	log         zerolog.Logger
}

// NewDreamWorker wires the dream loop.
func NewDreamWorker(cfg *config.Config, engine *graph.Engine, adjudicator *graph.Adjudicator, snapshots *market.SnapshotRepo, repo *portfolio.Repository, log zerolog.Logger) *DreamWorker {
	w := &DreamWorker{
		cfg:         cfg,
		engine:      engine,
		adjudicator: adjudicator,
		snapshots:   snapshots,
		repo:        repo,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         log.With().Str("worker", "dream").Logger(),
	}
	w.Worker = NewWorker("dream", cfg.DreamInterval(), w.step, log)
	return w
}

func (w *DreamWorker) step() (string, error) {
	var options []graph.OptionMeta
	if w.cfg.OptionsEnabled {
		var err error
		options, err = w.engine.ListOptionContracts(w.engine.DB())
		if err != nil {
			return "assess_pair", err
		}
	}

	r := w.rng.Float64()
	switch {
	case len(options) >= 2 && r >= 0.80:
		return w.assessOptionPair(options)
	case len(options) >= 1 && r >= 0.60:
		return w.assessOptionBellwether(options)
	default:
		return w.assessInvestibleBellwether()
	}
}

func (w *DreamWorker) assessInvestibleBellwether() (string, error) {
	inv := w.cfg.Investibles[w.rng.Intn(len(w.cfg.Investibles))]
	bells := w.cfg.AllBellwethers()
	bw := bells[w.rng.Intn(len(bells))]

	snap, err := w.snapshots.Latest(w.snapshots.DB())
	if err != nil {
		return "assess_pair", err
	}
	if snap == nil {
		return "assess_pair", nil
	}
	c := graph.ReturnCorrelation(snap.Prices[inv].History, snap.Prices[bw].History)

	channels := graph.HeuristicChannels(c, bw)
	note := fmt.Sprintf("corr=%+.2f (heuristic)", c)

	if w.rng.Float64() < 0.30 {
		adjudicated, llmNote := w.adjudicator.Adjudicate(inv, "investible", bw, "bellwether", c)
		if adjudicated != nil {
			channels = adjudicated
		}
		if llmNote != "" {
			note = llmNote
		}
	}

	return "assess_pair", w.updateEdge(inv, bw, channels, note)
}

func (w *DreamWorker) assessOptionBellwether(options []graph.OptionMeta) (string, error) {
	opt := options[w.rng.Intn(len(options))]
	bells := w.cfg.AllBellwethers()
	bw := bells[w.rng.Intn(len(bells))]

	snap, err := w.snapshots.Latest(w.snapshots.DB())
	if err != nil {
		return "assess_option", err
	}
	if snap == nil {
		return "assess_option", nil
	}
	c := graph.ReturnCorrelation(snap.Prices[opt.Underlying].History, snap.Prices[bw].History)

	channels := graph.OptionBellwetherChannels(opt, bw, c)
	note := fmt.Sprintf("corr=%+.2f (heuristic)", c)

	if w.rng.Float64() < 0.40 {
		adjudicated, llmNote := w.adjudicator.Adjudicate(opt.NodeID, "option", bw, "bellwether", c)
		if adjudicated != nil {
			channels = adjudicated
		}
		if llmNote != "" {
			note = llmNote
		}
	}

	return "assess_option", w.updateEdge(opt.NodeID, bw, channels, note)
}

func (w *DreamWorker) assessOptionPair(options []graph.OptionMeta) (string, error) {
	i := w.rng.Intn(len(options))
	j := w.rng.Intn(len(options) - 1)
	if j >= i {
		j++
	}
	a, b := options[i], options[j]

	// Recently assessed pairs churn the same edge; give them an hour.
	edge, err := w.engine.GetEdgeByPair(w.engine.DB(), a.NodeID, b.NodeID)
	if err != nil {
		return "assess_option_pair", err
	}
	if edge != nil && edge.LastAssessed != "" {
		if assessed, err := time.Parse(time.RFC3339, edge.LastAssessed); err == nil {
			if time.Since(assessed) < pairAssessCooldown {
				return "assess_option_pair", nil
			}
		}
	}

	ivc := graph.IVCorrelation(a.IVHistory, b.IVHistory)
	channels := graph.OptionPairChannels(a, b)
	note := fmt.Sprintf("iv_corr=%+.2f (heuristic)", ivc)

	if w.rng.Float64() < 0.50 {
		adjudicated, llmNote := w.adjudicator.Adjudicate(a.NodeID, "option", b.NodeID, "option", ivc)
		if adjudicated != nil {
			channels = adjudicated
		}
		if llmNote != "" {
			note = llmNote
		}
	}

	return "assess_option_pair", w.updateEdge(a.NodeID, b.NodeID, channels, note)
}

func (w *DreamWorker) updateEdge(a, b string, channels map[string]float64, note string) error {
	err := database.WithTransaction(w.engine.DB(), func(tx *sql.Tx) error {
		now := portfolio.UTCNow()
		eid, err := w.engine.EnsureEdgeID(tx, a, b)
		if err != nil {
			return err
		}
		if err := w.engine.ReplaceChannels(tx, eid, channels, now); err != nil {
			return err
		}
		if err := w.engine.TouchNodes(tx, a, b, now); err != nil {
			return err
		}
		return w.repo.LogEvent(tx, "dream", "assess_pair", fmt.Sprintf("%s<->%s %s", a, b, note))
	})
	if err != nil {
		return err
	}
	w.AddCounter("edges_updated", 1)
	return nil
}
