package graph

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/kginvest/internal/database"
)

type seedNode struct {
	id, kind, label, desc string
}

var derivedNodes = []seedNode{
	{"SIG_RISK_OFF", "signal", "Risk-Off Pressure", "Higher when volatility rises, equities weaken, USD strengthens."},
	{"SIG_RATES_UP", "signal", "Rates Pressure", "Higher when long yields rise and duration suffers."},
	{"SIG_OIL_SHOCK", "signal", "Oil Shock", "Higher when crude spikes and inflation impulse rises."},
	{"SIG_SEMI_PULSE", "signal", "Semis Pulse", "Higher when semis leadership is strong."},
	{"REG_RISK_OFF", "regime", "Risk-Off Regime", "Volatility/funding dominate; prefer defensives/cash."},
	{"REG_RISK_ON", "regime", "Risk-On Regime", "Breadth improves; cyclicals/tech do better."},
	{"REG_INFLATION", "regime", "Inflation Pressure", "Energy + yields up; rotate exposures carefully."},
	{"NAR_STORY", "narrative", "Market Narrative", "A rolling narrative summary from the agent committee."},
}

var agentNodes = []seedNode{
	{"AGENT_MACRO", "agent", "Agent: Macro", "Summarizes bellwethers and regime."},
	{"AGENT_TECH", "agent", "Agent: Technical", "Scans indicators/momentum/mean-reversion."},
	{"AGENT_RISK", "agent", "Agent: Risk", "Controls drawdown/turnover/cash buffer; suggests trims."},
	{"AGENT_ALLOC", "agent", "Agent: Allocator", "Integrates inputs into final BUY/SELL/HOLD decisions."},
}

type seedEdge struct {
	a, b     string
	channels map[string]float64
}

var bootEdges = []seedEdge{
	{"^VIX", "SIG_RISK_OFF", map[string]float64{"drives:^VIX->SIG_RISK_OFF": 0.80}},
	{"UUP", "SIG_RISK_OFF", map[string]float64{"drives:UUP->SIG_RISK_OFF": 0.55}},
	{"SPY", "SIG_RISK_OFF", map[string]float64{"inverse_correlates": 0.55}},
	{"^TNX", "SIG_RATES_UP", map[string]float64{"drives:^TNX->SIG_RATES_UP": 0.75}},
	{"CL=F", "SIG_OIL_SHOCK", map[string]float64{"drives:CL=F->SIG_OIL_SHOCK": 0.70}},
	{"TSM", "SIG_SEMI_PULSE", map[string]float64{"drives:TSM->SIG_SEMI_PULSE": 0.55}},
	{"SIG_RISK_OFF", "REG_RISK_OFF", map[string]float64{"drives:SIG_RISK_OFF->REG_RISK_OFF": 0.70}},
	{"SIG_RISK_OFF", "REG_RISK_ON", map[string]float64{"inverse_correlates": 0.55}},
	{"SIG_OIL_SHOCK", "REG_INFLATION", map[string]float64{"drives:SIG_OIL_SHOCK->REG_INFLATION": 0.60}},
	{"AGENT_ALLOC", "NAR_STORY", map[string]float64{"narrative_supports": 0.60}},
}

// BootstrapIfEmpty seeds the graph once: ticker nodes, derived signal,
// regime, narrative, and agent nodes, plus the starter edge set. A
// non-empty node table makes this a no-op.
func (e *Engine) BootstrapIfEmpty(investibles, bellwethers []string) error {
	count, err := e.NodeCount(e.db)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	e.log.Info().Msg("bootstrapping knowledge graph")
	now := time.Now().UTC().Format(time.RFC3339)

	return database.WithTransaction(e.db, func(tx *sql.Tx) error {
		for _, t := range investibles {
			if err := e.EnsureNode(tx, t, "investible", t, fmt.Sprintf("Investible ticker %s.", t), now); err != nil {
				return err
			}
		}
		for _, b := range bellwethers {
			if err := e.EnsureNode(tx, b, "bellwether", b, fmt.Sprintf("Bellwether ticker %s.", b), now); err != nil {
				return err
			}
		}
		for _, n := range append(append([]seedNode{}, derivedNodes...), agentNodes...) {
			if err := e.EnsureNode(tx, n.id, n.kind, n.label, n.desc, now); err != nil {
				return err
			}
		}

		for _, se := range bootEdges {
			eid, err := e.EnsureEdgeID(tx, se.a, se.b)
			if err != nil {
				return err
			}
			if err := e.ReplaceChannels(tx, eid, se.channels, now); err != nil {
				return err
			}
		}

		return e.RecomputeAllDegrees(tx)
	})
}
