package committee

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/kginvest/internal/market"
)

// Fallback builds a conservative no-LLM plan: rank by mom20 minus twice
// volatility with an overbought penalty, then either trim the weak tail
// under risk-off or add small to leaders otherwise.
func Fallback(investibles []string, indicators map[string]market.Indicators, signals market.Signals, minCashBufferPct float64) Plan {
	riskOff := signals.RiskOff

	type scored struct {
		score  float64
		ticker string
	}
	ranked := make([]scored, 0, len(investibles))
	for _, t := range investibles {
		ind := indicators[t]
		s := ind.Mom20 - 2.0*ind.Volatility
		if ind.RSI > 72 {
			s -= 0.01
		}
		ranked = append(ranked, scored{s, t})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].ticker > ranked[j].ticker
	})

	top := make([]string, 0, 5)
	for _, r := range ranked[:min(5, len(ranked))] {
		top = append(top, r.ticker)
	}
	bottom := make([]string, 0, 4)
	for _, r := range ranked[max(0, len(ranked)-4):] {
		bottom = append(bottom, r.ticker)
	}
	inTop := toSet(top)
	inBottom := toSet(bottom)

	decisions := make([]Decision, 0, len(investibles))
	for _, t := range investibles {
		switch {
		case riskOff > 0.62 && inBottom[t]:
			decisions = append(decisions, Decision{t, "SELL", 15.0, "risk-off: trim weak/volatile"})
		case riskOff > 0.62 && t == "XLV":
			decisions = append(decisions, Decision{t, "BUY", 6.0, "risk-off: tilt defensive"})
		case riskOff > 0.62:
			decisions = append(decisions, Decision{t, "HOLD", 0.0, "risk-off: hold"})
		case inTop[t]:
			decisions = append(decisions, Decision{t, "BUY", 7.0, "momentum leader: add small"})
		case inBottom[t]:
			decisions = append(decisions, Decision{t, "SELL", 12.0, "laggard: trim"})
		default:
			decisions = append(decisions, Decision{t, "HOLD", 0.0, "neutral"})
		}
	}

	regime := "risk-on"
	if riskOff > 0.62 {
		regime = "risk-off"
	}
	agents := map[string]any{
		"macro":     map[string]any{"regime": regime, "risk_off": riskOff},
		"technical": map[string]any{"top": top, "bottom": bottom},
		"risk":      map[string]any{"cash_buffer_pct": minCashBufferPct, "guardrails": "fallback"},
	}
	explanation := fmt.Sprintf(
		"Fallback plan (no LLM): regime=%s. Adds focus on leaders (%s); trims laggards (%s). "+
			"Kept small sizes to limit churn and preserve cash buffer.",
		regime,
		strings.Join(top[:min(3, len(top))], ", "),
		strings.Join(bottom[:min(2, len(bottom))], ", "))

	return Plan{Agents: agents, Decisions: decisions, Explanation: explanation, Confidence: 0.42}
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
