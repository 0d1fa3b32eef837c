// Package committee builds the multi-agent allocation plan: one LLM
// call returning agents, per-ticker decisions, an explanation, and a
// confidence, scored by a deterministic critic. A rule-based fallback
// produces a conservative plan when the LLM yields nothing usable.
package committee

// Decision is one per-ticker instruction. For BUY, AllocationPct is a
// percentage of equity to spend; for SELL, a percentage of the holding
// to liquidate.
type Decision struct {
	Ticker        string  `json:"ticker"`
	Action        string  `json:"action"`
	AllocationPct float64 `json:"allocation_pct"`
	Note          string  `json:"note"`
}

// Plan is one committee output unit prior to persistence.
type Plan struct {
	Agents      map[string]any
	Decisions   []Decision
	Explanation string
	Confidence  float64
}

// Guardrails are the sizing limits quoted to the committee and
// enforced by the executor.
type Guardrails struct {
	MinCashBufferPct   float64
	MaxBuyEquityPct    float64
	MaxSellHoldingPct  float64
	MaxSymbolWeightPct float64
	MinTradeNotional   float64
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
