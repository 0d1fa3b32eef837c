package llm

import (
	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/metrics"
)

const repairPrompt = "Your prior output was not valid JSON. Respond with ONLY one valid JSON object; no extra text."

// Adapter is the JSON-only chat surface. Failures never surface as
// errors to callers; a nil object means no usable advice.
type Adapter struct {
	provider Provider
	budget   *Budget
	maxReask int
	log      zerolog.Logger
}

// NewAdapter creates a budgeted JSON-only adapter around provider.
func NewAdapter(provider Provider, budget *Budget, maxReask int, log zerolog.Logger) *Adapter {
	return &Adapter{
		provider: provider,
		budget:   budget,
		maxReask: maxReask,
		log:      log.With().Str("component", "llm").Logger(),
	}
}

// Budget exposes the adapter's budget for stats reporting.
func (a *Adapter) Budget() *Budget { return a.budget }

// ChatJSON sends a system+user exchange and extracts one JSON object
// from the reply, re-asking up to maxReask times on parse failure.
// Returns (nil, "") when the budget is exhausted or transport fails,
// (nil, raw) when every parse attempt failed.
func (a *Adapter) ChatJSON(system, user string) (map[string]any, string) {
	if !a.budget.Acquire() {
		a.log.Warn().Msg("llm budget exhausted")
		return nil, ""
	}

	msgs := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	metrics.LLMCalls.Inc()
	raw, err := a.provider.Chat(msgs)
	if err != nil {
		a.log.Error().Err(err).Msg("llm call failed")
		a.budget.SetLastError(err.Error())
		return nil, ""
	}

	if obj := ExtractJSON(raw); obj != nil {
		a.budget.SetLastError("")
		return obj, raw
	}

	for attempt := 0; attempt < a.maxReask; attempt++ {
		a.log.Warn().Int("attempt", attempt+1).Msg("json parse failed, re-asking")
		metrics.LLMCalls.Inc()
		repaired, err := a.provider.Chat(append(msgs,
			Message{Role: "assistant", Content: raw},
			Message{Role: "user", Content: repairPrompt},
		))
		if err != nil {
			a.log.Error().Err(err).Msg("llm repair call failed")
			a.budget.SetLastError(err.Error())
			return nil, ""
		}
		if obj := ExtractJSON(repaired); obj != nil {
			a.budget.SetLastError("")
			return obj, repaired
		}
		raw = repaired
	}

	a.log.Error().Str("raw", truncate(raw, 300)).Msg("all json extraction attempts failed")
	metrics.LLMParseFailures.Inc()
	a.budget.SetLastError("parse_fail")
	return nil, raw
}
