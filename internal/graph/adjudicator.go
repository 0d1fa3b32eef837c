package graph

import (
	"fmt"
	"strings"
)

const adjudicatorSystem = "You are a careful KG edge adjudicator. Output valid JSON only."

// ChatJSONer is the JSON-only LLM surface the adjudicator consumes.
type ChatJSONer interface {
	ChatJSON(system, user string) (map[string]any, string)
}

// Adjudicator asks the LLM to refine a heuristic channel set for one
// edge. Invalid replies leave the heuristics standing.
type Adjudicator struct {
	llm ChatJSONer
}

// NewAdjudicator wraps a JSON-only chat surface.
func NewAdjudicator(llm ChatJSONer) *Adjudicator {
	return &Adjudicator{llm: llm}
}

func adjudicatorPrompt(nodeA, kindA, nodeB, kindB string, c float64) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are labeling a relationship in an investing knowledge graph.

NODE A: %s (%s)
NODE B: %s (%s)

Observed return-correlation over recent days: %+.2f

Choose 0-3 channels and strengths (>=0.10). Allowed channels:
correlates, inverse_correlates, drives, results_from, leads, lags, hedges, policy_exposed,
supply_chain_linked, liquidity_coupled, sentiment_coupled, narrative_supports, narrative_contradicts.

Directional channels must be encoded as "<base>:A->B" or "<base>:B->A" where A and B are node IDs.

Return ONLY JSON:
{
  "channels": { "correlates": 0.0-1.0, "drives:%s->%s": 0.0-1.0 },
  "note": "one sentence"
}`, nodeA, kindA, nodeB, kindB, c, nodeA, nodeB))
}

// Adjudicate consults the LLM about the pair and returns the validated
// channel set plus a note. A nil channel map means the reply was
// unusable and the caller's heuristics should stand; the note is
// returned regardless when present.
func (a *Adjudicator) Adjudicate(nodeA, kindA, nodeB, kindB string, c float64) (map[string]float64, string) {
	parsed, _ := a.llm.ChatJSON(adjudicatorSystem, adjudicatorPrompt(nodeA, kindA, nodeB, kindB, c))
	if parsed == nil {
		return nil, ""
	}

	note := ""
	if n, ok := parsed["note"].(string); ok {
		note = n
		if len(note) > 160 {
			note = note[:160]
		}
	}

	raw, ok := parsed["channels"].(map[string]any)
	if !ok {
		return nil, note
	}
	clean := map[string]float64{}
	for k, v := range raw {
		s, ok := asFloat(v)
		if !ok {
			continue
		}
		if s >= 0.10 && s <= 1.0 {
			clean[k] = s
		}
	}
	if len(clean) == 0 {
		return nil, note
	}
	return clean, note
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
