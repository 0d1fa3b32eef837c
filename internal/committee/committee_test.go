package committee

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kginvest/internal/market"
)

type stubChat struct {
	reply map[string]any
}

func (s *stubChat) ChatJSON(system, user string) (map[string]any, string) {
	return s.reply, ""
}

func promptInput() PromptInput {
	return PromptInput{
		Investibles: []string{"AAPL", "MSFT"},
		Indicators: map[string]market.Indicators{
			"AAPL": {Mom20: 0.1},
			"MSFT": {Mom20: -0.1},
		},
		Signals:    market.Signals{RiskOff: 0.5},
		Guardrails: Guardrails{MinCashBufferPct: 12},
	}
}

func TestProposeFallsBackOnUnusableReply(t *testing.T) {
	c := New(&stubChat{reply: nil}, 180, zerolog.Nop())
	plan := c.Propose(promptInput())

	assert.Equal(t, 0.42, plan.Confidence)
	assert.Contains(t, plan.Explanation, "Fallback plan (no LLM)")
}

func TestProposeSanitizesAndDefaults(t *testing.T) {
	c := New(&stubChat{reply: map[string]any{
		"decisions": []any{
			map[string]any{"ticker": "AAPL", "action": "BUY", "allocation_pct": 7.0},
		},
		"explanation": "Buying AAPL because momentum is strong.",
		"confidence":  0.8,
	}}, 180, zerolog.Nop())

	plan := c.Propose(promptInput())
	require.Len(t, plan.Decisions, 2)
	assert.Equal(t, 0.8, plan.Confidence)
	assert.Equal(t, "Buying AAPL because momentum is strong.", plan.Explanation)
}

func TestProposeMissingConfidenceDefaultsToNeutral(t *testing.T) {
	c := New(&stubChat{reply: map[string]any{
		"decisions": []any{
			map[string]any{"ticker": "AAPL", "action": "HOLD"},
		},
		"explanation": "Holding.",
	}}, 180, zerolog.Nop())

	plan := c.Propose(promptInput())
	assert.Equal(t, 0.5, plan.Confidence)
}

func TestProposeSynthesizesMissingExplanation(t *testing.T) {
	c := New(&stubChat{reply: map[string]any{
		"agents": map[string]any{
			"macro": map[string]any{"regime": "risk-on"},
		},
		"decisions": []any{
			map[string]any{"ticker": "AAPL", "action": "BUY", "allocation_pct": 5.0},
		},
		"confidence": 0.6,
	}}, 180, zerolog.Nop())

	plan := c.Propose(promptInput())
	assert.Contains(t, plan.Explanation, "The current regime is risk-on")
	assert.GreaterOrEqual(t, len(plan.Explanation), 180)
}

func TestTitlePrecedence(t *testing.T) {
	assert.Equal(t, "Agent plan: risk-off posture",
		Title(market.Signals{RiskOff: 0.7, SemiPulse: 0.9, OilShock: 0.9}))
	assert.Equal(t, "Agent plan: lean semis/QQQ impulse",
		Title(market.Signals{SemiPulse: 0.7, OilShock: 0.9}))
	assert.Equal(t, "Agent plan: inflation/oil impulse",
		Title(market.Signals{OilShock: 0.7}))
	assert.Equal(t, "Agent committee plan", Title(market.Signals{RiskOff: 0.62}))
}
