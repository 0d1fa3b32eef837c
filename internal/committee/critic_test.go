package committee

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const minLen = 180

func TestCriticScoreConfidenceBase(t *testing.T) {
	assert.InDelta(t, 0.22, CriticScore("", nil, 0, minLen), 1e-9)
	assert.InDelta(t, 0.22+0.48, CriticScore("", nil, 1, minLen), 1e-9)
	// Out-of-range confidence clamps before anchoring.
	assert.InDelta(t, 0.22+0.48, CriticScore("", nil, 3, minLen), 1e-9)
	assert.InDelta(t, 0.22, CriticScore("", nil, -1, minLen), 1e-9)
}

func TestCriticScoreExplanationBonuses(t *testing.T) {
	long := strings.Repeat("a", minLen)
	// Length bonus only.
	assert.InDelta(t, 0.22+0.10, CriticScore(long, nil, 0, minLen), 1e-9)
	// Keyword bonus only, awarded once.
	assert.InDelta(t, 0.22+0.10, CriticScore("because therefore risk", nil, 0, minLen), 1e-9)
	// Both bonuses stack.
	assert.InDelta(t, 0.22+0.20, CriticScore(long+" because", nil, 0, minLen), 1e-9)
	// Keyword matching is case-insensitive.
	assert.InDelta(t, 0.22+0.10, CriticScore("HOWEVER", nil, 0, minLen), 1e-9)
}

func TestCriticScoreShotgunPenalties(t *testing.T) {
	mkDecisions := func(action string, n int) []Decision {
		out := make([]Decision, n)
		for i := range out {
			out[i] = Decision{Ticker: "T", Action: action, AllocationPct: 5}
		}
		return out
	}

	assert.InDelta(t, 0.22-0.06, CriticScore("", mkDecisions("BUY", 10), 0, minLen), 1e-9)
	assert.InDelta(t, 0.22-0.04, CriticScore("", mkDecisions("SELL", 10), 0, minLen), 1e-9)
	// Nine of either side stays unpenalized.
	assert.InDelta(t, 0.22, CriticScore("", mkDecisions("BUY", 9), 0, minLen), 1e-9)

	// Zero-allocation rows don't count toward the shotgun tally.
	zeroed := mkDecisions("BUY", 12)
	for i := range zeroed {
		zeroed[i].AllocationPct = 0
	}
	assert.InDelta(t, 0.22, CriticScore("", zeroed, 0, minLen), 1e-9)
}

func TestCriticScoreClamped(t *testing.T) {
	long := strings.Repeat("x", minLen) + " because however"
	s := CriticScore(long, nil, 1.0, minLen)
	assert.LessOrEqual(t, s, 1.0)
	assert.InDelta(t, 0.90, s, 1e-9)
}
