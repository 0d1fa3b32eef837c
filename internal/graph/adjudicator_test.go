package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubChat struct {
	reply  map[string]any
	system string
	user   string
}

func (s *stubChat) ChatJSON(system, user string) (map[string]any, string) {
	s.system = system
	s.user = user
	return s.reply, ""
}

func TestAdjudicateFiltersStrengths(t *testing.T) {
	stub := &stubChat{reply: map[string]any{
		"channels": map[string]any{
			"correlates":        0.7,
			"drives:AAPL->SPY":  0.05,  // below the floor
			"liquidity_coupled": 1.5,   // above the ceiling
			"hedges":            "bad", // not a number
		},
		"note": "prices move together",
	}}
	adj := NewAdjudicator(stub)

	channels, note := adj.Adjudicate("AAPL", "investible", "SPY", "bellwether", 0.45)
	assert.Equal(t, map[string]float64{"correlates": 0.7}, channels)
	assert.Equal(t, "prices move together", note)

	assert.Contains(t, stub.user, "NODE A: AAPL (investible)")
	assert.Contains(t, stub.user, "NODE B: SPY (bellwether)")
	assert.Contains(t, stub.user, "+0.45")
}

func TestAdjudicateUnusableReplies(t *testing.T) {
	adj := NewAdjudicator(&stubChat{reply: nil})
	channels, note := adj.Adjudicate("A", "investible", "B", "bellwether", 0.1)
	assert.Nil(t, channels)
	assert.Empty(t, note)

	// A note survives even when every channel is rejected.
	adj = NewAdjudicator(&stubChat{reply: map[string]any{
		"channels": map[string]any{"correlates": 0.01},
		"note":     "too weak to label",
	}})
	channels, note = adj.Adjudicate("A", "investible", "B", "bellwether", 0.1)
	assert.Nil(t, channels)
	assert.Equal(t, "too weak to label", note)
}

func TestAdjudicateTruncatesNote(t *testing.T) {
	adj := NewAdjudicator(&stubChat{reply: map[string]any{
		"channels": map[string]any{"correlates": 0.5},
		"note":     strings.Repeat("x", 300),
	}})
	_, note := adj.Adjudicate("A", "investible", "B", "bellwether", 0.3)
	assert.Len(t, note, 160)
}
