// Package graph maintains the knowledge graph: multi-channel undirected
// edges between instruments and derived nodes, with heuristic and LLM
// adjudicated channel sets.
package graph

import "strings"

// channelWeights are the base weights used to aggregate channel
// strengths into an edge weight. Unknown bases fall back to 0.5.
var channelWeights = map[string]float64{
	"correlates":            1.0,
	"inverse_correlates":    1.0,
	"drives":                0.9,
	"results_from":          0.8,
	"hedges":                0.8,
	"leads":                 0.7,
	"lags":                  0.7,
	"liquidity_coupled":     0.7,
	"sentiment_coupled":     0.7,
	"narrative_contradicts": 0.7,
	"policy_exposed":        0.6,
	"supply_chain_linked":   0.6,
	"narrative_supports":    0.5,
}

// BaseChannel strips the directional suffix: "drives:^VIX->SIG" -> "drives".
func BaseChannel(channel string) string {
	if i := strings.Index(channel, ":"); i >= 0 {
		return channel[:i]
	}
	return channel
}

// ChannelWeight returns the base weight for a channel string.
func ChannelWeight(channel string) float64 {
	if w, ok := channelWeights[BaseChannel(channel)]; ok {
		return w
	}
	return 0.5
}

// WeightAndTop aggregates a channel set: weight = Σ W(base)·strength,
// top = the channel with the highest strength.
func WeightAndTop(channels map[string]float64) (float64, string) {
	total := 0.0
	bestStrength := 0.0
	best := ""
	for ch, s := range channels {
		total += ChannelWeight(ch) * s
		if s > bestStrength {
			bestStrength = s
			best = ch
		}
	}
	return total, best
}

// NormPair orders an unordered node pair lexicographically.
func NormPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
