package committee

import "strings"

var criticKeywords = []string{"because", "however", "therefore", "driven", "while", "but", "risk"}

// CriticScore grades a plan deterministically: a confidence-anchored
// base, bonuses for a substantive explanation, penalties for
// shotgunning the universe. Result is clamped to [0,1].
func CriticScore(explanation string, decisions []Decision, conf float64, explanationMinLength int) float64 {
	score := 0.22 + 0.48*clamp01(conf)

	if len(explanation) >= explanationMinLength {
		score += 0.10
	}
	lower := strings.ToLower(explanation)
	for _, w := range criticKeywords {
		if strings.Contains(lower, w) {
			score += 0.10
			break
		}
	}

	buys, sells := 0, 0
	for _, d := range decisions {
		if d.AllocationPct <= 0 {
			continue
		}
		switch d.Action {
		case "BUY":
			buys++
		case "SELL":
			sells++
		}
	}
	if buys >= 10 {
		score -= 0.06
	}
	if sells >= 10 {
		score -= 0.04
	}
	return clamp01(score)
}
