package committee

import (
	"strconv"
	"strings"
)

// SanitizeDecisions coerces raw LLM output into a covered, bounded
// decision list: foreign tickers dropped, unknown actions become HOLD,
// allocation clamped to [0,80], notes truncated, and every investible
// not mentioned gets a default HOLD.
func SanitizeDecisions(raw any, investibles []string) []Decision {
	allowed := make(map[string]bool, len(investibles))
	for _, t := range investibles {
		allowed[t] = true
	}

	var out []Decision
	items, _ := raw.([]any)
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		t := strings.ToUpper(strings.TrimSpace(str(m["ticker"])))
		if !allowed[t] {
			continue
		}
		a := strings.ToUpper(strings.TrimSpace(str(m["action"])))
		if a != "BUY" && a != "SELL" && a != "HOLD" {
			a = "HOLD"
		}
		pct := num(m["allocation_pct"])
		if pct < 0 {
			pct = 0
		}
		if pct > 80 {
			pct = 80
		}
		note := strings.TrimSpace(str(m["note"]))
		if len(note) > 260 {
			note = note[:260]
		}
		out = append(out, Decision{Ticker: t, Action: a, AllocationPct: pct, Note: note})
	}

	present := make(map[string]bool, len(out))
	for _, d := range out {
		present[d.Ticker] = true
	}
	for _, t := range investibles {
		if !present[t] {
			out = append(out, Decision{Ticker: t, Action: "HOLD", Note: "default HOLD"})
		}
	}
	return out
}

func str(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func num(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case int:
		return float64(x)
	}
	return 0
}
