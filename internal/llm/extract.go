package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedJSONRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	fencedAnyRe   = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
	braceObjectRe = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// findOutermostJSON scans for the first balanced top-level object,
// tracking string literals and escapes so embedded braces don't count.
func findOutermostJSON(s string) string {
	depth := 0
	start := -1
	inStr := false
	esc := false
	for i, ch := range []byte(s) {
		if ch == '\\' && inStr && !esc {
			esc = true
			continue
		}
		if ch == '"' && !esc {
			inStr = !inStr
		}
		esc = false
		if inStr {
			continue
		}
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func extractFromMarkdown(s string) string {
	if m := fencedJSONRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedAnyRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractJSON pulls one JSON object out of free-form model output using
// three tiers: balanced-brace scan, fenced code block, then a regex over
// any brace-matched substring. Returns nil when nothing parses.
func ExtractJSON(raw string) map[string]any {
	if raw == "" {
		return nil
	}

	if blob := findOutermostJSON(raw); blob != "" {
		if obj := tryParse(blob); obj != nil {
			return obj
		}
	}

	if blob := extractFromMarkdown(raw); blob != "" {
		if obj := tryParse(blob); obj != nil {
			return obj
		}
	}

	for _, m := range braceObjectRe.FindAllString(raw, -1) {
		if obj := tryParse(m); obj != nil {
			return obj
		}
	}

	return nil
}

func tryParse(blob string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(blob), &obj); err != nil {
		return nil
	}
	return obj
}
