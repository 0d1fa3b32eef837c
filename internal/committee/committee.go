package committee

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/market"
)

// ChatJSONer is the JSON-only LLM surface the committee consumes.
type ChatJSONer interface {
	ChatJSON(system, user string) (map[string]any, string)
}

// Committee runs the single multi-agent LLM exchange.
type Committee struct {
	llm                  ChatJSONer
	explanationMinLength int
	log                  zerolog.Logger
}

// New creates a committee around a JSON-only chat surface.
func New(llm ChatJSONer, explanationMinLength int, log zerolog.Logger) *Committee {
	return &Committee{
		llm:                  llm,
		explanationMinLength: explanationMinLength,
		log:                  log.With().Str("component", "committee").Logger(),
	}
}

// ExplanationMinLength is the critic's length-bonus threshold.
func (c *Committee) ExplanationMinLength() int { return c.explanationMinLength }

// Propose asks the LLM for a plan and sanitizes it. Unusable replies
// and empty decision lists fall back to the rule-based plan.
func (c *Committee) Propose(in PromptInput) Plan {
	parsed, _ := c.llm.ChatJSON(committeeSystem, BuildUserPrompt(in))
	if parsed == nil {
		c.log.Warn().Msg("committee reply unusable, using fallback plan")
		return Fallback(in.Investibles, in.Indicators, in.Signals, in.Guardrails.MinCashBufferPct)
	}

	agents, _ := parsed["agents"].(map[string]any)
	if agents == nil {
		agents = map[string]any{}
	}
	decisions := SanitizeDecisions(parsed["decisions"], in.Investibles)
	if len(decisions) == 0 {
		return Fallback(in.Investibles, in.Indicators, in.Signals, in.Guardrails.MinCashBufferPct)
	}

	explanation := strings.TrimSpace(str(parsed["explanation"]))
	if explanation == "" {
		explanation = SynthesizeExplanation(agents, decisions, c.explanationMinLength)
	}

	// Zero confidence reads as "not provided" and takes the neutral default.
	conf := num(parsed["confidence"])
	if conf == 0 {
		conf = 0.5
	}
	conf = clamp01(conf)

	return Plan{Agents: agents, Decisions: decisions, Explanation: explanation, Confidence: conf}
}

// Title picks an insight title from the regime signals, strongest
// posture first.
func Title(signals market.Signals) string {
	switch {
	case signals.RiskOff > 0.62:
		return "Agent plan: risk-off posture"
	case signals.SemiPulse > 0.62:
		return "Agent plan: lean semis/QQQ impulse"
	case signals.OilShock > 0.62:
		return "Agent plan: inflation/oil impulse"
	default:
		return "Agent committee plan"
	}
}
