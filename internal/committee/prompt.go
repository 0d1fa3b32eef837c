package committee

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/portfolio"
)

const committeeSystem = "You are a cautious, data-driven paper-trading allocator. " +
	"You are a committee of agents (Macro, Technical, Risk, Allocator). " +
	"You must output ONLY one valid JSON object.\n\n" +
	"Rules:\n" +
	"- No leverage. No shorting.\n" +
	"- Keep total BUY allocation modest; prefer incremental changes.\n" +
	"- Suggest SELLs when reallocating (free cash), and explain why.\n" +
	"- Be diversified; avoid concentrating into one theme.\n" +
	"- Output decisions for the investible universe only.\n"

// PromptInput is the market and portfolio context quoted to the committee.
type PromptInput struct {
	Investibles  []string
	Bellwethers  []string
	Prices       map[string]market.Quote
	Indicators   map[string]market.Indicators
	Signals      market.Signals
	State        portfolio.State
	Positions    map[string]float64
	TradeHistory string
	Guardrails   Guardrails
}

// BuildUserPrompt renders the committee's user message.
func BuildUserPrompt(in PromptInput) string {
	var bellLines []string
	for _, b := range in.Bellwethers {
		if q, ok := in.Prices[b]; ok {
			bellLines = append(bellLines, fmt.Sprintf("%s: %+.2f%% 1d (px %.2f)", b, q.ChangePct, q.Current))
		}
	}

	var invLines []string
	for _, t := range in.Investibles {
		q, ok := in.Prices[t]
		if !ok {
			continue
		}
		ind := in.Indicators[t]
		invLines = append(invLines, fmt.Sprintf(
			"%s: $%.2f (%+.2f%% 1d), mom5 %+.2f%%, mom20 %+.2f%%, RSI %.1f, z %+.1f, vol %.3f",
			t, q.Current, q.ChangePct, ind.Mom5*100, ind.Mom20*100, ind.RSI, ind.ZScore, ind.Volatility))
	}

	syms := make([]string, 0, len(in.Positions))
	for sym := range in.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	var posLines []string
	for _, sym := range syms {
		qty := in.Positions[sym]
		if qty <= 0 {
			continue
		}
		mv := qty * in.Prices[sym].Current
		posLines = append(posLines, fmt.Sprintf("- %s: %.4f sh (~%s)", sym, qty, FmtMoney(mv)))
	}

	signalsJSON, _ := json.Marshal(in.Signals)

	return strings.TrimSpace(fmt.Sprintf(`
LATEST BELLWETHERS (1d):
%s

DERIVED SIGNALS (0-1):
%s

INVESTIBLES SNAPSHOT:
%s

PORTFOLIO:
- Cash: %s
- Equity est: %s
- Positions:
%s

RECENT TRADES:
%s

GUARDRAILS:
- MIN_CASH_BUFFER_PCT=%g
- MAX_BUY_EQUITY_PCT_PER_CYCLE=%g
- MAX_SELL_HOLDING_PCT_PER_CYCLE=%g
- MAX_SYMBOL_WEIGHT_PCT=%g

TASK:
Return ONLY JSON:
{
  "agents": {
    "macro": {"regime":"...", "bullets":["..."], "risk_off":0-1},
    "technical": {"top":["TICK","..."], "bottom":["TICK","..."], "bullets":["..."]},
    "risk": {"cash_buffer_pct": number, "trim":["TICK","..."], "bullets":["..."]},
    "allocator": {"bullets":["..."]}
  },
  "decisions": [
    {"ticker":"AAPL","action":"BUY|SELL|HOLD","allocation_pct":0-80,"note":"short reason"}
  ],
  "explanation": "4-8 sentences plain English, explicitly mention what to SELL (if any) and what you redeploy into.",
  "confidence": 0-1
}

Notes:
- allocation_pct means: for BUY = %% of equity to spend; for SELL = %% of that holding to sell.
- Keep BUY sizes small unless confidence is high and risk_off is low.
- Include an entry for every investible ticker (use HOLD for most).`,
		orMissing(bellLines), signalsJSON, orMissing(invLines),
		FmtMoney(in.State.Cash), FmtMoney(in.State.Equity), orNone(posLines),
		in.TradeHistory,
		in.Guardrails.MinCashBufferPct, in.Guardrails.MaxBuyEquityPct,
		in.Guardrails.MaxSellHoldingPct, in.Guardrails.MaxSymbolWeightPct))
}

func orMissing(lines []string) string {
	if len(lines) == 0 {
		return "(missing)"
	}
	return strings.Join(lines, "\n")
}

func orNone(lines []string) string {
	if len(lines) == 0 {
		return "- None"
	}
	return strings.Join(lines, "\n")
}

// FmtMoney renders a dollar amount with thousands separators.
func FmtMoney(x float64) string {
	neg := x < 0
	if neg {
		x = -x
	}
	s := fmt.Sprintf("%.2f", x)
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
