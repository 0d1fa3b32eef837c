package committee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kginvest/internal/market"
)

func fallbackFixture() ([]string, map[string]market.Indicators) {
	investibles := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG"}
	indicators := map[string]market.Indicators{
		"AAA": {Mom20: 0.30, Volatility: 0.01},            // leader
		"BBB": {Mom20: 0.25, Volatility: 0.01},            // leader
		"CCC": {Mom20: 0.20, Volatility: 0.01},            // leader
		"DDD": {Mom20: 0.15, Volatility: 0.01},            // leader
		"EEE": {Mom20: 0.10, Volatility: 0.01},            // leader and laggard boundary
		"FFF": {Mom20: -0.05, Volatility: 0.02},           // laggard
		"GGG": {Mom20: -0.20, Volatility: 0.05, RSI: 7.0}, // worst
	}
	return investibles, indicators
}

func TestFallbackNeutralRegime(t *testing.T) {
	investibles, indicators := fallbackFixture()
	plan := Fallback(investibles, indicators, market.Signals{RiskOff: 0.5}, 12)

	byTicker := map[string]Decision{}
	for _, d := range plan.Decisions {
		byTicker[d.Ticker] = d
	}
	require.Len(t, plan.Decisions, len(investibles))

	assert.Equal(t, Decision{"AAA", "BUY", 7.0, "momentum leader: add small"}, byTicker["AAA"])
	assert.Equal(t, Decision{"GGG", "SELL", 12.0, "laggard: trim"}, byTicker["GGG"])
	// DDD and EEE land in both the top five and the bottom four; the top
	// bucket wins.
	assert.Equal(t, "BUY", byTicker["DDD"].Action)
	assert.Equal(t, "BUY", byTicker["EEE"].Action)
	assert.Equal(t, "SELL", byTicker["FFF"].Action)

	assert.Equal(t, 0.42, plan.Confidence)
	macro := plan.Agents["macro"].(map[string]any)
	assert.Equal(t, "risk-on", macro["regime"])
	assert.Contains(t, plan.Explanation, "regime=risk-on")
	assert.Contains(t, plan.Explanation, "AAA, BBB, CCC")
}

func TestFallbackRiskOffRegime(t *testing.T) {
	investibles, indicators := fallbackFixture()
	// Scored high enough to stay out of the bottom bucket, which would
	// otherwise claim it for the trim.
	investibles = append(investibles, "XLV")
	indicators["XLV"] = market.Indicators{Mom20: 0.28, Volatility: 0.01}

	plan := Fallback(investibles, indicators, market.Signals{RiskOff: 0.8}, 12)

	byTicker := map[string]Decision{}
	for _, d := range plan.Decisions {
		byTicker[d.Ticker] = d
	}

	assert.Equal(t, Decision{"XLV", "BUY", 6.0, "risk-off: tilt defensive"}, byTicker["XLV"])
	assert.Equal(t, Decision{"GGG", "SELL", 15.0, "risk-off: trim weak/volatile"}, byTicker["GGG"])
	assert.Equal(t, Decision{"AAA", "HOLD", 0.0, "risk-off: hold"}, byTicker["AAA"])

	macro := plan.Agents["macro"].(map[string]any)
	assert.Equal(t, "risk-off", macro["regime"])
	risk := plan.Agents["risk"].(map[string]any)
	assert.Equal(t, "fallback", risk["guardrails"])
	assert.Equal(t, 12.0, risk["cash_buffer_pct"])
}

func TestFallbackOverboughtPenaltyBreaksTies(t *testing.T) {
	investibles := []string{"HOT", "WARM"}
	indicators := map[string]market.Indicators{
		"HOT":  {Mom20: 0.10, RSI: 80},
		"WARM": {Mom20: 0.10, RSI: 50},
	}
	plan := Fallback(investibles, indicators, market.Signals{RiskOff: 0.5}, 12)

	tech := plan.Agents["technical"].(map[string]any)
	top := tech["top"].([]string)
	require.NotEmpty(t, top)
	assert.Equal(t, "WARM", top[0])
}
