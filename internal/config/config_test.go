package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithDefaults(t *testing.T) *Config {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadWithDefaults(t)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "paper", cfg.BrokerProvider)
	assert.Equal(t, "yahoo", cfg.DataProvider)
	assert.Equal(t, 10000.0, cfg.StartCash)
	assert.Equal(t, 0.72, cfg.StarThreshold)
	assert.Equal(t, 180, cfg.ExplanationMinLength)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.True(t, cfg.AutoTrade)
	assert.False(t, cfg.TradeAnytime)
	assert.Contains(t, cfg.Investibles, "AAPL")
	assert.Contains(t, cfg.BellwethersYF, "^VIX")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("PORT", "9001")
	t.Setenv("INVESTIBLES", "aapl, msft ,nvda")
	t.Setenv("MARKET_SPEED", "2")
	t.Setenv("AUTO_TRADE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	// Lists are trimmed and uppercased.
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Investibles)
	assert.Equal(t, 30*time.Second, cfg.MarketInterval())
	assert.False(t, cfg.AutoTrade)
}

func TestValidateRejectsBadProviders(t *testing.T) {
	cfg := loadWithDefaults(t)

	cfg.LLMProvider = "bedrock"
	assert.Error(t, cfg.Validate())
	cfg.LLMProvider = "ollama"

	cfg.BrokerProvider = "ibkr"
	assert.Error(t, cfg.Validate())
	cfg.BrokerProvider = "paper"

	cfg.DataProvider = "polygon"
	assert.Error(t, cfg.Validate())
	cfg.DataProvider = "yahoo"

	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresAlpacaKeys(t *testing.T) {
	cfg := loadWithDefaults(t)
	cfg.BrokerProvider = "alpaca"
	assert.Error(t, cfg.Validate())

	cfg.AlpacaAPIKey = "key"
	cfg.AlpacaSecretKey = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestAllBellwethersDeduplicates(t *testing.T) {
	cfg := &Config{
		Bellwethers:   []string{"SPY", "QQQ"},
		BellwethersYF: []string{"^VIX", "SPY"},
	}
	assert.Equal(t, []string{"SPY", "QQQ", "^VIX"}, cfg.AllBellwethers())
}

func TestAllTickersSortedUnion(t *testing.T) {
	cfg := &Config{
		Investibles:   []string{"MSFT", "AAPL"},
		Bellwethers:   []string{"SPY"},
		BellwethersYF: []string{"^VIX"},
	}
	assert.Equal(t, []string{"AAPL", "MSFT", "SPY", "^VIX"}, cfg.AllTickers())
}

func TestSpeedToInterval(t *testing.T) {
	cfg := &Config{MarketSpeed: 0.5, DreamSpeed: 0, ThinkSpeed: 4}
	assert.Equal(t, 2*time.Minute, cfg.MarketInterval())
	// Non-positive speeds fall back to one tick per minute.
	assert.Equal(t, time.Minute, cfg.DreamInterval())
	assert.Equal(t, 15*time.Second, cfg.ThinkInterval())
}

func TestIsInvestible(t *testing.T) {
	cfg := &Config{Investibles: []string{"AAPL"}}
	assert.True(t, cfg.IsInvestible("AAPL"))
	assert.False(t, cfg.IsInvestible("SPY"))
}
