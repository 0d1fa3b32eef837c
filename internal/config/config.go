// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultInvestibles = "XLE,XLF,XLV,XME,IYT,AAPL,MSFT,JPM,UNH,CAT,NVDA,AMD,AMZN,GOOGL,META,ARCB,TTMI,TRMK,KWR,ICUI,ACHR,BBAI,ASTS,JOBY,LUNR,OKLO,LAC,INTC,APLD,F,PSNY,PSFE,U,LCID,SMR,WOLF,BYND,AIG"

	defaultBellwethers   = "VXX,SPY,QQQ,TLT,UUP,IEF,USO,TSM,VTI"
	defaultBellwethersYF = "^VIX,^TNX,CL=F,^GSPC,DX-Y.NYB"
)

// Config holds application configuration
type Config struct {
	DBPath   string
	Port     int
	LogLevel string
	DevMode  bool

	// Universe
	Investibles   []string
	Bellwethers   []string // fetched via the configured data provider
	BellwethersYF []string // index/futures symbols only Yahoo serves

	// LLM
	LLMProvider       string // ollama | openrouter
	OllamaURL         string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	DreamModel        string
	LLMCallsPerMin    int
	LLMTimeout        time.Duration
	LLMTemp           float64
	LLMMaxReask       int
	LLMMaxTokens      int

	// Worker speeds in ticks per minute (interval = 60s / speed)
	MarketSpeed float64
	DreamSpeed  float64
	ThinkSpeed  float64

	AutoMarket bool
	AutoDream  bool
	AutoThink  bool
	AutoTrade  bool

	// Trading guard rails
	StartCash                 float64
	MinTradeNotional          float64
	MaxBuyEquityPctPerCycle   float64
	MaxSellHoldingPctPerCycle float64
	MaxSymbolWeightPct        float64
	MinCashBufferPct          float64
	TradeAnytime              bool

	// Market data
	YahooTimeout      time.Duration
	YahooRangeDays    int
	YahooCacheSeconds int

	// Committee
	StarThreshold        float64
	ExplanationMinLength int

	// Provider routing
	BrokerProvider  string // paper | alpaca
	DataProvider    string // yahoo | alpaca
	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaPaperMode bool

	OptionsEnabled bool

	// Maintenance
	BackupS3Bucket string
	BackupS3Prefix string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dbPath := getEnv("DB_PATH", "./data/kginvest.db")
	absDBPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absDBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DBPath:   absDBPath,
		Port:     getEnvAsInt("PORT", 8000),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		Investibles:   getEnvAsList("INVESTIBLES", defaultInvestibles),
		Bellwethers:   getEnvAsList("BELLWETHERS", defaultBellwethers),
		BellwethersYF: getEnvAsList("BELLWETHERS_YF", defaultBellwethersYF),

		LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
		OllamaURL:         getEnv("OLLAMA_URL", "http://localhost:11434"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		DreamModel:        getEnv("DREAM_MODEL", "gemma3:4b"),
		LLMCallsPerMin:    getEnvAsInt("LLM_CALLS_PER_MIN", 8),
		LLMTimeout:        time.Duration(getEnvAsInt("LLM_TIMEOUT", 45)) * time.Second,
		LLMTemp:           getEnvAsFloat("LLM_TEMP", 0.25),
		LLMMaxReask:       getEnvAsInt("LLM_MAX_REASK", 1),
		LLMMaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 4000),

		MarketSpeed: getEnvAsFloat("MARKET_SPEED", 0.35),
		DreamSpeed:  getEnvAsFloat("DREAM_SPEED", 0.25),
		ThinkSpeed:  getEnvAsFloat("THINK_SPEED", 0.20),

		AutoMarket: getEnvAsBool("AUTO_MARKET", true),
		AutoDream:  getEnvAsBool("AUTO_DREAM", true),
		AutoThink:  getEnvAsBool("AUTO_THINK", true),
		AutoTrade:  getEnvAsBool("AUTO_TRADE", true),

		StartCash:                 getEnvAsFloat("START_CASH", 10000),
		MinTradeNotional:          getEnvAsFloat("MIN_TRADE_NOTIONAL", 25),
		MaxBuyEquityPctPerCycle:   getEnvAsFloat("MAX_BUY_EQUITY_PCT_PER_CYCLE", 18),
		MaxSellHoldingPctPerCycle: getEnvAsFloat("MAX_SELL_HOLDING_PCT_PER_CYCLE", 35),
		MaxSymbolWeightPct:        getEnvAsFloat("MAX_SYMBOL_WEIGHT_PCT", 14),
		MinCashBufferPct:          getEnvAsFloat("MIN_CASH_BUFFER_PCT", 12),
		TradeAnytime:              getEnvAsBool("TRADE_ANYTIME", false),

		YahooTimeout:      time.Duration(getEnvAsInt("YAHOO_TIMEOUT", 12)) * time.Second,
		YahooRangeDays:    getEnvAsInt("YAHOO_RANGE_DAYS", 90),
		YahooCacheSeconds: getEnvAsInt("YAHOO_CACHE_SECONDS", 90),

		StarThreshold:        getEnvAsFloat("STAR_THRESHOLD", 0.72),
		ExplanationMinLength: getEnvAsInt("EXPLANATION_MIN_LENGTH", 180),

		BrokerProvider:  getEnv("BROKER_PROVIDER", "paper"),
		DataProvider:    getEnv("DATA_PROVIDER", "yahoo"),
		AlpacaAPIKey:    getEnv("ALPACA_API_KEY", ""),
		AlpacaSecretKey: getEnv("ALPACA_SECRET_KEY", ""),
		AlpacaPaperMode: getEnvAsBool("ALPACA_PAPER_MODE", true),

		OptionsEnabled: getEnvAsBool("OPTIONS_ENABLED", false),

		BackupS3Bucket: getEnv("BACKUP_S3_BUCKET", ""),
		BackupS3Prefix: getEnv("BACKUP_S3_PREFIX", "kginvest"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if len(c.Investibles) == 0 {
		return fmt.Errorf("INVESTIBLES must not be empty")
	}
	switch c.LLMProvider {
	case "ollama", "openrouter":
	default:
		return fmt.Errorf("LLM_PROVIDER must be ollama or openrouter, got %q", c.LLMProvider)
	}
	switch c.BrokerProvider {
	case "paper", "alpaca":
	default:
		return fmt.Errorf("BROKER_PROVIDER must be paper or alpaca, got %q", c.BrokerProvider)
	}
	switch c.DataProvider {
	case "yahoo", "alpaca":
	default:
		return fmt.Errorf("DATA_PROVIDER must be yahoo or alpaca, got %q", c.DataProvider)
	}
	if c.BrokerProvider == "alpaca" && (c.AlpacaAPIKey == "" || c.AlpacaSecretKey == "") {
		return fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY required when BROKER_PROVIDER=alpaca")
	}
	return nil
}

// AllBellwethers returns the union of provider and Yahoo-only bellwethers.
func (c *Config) AllBellwethers() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, c.Bellwethers...), c.BellwethersYF...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// AllTickers returns the sorted union of investibles and all bellwethers.
func (c *Config) AllTickers() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, c.Investibles...), c.AllBellwethers()...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// MarketInterval converts ticks-per-minute speed into a sleep interval.
func (c *Config) MarketInterval() time.Duration { return speedToInterval(c.MarketSpeed) }

// DreamInterval converts ticks-per-minute speed into a sleep interval.
func (c *Config) DreamInterval() time.Duration { return speedToInterval(c.DreamSpeed) }

// ThinkInterval converts ticks-per-minute speed into a sleep interval.
func (c *Config) ThinkInterval() time.Duration { return speedToInterval(c.ThinkSpeed) }

func speedToInterval(ticksPerMin float64) time.Duration {
	if ticksPerMin <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Minute) / ticksPerMin)
}

// IsInvestible reports whether sym is in the investible universe.
func (c *Config) IsInvestible(sym string) bool {
	for _, s := range c.Investibles {
		if s == sym {
			return true
		}
	}
	return false
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
