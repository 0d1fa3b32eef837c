package trading

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	alpacaPaperURL = "https://paper-api.alpaca.markets/v2"
	alpacaLiveURL  = "https://api.alpaca.markets/v2"
)

// Account is the broker account snapshot.
type Account struct {
	Cash             float64
	BuyingPower      float64
	PortfolioValue   float64
	Equity           float64
	Status           string
	PatternDayTrader bool
}

// BrokerPosition is one open holding at the broker.
type BrokerPosition struct {
	Symbol        string
	Qty           float64
	AvgEntryPrice float64
	CurrentPrice  float64
	MarketValue   float64
	UnrealizedPL  float64
}

// Order is the acknowledged order record.
type Order struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
}

// AlpacaClient talks to the Alpaca trading API. Paper and live differ
// only by base URL.
type AlpacaClient struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewAlpacaClient creates a trading client against the paper or live API.
func NewAlpacaClient(apiKey, secretKey string, paper bool, timeout time.Duration, log zerolog.Logger) *AlpacaClient {
	base := alpacaLiveURL
	if paper {
		base = alpacaPaperURL
	}
	http := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("APCA-API-KEY-ID", apiKey).
		SetHeader("APCA-API-SECRET-KEY", secretKey)
	return &AlpacaClient{
		http: http,
		log:  log.With().Str("component", "alpaca").Logger(),
	}
}

// Alpaca serializes most numerics as strings.
type alpacaAccount struct {
	Cash             string `json:"cash"`
	BuyingPower      string `json:"buying_power"`
	PortfolioValue   string `json:"portfolio_value"`
	Equity           string `json:"equity"`
	Status           string `json:"status"`
	PatternDayTrader bool   `json:"pattern_day_trader"`
}

type alpacaPosition struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	AvgEntryPrice string `json:"avg_entry_price"`
	CurrentPrice  string `json:"current_price"`
	MarketValue   string `json:"market_value"`
	UnrealizedPL  string `json:"unrealized_pl"`
}

// GetAccount fetches the account snapshot.
func (c *AlpacaClient) GetAccount() (*Account, error) {
	var acct alpacaAccount
	resp, err := c.http.R().SetResult(&acct).Get("/account")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("account request returned %s", resp.Status())
	}
	return &Account{
		Cash:             parseF(acct.Cash),
		BuyingPower:      parseF(acct.BuyingPower),
		PortfolioValue:   parseF(acct.PortfolioValue),
		Equity:           parseF(acct.Equity),
		Status:           acct.Status,
		PatternDayTrader: acct.PatternDayTrader,
	}, nil
}

// GetPositions fetches all open positions.
func (c *AlpacaClient) GetPositions() ([]BrokerPosition, error) {
	var raw []alpacaPosition
	resp, err := c.http.R().SetResult(&raw).Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("positions request returned %s", resp.Status())
	}
	out := make([]BrokerPosition, 0, len(raw))
	for _, p := range raw {
		out = append(out, BrokerPosition{
			Symbol:        p.Symbol,
			Qty:           parseF(p.Qty),
			AvgEntryPrice: parseF(p.AvgEntryPrice),
			CurrentPrice:  parseF(p.CurrentPrice),
			MarketValue:   parseF(p.MarketValue),
			UnrealizedPL:  parseF(p.UnrealizedPL),
		})
	}
	return out, nil
}

// SubmitMarketOrder places a DAY market order with an idempotent client
// order id.
func (c *AlpacaClient) SubmitMarketOrder(symbol, side string, qty float64) (*Order, error) {
	body := map[string]any{
		"symbol":          symbol,
		"qty":             strconv.FormatFloat(qty, 'f', -1, 64),
		"side":            side,
		"type":            "market",
		"time_in_force":   "day",
		"client_order_id": uuid.NewString(),
	}
	var order Order
	resp, err := c.http.R().SetBody(body).SetResult(&order).Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s order for %s: %w", side, symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("order request for %s returned %s: %s", symbol, resp.Status(), resp.String())
	}
	c.log.Info().Str("symbol", symbol).Str("side", side).
		Float64("qty", qty).Str("order_id", order.ID).Msg("order submitted")
	return &order, nil
}

func parseF(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
