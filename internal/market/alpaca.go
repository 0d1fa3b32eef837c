package market

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// alpacaBarsResponse mirrors the data API v2 bars envelope.
type alpacaBarsResponse struct {
	Bars []struct {
		Timestamp time.Time `json:"t"`
		Close     float64   `json:"c"`
		Volume    int64     `json:"v"`
	} `json:"bars"`
	NextPageToken *string `json:"next_page_token"`
}

// AlpacaDataClient fetches daily bars from the Alpaca market data API.
type AlpacaDataClient struct {
	http      *resty.Client
	cache     *QuoteCache
	rangeDays int
	log       zerolog.Logger
}

// NewAlpacaDataClient creates an Alpaca data client.
func NewAlpacaDataClient(apiKey, secretKey string, timeout time.Duration, rangeDays int, cache *QuoteCache, log zerolog.Logger) *AlpacaDataClient {
	return &AlpacaDataClient{
		http: resty.New().
			SetBaseURL("https://data.alpaca.markets/v2").
			SetTimeout(timeout).
			SetHeader("APCA-API-KEY-ID", apiKey).
			SetHeader("APCA-API-SECRET-KEY", secretKey),
		cache:     cache,
		rangeDays: rangeDays,
		log:       log.With().Str("client", "alpaca_data").Logger(),
	}
}

// FetchSeries returns the daily bar history for symbol, empty on failure.
func (c *AlpacaDataClient) FetchSeries(symbol string, days int) Series {
	start := time.Now().AddDate(0, 0, -days)
	resp, err := c.http.R().
		SetQueryParams(map[string]string{
			"timeframe":  "1Day",
			"start":      start.UTC().Format(time.RFC3339),
			"limit":      fmt.Sprintf("%d", days+10),
			"adjustment": "raw",
		}).
		SetResult(&alpacaBarsResponse{}).
		Get("/stocks/" + symbol + "/bars")
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("bars fetch failed")
		return Series{Symbol: symbol}
	}
	if resp.StatusCode() != 200 {
		c.log.Warn().Int("status", resp.StatusCode()).Str("symbol", symbol).Msg("bars fetch non-200")
		return Series{Symbol: symbol}
	}

	body := resp.Result().(*alpacaBarsResponse)
	s := Series{Symbol: symbol}
	for _, bar := range body.Bars {
		s.Timestamps = append(s.Timestamps, bar.Timestamp.Unix())
		s.Closes = append(s.Closes, bar.Close)
		s.Volumes = append(s.Volumes, bar.Volume)
	}
	return s
}

// FetchSingle returns the cached or freshly fetched quote for symbol.
func (c *AlpacaDataClient) FetchSingle(symbol string) *Quote {
	if q := c.cache.Get(symbol); q != nil {
		return q
	}

	s := c.FetchSeries(symbol, c.rangeDays)
	if len(s.Closes) < 2 {
		return nil
	}

	current := s.Closes[len(s.Closes)-1]
	previous := s.Closes[len(s.Closes)-2]
	denom := previous
	if denom < 1e-9 {
		denom = 1e-9
	}
	var volume int64
	if len(s.Volumes) > 0 {
		volume = s.Volumes[len(s.Volumes)-1]
	}

	q := Quote{
		Current:   current,
		Previous:  previous,
		ChangePct: (current - previous) / denom * 100.0,
		History:   s.Closes,
		Volume:    volume,
	}
	c.cache.Put(symbol, q)
	return &q
}
