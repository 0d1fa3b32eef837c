package market

import (
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
}

// chartResponse mirrors the Yahoo v8 chart envelope.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// YahooClient fetches daily bars from the public chart API.
type YahooClient struct {
	http      *resty.Client
	breaker   *gobreaker.CircuitBreaker
	cache     *QuoteCache
	rangeDays int
	log       zerolog.Logger
}

// NewYahooClient creates a Yahoo chart client.
func NewYahooClient(timeout time.Duration, rangeDays int, cache *QuoteCache, log zerolog.Logger) *YahooClient {
	return &YahooClient{
		http: resty.New().
			SetBaseURL("https://query2.finance.yahoo.com/v8/finance").
			SetTimeout(timeout),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "yahoo",
			MaxRequests: 2,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		cache:     cache,
		rangeDays: rangeDays,
		log:       log.With().Str("client", "yahoo").Logger(),
	}
}

// FetchSeries returns the daily bar history for symbol, empty on failure.
// Bars with a null close or volume are dropped.
func (c *YahooClient) FetchSeries(symbol string, days int) Series {
	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.R().
			SetHeader("User-Agent", userAgents[rand.Intn(len(userAgents))]).
			SetHeader("Accept", "application/json").
			SetQueryParams(map[string]string{
				"interval": "1d",
				"range":    fmt.Sprintf("%dd", days),
			}).
			SetResult(&chartResponse{}).
			Get("/chart/" + url.PathEscape(symbol))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("yahoo HTTP %d for %s", resp.StatusCode(), symbol)
		}
		return resp.Result().(*chartResponse), nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("chart fetch failed")
		return Series{Symbol: symbol}
	}

	body := out.(*chartResponse)
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return Series{Symbol: symbol}
	}
	result := body.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	s := Series{Symbol: symbol}
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		var vol int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		s.Timestamps = append(s.Timestamps, ts)
		s.Closes = append(s.Closes, *quote.Close[i])
		s.Volumes = append(s.Volumes, vol)
	}
	return s
}

// FetchSingle returns the cached or freshly fetched quote for symbol,
// nil when the series is too short or the fetch failed.
func (c *YahooClient) FetchSingle(symbol string) *Quote {
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
