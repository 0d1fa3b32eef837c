package market

import (
	"sync"

	"github.com/rs/zerolog"
)

// FetchMany fans single-symbol fetches out over at most maxWorkers
// goroutines. Individual failures are omitted from the result.
func FetchMany(f Fetcher, symbols []string, maxWorkers int) map[string]Quote {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	var mu sync.Mutex
	results := make(map[string]Quote, len(symbols))

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			if q := f.FetchSingle(sym); q != nil {
				mu.Lock()
				results[sym] = *q
				mu.Unlock()
			}
		}(sym)
	}
	wg.Wait()
	return results
}

// Router selects the configured data provider and falls back to Yahoo
// when the primary pool comes back empty.
type Router struct {
	Provider string // yahoo | alpaca
	Yahoo    *YahooClient
	Alpaca   *AlpacaDataClient
	Log      zerolog.Logger
}

// FetchMany routes the pool fetch through the configured provider.
func (r *Router) FetchMany(symbols []string, maxWorkers int) map[string]Quote {
	if r.Provider == "alpaca" && r.Alpaca != nil {
		results := FetchMany(r.Alpaca, symbols, maxWorkers)
		if len(results) > 0 {
			return results
		}
		r.Log.Warn().Msg("alpaca pool fetch empty, falling back to yahoo")
	}
	return FetchMany(r.Yahoo, symbols, maxWorkers)
}

// FetchManyYahoo always uses the Yahoo client, for index/futures symbols
// the alternative provider cannot serve.
func (r *Router) FetchManyYahoo(symbols []string, maxWorkers int) map[string]Quote {
	return FetchMany(r.Yahoo, symbols, maxWorkers)
}
