package market

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

type cacheEntry struct {
	fetchedAt time.Time
	quote     Quote
}

// QuoteCache is a per-symbol TTL cache. Entries are also persisted as
// msgpack blobs so a restart inside the TTL window avoids refetching.
type QuoteCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	db      *sql.DB // optional persistence; nil disables it
	log     zerolog.Logger
}

// NewQuoteCache creates a cache with the given TTL. db may be nil.
func NewQuoteCache(ttl time.Duration, db *sql.DB, log zerolog.Logger) *QuoteCache {
	return &QuoteCache{
		ttl:     ttl,
		entries: map[string]cacheEntry{},
		db:      db,
		log:     log.With().Str("component", "quote_cache").Logger(),
	}
}

// Get returns a fresh cached quote or nil.
func (c *QuoteCache) Get(symbol string) *Quote {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[symbol]; ok && now.Sub(e.fetchedAt) <= c.ttl {
		q := e.quote
		c.mu.Unlock()
		return &q
	}
	c.mu.Unlock()

	if c.db == nil {
		return nil
	}

	var fetchedAt string
	var payload []byte
	err := c.db.QueryRow(
		"SELECT fetched_at, payload FROM price_cache WHERE symbol=?", symbol,
	).Scan(&fetchedAt, &payload)
	if err != nil {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil || now.Sub(ts) > c.ttl {
		return nil
	}
	var q Quote
	if err := msgpack.Unmarshal(payload, &q); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to decode cached quote")
		return nil
	}

	c.mu.Lock()
	c.entries[symbol] = cacheEntry{fetchedAt: ts, quote: q}
	c.mu.Unlock()
	return &q
}

// Put stores a quote in memory and, when persistence is enabled, on disk.
func (c *QuoteCache) Put(symbol string, q Quote) {
	now := time.Now()

	c.mu.Lock()
	c.entries[symbol] = cacheEntry{fetchedAt: now, quote: q}
	c.mu.Unlock()

	if c.db == nil {
		return
	}
	payload, err := msgpack.Marshal(&q)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to encode quote for cache")
		return
	}
	if _, err := c.db.Exec(
		"INSERT OR REPLACE INTO price_cache(symbol, fetched_at, payload) VALUES(?,?,?)",
		symbol, now.UTC().Format(time.RFC3339), payload); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to persist cached quote")
	}
}
