// Package market fetches price data and derives indicators and regime
// signals from it.
package market

// Quote is the per-symbol payload the rest of the system consumes.
type Quote struct {
	Current   float64   `json:"current" msgpack:"current"`
	Previous  float64   `json:"previous" msgpack:"previous"`
	ChangePct float64   `json:"change_pct" msgpack:"change_pct"`
	History   []float64 `json:"history" msgpack:"history"`
	Volume    int64     `json:"volume" msgpack:"volume"`
}

// Series is a raw daily bar history.
type Series struct {
	Symbol     string
	Timestamps []int64
	Closes     []float64
	Volumes    []int64
}

// Fetcher is a single-symbol price source.
type Fetcher interface {
	// FetchSingle returns nil on any failure; failures are omissions.
	FetchSingle(symbol string) *Quote
}
