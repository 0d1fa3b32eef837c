package portfolio

import (
	"fmt"
	"strings"

	"github.com/aristath/kginvest/internal/database"
)

// LogLine is one audit-trail row.
type LogLine struct {
	TS     string `json:"ts"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// RecentLogs returns the newest limit audit rows, newest first.
func (r *Repository) RecentLogs(q database.Queryer, limit int) ([]LogLine, error) {
	rows, err := q.Query(
		"SELECT ts, actor, action, COALESCE(detail,'') FROM dream_log ORDER BY log_id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent logs: %w", err)
	}
	defer rows.Close()

	var out []LogLine
	for rows.Next() {
		var l LogLine
		if err := rows.Scan(&l.TS, &l.Actor, &l.Action, &l.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan log line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LookupStats summarizes fetch telemetry over the whole table plus the
// trailing 24 hours.
type LookupStats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
	Recent24h   int     `json:"recent_24h"`
}

// GetLookupStats computes aggregate lookup telemetry.
func (r *Repository) GetLookupStats(q database.Queryer) (*LookupStats, error) {
	var s LookupStats
	err := q.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(success),0) FROM ticker_lookups").Scan(&s.Total, &s.Successful)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup totals: %w", err)
	}
	s.Failed = s.Total - s.Successful
	if s.Total > 0 {
		// One decimal place, matching the dashboard display.
		s.SuccessRate = float64(int(float64(s.Successful)/float64(s.Total)*1000+0.5)) / 10
	}
	err = q.QueryRow(
		"SELECT COUNT(*) FROM ticker_lookups WHERE datetime(ts) >= datetime('now','-1 day')").Scan(&s.Recent24h)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent lookups: %w", err)
	}
	return &s, nil
}

// TickerCount is one row of lookup leaderboard data.
type TickerCount struct {
	Ticker   string  `json:"ticker"`
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avg_price"`
}

// TopTickers returns the most-fetched symbols among the supplied universe
// with their average observed price.
func (r *Repository) TopTickers(q database.Queryer, universe []string, limit int) ([]TickerCount, error) {
	if len(universe) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(universe)), ",")
	args := make([]any, 0, len(universe)+1)
	for _, t := range universe {
		args = append(args, t)
	}
	args = append(args, limit)

	rows, err := q.Query(fmt.Sprintf(`
		SELECT ticker, COUNT(*) AS c, COALESCE(AVG(price),0)
		FROM ticker_lookups
		WHERE success=1 AND ticker IN (%s)
		GROUP BY ticker ORDER BY c DESC LIMIT ?`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read top tickers: %w", err)
	}
	defer rows.Close()

	var out []TickerCount
	for rows.Next() {
		var tc TickerCount
		if err := rows.Scan(&tc.Ticker, &tc.Count, &tc.AvgPrice); err != nil {
			return nil, fmt.Errorf("failed to scan ticker count: %w", err)
		}
		tc.AvgPrice = float64(int(tc.AvgPrice*100+0.5)) / 100
		out = append(out, tc)
	}
	return out, rows.Err()
}

// LookupLine is one recorded fetch attempt.
type LookupLine struct {
	TS        string  `json:"ts"`
	Ticker    string  `json:"ticker"`
	Success   bool    `json:"success"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
}

// TickerHistory returns the newest limit lookup rows, newest first, with
// timestamps trimmed to seconds.
func (r *Repository) TickerHistory(q database.Queryer, limit int) ([]LookupLine, error) {
	rows, err := q.Query(
		"SELECT ts, ticker, success, price, change_pct, volume FROM ticker_lookups ORDER BY lookup_id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read ticker history: %w", err)
	}
	defer rows.Close()

	var out []LookupLine
	for rows.Next() {
		var l LookupLine
		var success int
		if err := rows.Scan(&l.TS, &l.Ticker, &success, &l.Price, &l.ChangePct, &l.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan lookup: %w", err)
		}
		l.Success = success == 1
		if len(l.TS) > 19 {
			l.TS = l.TS[:19]
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
