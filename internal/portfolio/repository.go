// Package portfolio owns the durable portfolio state: cash, positions,
// trades, the event log, and lookup telemetry.
package portfolio

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/market"
)

const maxEventDetail = 1600

// Position is one open holding.
type Position struct {
	Symbol     string
	Qty        float64
	AvgCost    float64
	LastPrice  float64
	UpdatedAt  string
	ExecutedAt string // first acquisition time, preserved across later BUYs
}

// PositionView is a position marked to the supplied price map.
type PositionView struct {
	Symbol    string  `json:"symbol"`
	Qty       float64 `json:"qty"`
	LastPrice float64 `json:"last_price"`
	AvgCost   float64 `json:"avg_cost"`
	PnL       float64 `json:"pnl"`
	MV        float64 `json:"mv"`
}

// State is the derived portfolio view; equity is never persisted.
type State struct {
	Cash      float64        `json:"cash"`
	Equity    float64        `json:"equity"`
	Positions []PositionView `json:"positions"`
}

// Trade is one executed slice, append-only.
type Trade struct {
	TradeID   int64
	TS        string
	Symbol    string
	Side      string
	Qty       float64
	Price     float64
	Notional  float64
	Reason    string
	InsightID int64
}

// Repository provides access to portfolio tables.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a portfolio repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// DB exposes the underlying handle for transaction composition.
func (r *Repository) DB() *sql.DB { return r.db }

// UTCNow returns the canonical timestamp format used across all tables.
func UTCNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Cash returns the cash balance, seeding startCash if the key is missing.
func (r *Repository) Cash(q database.Queryer, startCash float64) (float64, error) {
	var v string
	err := q.QueryRow("SELECT v FROM portfolio WHERE k='cash'").Scan(&v)
	if err == sql.ErrNoRows {
		if _, err := q.Exec("INSERT OR REPLACE INTO portfolio(k,v) VALUES('cash', ?)",
			strconv.FormatFloat(startCash, 'f', -1, 64)); err != nil {
			return 0, fmt.Errorf("failed to seed cash: %w", err)
		}
		return startCash, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cash: %w", err)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return startCash, nil
	}
	return f, nil
}

// SetCash stores the cash balance.
func (r *Repository) SetCash(q database.Queryer, cash float64) error {
	if _, err := q.Exec("INSERT OR REPLACE INTO portfolio(k,v) VALUES('cash', ?)",
		strconv.FormatFloat(cash, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to set cash: %w", err)
	}
	return nil
}

// KVGet reads a portfolio metadata value; nil when absent.
func (r *Repository) KVGet(q database.Queryer, k string) (*string, error) {
	var v string
	err := q.QueryRow("SELECT v FROM meta WHERE k=?", k).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meta %s: %w", k, err)
	}
	return &v, nil
}

// KVSet stores a portfolio metadata value.
func (r *Repository) KVSet(q database.Queryer, k, v string) error {
	if _, err := q.Exec("INSERT OR REPLACE INTO meta(k,v) VALUES(?,?)", k, v); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", k, err)
	}
	return nil
}

// GetPosition returns the position for symbol, or nil.
func (r *Repository) GetPosition(q database.Queryer, symbol string) (*Position, error) {
	row := q.QueryRow(
		"SELECT symbol, qty, avg_cost, last_price, updated_at, executed_at FROM positions WHERE symbol=?",
		symbol)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", symbol, err)
	}
	return p, nil
}

// ListPositions returns all positions ordered by symbol.
func (r *Repository) ListPositions(q database.Queryer) ([]Position, error) {
	rows, err := q.Query(
		"SELECT symbol, qty, avg_cost, last_price, updated_at, executed_at FROM positions ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpsertPosition writes a full position row.
func (r *Repository) UpsertPosition(q database.Queryer, p Position) error {
	if _, err := q.Exec(
		"INSERT OR REPLACE INTO positions(symbol, qty, avg_cost, last_price, updated_at, executed_at) VALUES(?,?,?,?,?,?)",
		p.Symbol, p.Qty, p.AvgCost, p.LastPrice, p.UpdatedAt, p.ExecutedAt); err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", p.Symbol, err)
	}
	return nil
}

// UpdatePositionQty updates quantity and mark for an existing row.
func (r *Repository) UpdatePositionQty(q database.Queryer, symbol string, qty, lastPrice float64) error {
	if _, err := q.Exec(
		"UPDATE positions SET qty=?, last_price=?, updated_at=? WHERE symbol=?",
		qty, lastPrice, UTCNow(), symbol); err != nil {
		return fmt.Errorf("failed to update position %s: %w", symbol, err)
	}
	return nil
}

// DeletePosition removes a closed position.
func (r *Repository) DeletePosition(q database.Queryer, symbol string) error {
	if _, err := q.Exec("DELETE FROM positions WHERE symbol=?", symbol); err != nil {
		return fmt.Errorf("failed to delete position %s: %w", symbol, err)
	}
	return nil
}

// MarkPositions updates last_price/updated_at on every position whose
// symbol appears in prices.
func (r *Repository) MarkPositions(q database.Queryer, prices map[string]market.Quote) error {
	now := UTCNow()
	for sym, quote := range prices {
		if _, err := q.Exec(
			"UPDATE positions SET last_price=?, updated_at=? WHERE symbol=?",
			quote.Current, now, sym); err != nil {
			return fmt.Errorf("failed to mark position %s: %w", sym, err)
		}
	}
	return nil
}

// PositionsAsMap returns symbol -> qty for all open positions.
func (r *Repository) PositionsAsMap(q database.Queryer) (map[string]float64, error) {
	rows, err := q.Query("SELECT symbol, qty FROM positions")
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var sym string
		var qty float64
		if err := rows.Scan(&sym, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan position qty: %w", err)
		}
		out[sym] = qty
	}
	return out, rows.Err()
}

// State marks every position to the supplied prices (falling back to the
// stored last_price) and derives equity = cash + Σ market value.
func (r *Repository) State(q database.Queryer, prices map[string]market.Quote, startCash float64) (*State, error) {
	cash, err := r.Cash(q, startCash)
	if err != nil {
		return nil, err
	}
	positions, err := r.ListPositions(q)
	if err != nil {
		return nil, err
	}

	st := &State{Cash: cash, Equity: cash, Positions: []PositionView{}}
	for _, p := range positions {
		last := p.LastPrice
		if quote, ok := prices[p.Symbol]; ok {
			last = quote.Current
		}
		mv := p.Qty * last
		st.Equity += mv
		st.Positions = append(st.Positions, PositionView{
			Symbol:    p.Symbol,
			Qty:       p.Qty,
			LastPrice: last,
			AvgCost:   p.AvgCost,
			PnL:       (last - p.AvgCost) * p.Qty,
			MV:        mv,
		})
	}
	return st, nil
}

// InsertTrade appends a trade row.
func (r *Repository) InsertTrade(q database.Queryer, t Trade) error {
	if t.TS == "" {
		t.TS = UTCNow()
	}
	if _, err := q.Exec(
		"INSERT INTO trades(ts, symbol, side, qty, price, notional, reason, insight_id) VALUES(?,?,?,?,?,?,?,?)",
		t.TS, t.Symbol, t.Side, t.Qty, t.Price, t.Notional, t.Reason, t.InsightID); err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// ListTrades returns all trades in chronological order.
func (r *Repository) ListTrades(q database.Queryer) ([]Trade, error) {
	rows, err := q.Query(
		"SELECT trade_id, ts, symbol, side, qty, price, notional, COALESCE(reason,''), COALESCE(insight_id,0) FROM trades ORDER BY ts ASC, trade_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.TradeID, &t.TS, &t.Symbol, &t.Side, &t.Qty, &t.Price, &t.Notional, &t.Reason, &t.InsightID); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentTradeSummary formats the last n trades oldest-first for prompts.
func (r *Repository) RecentTradeSummary(q database.Queryer, limit int) (string, error) {
	rows, err := q.Query(
		"SELECT ts, symbol, side, notional FROM trades ORDER BY trade_id DESC LIMIT ?", limit)
	if err != nil {
		return "", fmt.Errorf("failed to read recent trades: %w", err)
	}
	defer rows.Close()

	type line struct {
		ts, symbol, side string
		notional         float64
	}
	var recent []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.ts, &l.symbol, &l.side, &l.notional); err != nil {
			return "", fmt.Errorf("failed to scan trade summary: %w", err)
		}
		recent = append(recent, l)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return "No recent trades.", nil
	}

	var b strings.Builder
	for i := len(recent) - 1; i >= 0; i-- {
		l := recent[i]
		ts := l.ts
		if len(ts) > 19 {
			ts = ts[:19]
		}
		fmt.Fprintf(&b, "%s: %s %s notional=%.2f\n", ts, l.side, l.symbol, l.notional)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// LogEvent appends an audit-trail row; detail is truncated.
func (r *Repository) LogEvent(q database.Queryer, actor, action, detail string) error {
	if len(detail) > maxEventDetail {
		detail = detail[:maxEventDetail]
	}
	if _, err := q.Exec(
		"INSERT INTO dream_log(ts, actor, action, detail) VALUES(?,?,?,?)",
		UTCNow(), actor, action, detail); err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

// InsertTickerLookup records one fetch attempt for telemetry.
func (r *Repository) InsertTickerLookup(q database.Queryer, ticker string, success bool, price, changePct float64, volume int64) error {
	s := 0
	if success {
		s = 1
	}
	if _, err := q.Exec(
		"INSERT INTO ticker_lookups(ts, ticker, success, price, change_pct, volume) VALUES(?,?,?,?,?,?)",
		UTCNow(), ticker, s, price, changePct, volume); err != nil {
		return fmt.Errorf("failed to insert ticker lookup: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*Position, error) {
	var p Position
	var updatedAt, executedAt sql.NullString
	if err := row.Scan(&p.Symbol, &p.Qty, &p.AvgCost, &p.LastPrice, &updatedAt, &executedAt); err != nil {
		return nil, err
	}
	p.UpdatedAt = updatedAt.String
	p.ExecutedAt = executedAt.String
	return &p, nil
}
