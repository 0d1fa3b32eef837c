package database

import (
	"database/sql"
	"fmt"
	"strconv"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
    k TEXT PRIMARY KEY,
    v TEXT
);

CREATE TABLE IF NOT EXISTS nodes (
    node_id      TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    label        TEXT NOT NULL,
    description  TEXT DEFAULT '',
    score        REAL DEFAULT 0,
    degree       INTEGER DEFAULT 0,
    last_touched TEXT
);

CREATE TABLE IF NOT EXISTS edges (
    edge_id          INTEGER PRIMARY KEY AUTOINCREMENT,
    node_a           TEXT NOT NULL,
    node_b           TEXT NOT NULL,
    weight           REAL DEFAULT 0,
    top_channel      TEXT,
    last_assessed    TEXT,
    assessment_count INTEGER DEFAULT 0,
    UNIQUE(node_a, node_b)
);

CREATE TABLE IF NOT EXISTS edge_channels (
    edge_id  INTEGER NOT NULL,
    channel  TEXT NOT NULL,
    strength REAL NOT NULL,
    PRIMARY KEY (edge_id, channel)
);

CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_id     INTEGER PRIMARY KEY AUTOINCREMENT,
    ts              TEXT NOT NULL,
    prices_json     TEXT NOT NULL,
    bells_json      TEXT NOT NULL,
    indicators_json TEXT NOT NULL,
    signals_json    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio (
    k TEXT PRIMARY KEY,
    v TEXT
);

CREATE TABLE IF NOT EXISTS positions (
    symbol      TEXT PRIMARY KEY,
    qty         REAL NOT NULL,
    avg_cost    REAL NOT NULL,
    last_price  REAL DEFAULT 0,
    updated_at  TEXT,
    executed_at TEXT
);

CREATE TABLE IF NOT EXISTS trades (
    trade_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    ts         TEXT NOT NULL,
    symbol     TEXT NOT NULL,
    side       TEXT NOT NULL,
    qty        REAL NOT NULL,
    price      REAL NOT NULL,
    notional   REAL NOT NULL,
    reason     TEXT,
    insight_id INTEGER
);

CREATE TABLE IF NOT EXISTS insights (
    insight_id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ts                   TEXT NOT NULL,
    title                TEXT NOT NULL,
    body                 TEXT NOT NULL,
    agents_json          TEXT NOT NULL,
    decisions_json       TEXT NOT NULL,
    confidence           REAL DEFAULT 0,
    critic_score         REAL DEFAULT 0,
    starred              INTEGER DEFAULT 0,
    status               TEXT DEFAULT 'new',
    evidence_snapshot_id INTEGER
);

CREATE TABLE IF NOT EXISTS dream_log (
    log_id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts     TEXT NOT NULL,
    actor  TEXT NOT NULL,
    action TEXT NOT NULL,
    detail TEXT
);

CREATE TABLE IF NOT EXISTS ticker_lookups (
    lookup_id  INTEGER PRIMARY KEY AUTOINCREMENT,
    ts         TEXT NOT NULL,
    ticker     TEXT NOT NULL,
    success    INTEGER NOT NULL,
    price      REAL,
    change_pct REAL,
    volume     INTEGER
);

CREATE TABLE IF NOT EXISTS option_contracts (
    node_id    TEXT PRIMARY KEY,
    underlying TEXT NOT NULL,
    opt_type   TEXT NOT NULL,
    strike     REAL NOT NULL,
    expiration TEXT NOT NULL,
    iv         REAL DEFAULT 0,
    delta      REAL DEFAULT 0,
    vega       REAL DEFAULT 0,
    iv_history BLOB,
    updated_at TEXT
);

CREATE TABLE IF NOT EXISTS price_cache (
    symbol     TEXT PRIMARY KEY,
    fetched_at TEXT NOT NULL,
    payload    BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_node_a ON edges(node_a);
CREATE INDEX IF NOT EXISTS idx_edges_node_b ON edges(node_b);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_lookups_ticker ON ticker_lookups(ticker);
`

// InitSchema creates all tables idempotently and seeds the cash balance
// if it is absent.
func InitSchema(db *sql.DB, startCash float64) error {
	return WithTransaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(schemaSQL); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}

		var v string
		err := tx.QueryRow("SELECT v FROM portfolio WHERE k='cash'").Scan(&v)
		if err == sql.ErrNoRows {
			if _, err := tx.Exec(
				"INSERT INTO portfolio(k, v) VALUES('cash', ?)",
				strconv.FormatFloat(startCash, 'f', -1, 64),
			); err != nil {
				return fmt.Errorf("failed to seed cash: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read cash: %w", err)
		}
		return nil
	})
}
