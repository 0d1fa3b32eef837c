package market

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/database"
)

// Snapshot is one atomic observation of the universe.
type Snapshot struct {
	SnapshotID int64                 `json:"snapshot_id"`
	TS         string                `json:"ts"`
	Prices     map[string]Quote      `json:"prices"`
	Bells      map[string]Quote      `json:"bells"`
	Indicators map[string]Indicators `json:"indicators"`
	Signals    Signals               `json:"signals"`
}

// SnapshotRepo persists and reads the append-only snapshot tail.
type SnapshotRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepo creates a snapshot repository.
func NewSnapshotRepo(db *sql.DB, log zerolog.Logger) *SnapshotRepo {
	return &SnapshotRepo{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// DB exposes the underlying handle for transaction composition.
func (r *SnapshotRepo) DB() *sql.DB { return r.db }

// Insert appends a snapshot and returns its id.
func (r *SnapshotRepo) Insert(q database.Queryer, s Snapshot) (int64, error) {
	pricesJSON, err := json.Marshal(s.Prices)
	if err != nil {
		return 0, fmt.Errorf("failed to encode prices: %w", err)
	}
	bellsJSON, err := json.Marshal(s.Bells)
	if err != nil {
		return 0, fmt.Errorf("failed to encode bells: %w", err)
	}
	indicatorsJSON, err := json.Marshal(s.Indicators)
	if err != nil {
		return 0, fmt.Errorf("failed to encode indicators: %w", err)
	}
	signalsJSON, err := json.Marshal(s.Signals)
	if err != nil {
		return 0, fmt.Errorf("failed to encode signals: %w", err)
	}

	res, err := q.Exec(
		"INSERT INTO snapshots(ts, prices_json, bells_json, indicators_json, signals_json) VALUES(?,?,?,?,?)",
		s.TS, string(pricesJSON), string(bellsJSON), string(indicatorsJSON), string(signalsJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot id: %w", err)
	}
	return id, nil
}

// Trim deletes everything older than the most recent keep rows. The
// single-statement form keeps the bound tight inside the insert's
// transaction.
func (r *SnapshotRepo) Trim(q database.Queryer, keep int) error {
	if _, err := q.Exec(
		"DELETE FROM snapshots WHERE snapshot_id < (SELECT MAX(snapshot_id) - ? FROM snapshots)",
		keep); err != nil {
		return fmt.Errorf("failed to trim snapshots: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (r *SnapshotRepo) Latest(q database.Queryer) (*Snapshot, error) {
	var s Snapshot
	var pricesJSON, bellsJSON, indicatorsJSON, signalsJSON string
	err := q.QueryRow(
		"SELECT snapshot_id, ts, prices_json, bells_json, indicators_json, signals_json FROM snapshots ORDER BY snapshot_id DESC LIMIT 1").
		Scan(&s.SnapshotID, &s.TS, &pricesJSON, &bellsJSON, &indicatorsJSON, &signalsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(pricesJSON), &s.Prices); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}
	if err := json.Unmarshal([]byte(bellsJSON), &s.Bells); err != nil {
		return nil, fmt.Errorf("failed to decode bells: %w", err)
	}
	if err := json.Unmarshal([]byte(indicatorsJSON), &s.Indicators); err != nil {
		return nil, fmt.Errorf("failed to decode indicators: %w", err)
	}
	if err := json.Unmarshal([]byte(signalsJSON), &s.Signals); err != nil {
		return nil, fmt.Errorf("failed to decode signals: %w", err)
	}
	return &s, nil
}

// Count returns the number of stored snapshots.
func (r *SnapshotRepo) Count(q database.Queryer) (int, error) {
	var c int
	if err := q.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&c); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return c, nil
}
