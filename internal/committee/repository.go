package committee

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/database"
)

// Insight is one persisted committee output. Status moves new ->
// applied or new -> queued -> applied; everything else is append-only.
type Insight struct {
	InsightID          int64   `json:"insight_id"`
	TS                 string  `json:"ts"`
	Title              string  `json:"title"`
	Body               string  `json:"body"`
	AgentsJSON         string  `json:"agents_json"`
	DecisionsJSON      string  `json:"decisions_json"`
	Confidence         float64 `json:"confidence"`
	CriticScore        float64 `json:"critic_score"`
	Starred            bool    `json:"starred"`
	Status             string  `json:"status"`
	EvidenceSnapshotID int64   `json:"evidence_snapshot_id"`
}

// Decisions decodes the stored decision list.
func (i *Insight) Decisions() ([]Decision, error) {
	var out []Decision
	if err := json.Unmarshal([]byte(i.DecisionsJSON), &out); err != nil {
		return nil, fmt.Errorf("failed to decode decisions for insight %d: %w", i.InsightID, err)
	}
	return out, nil
}

// InsightRepo persists committee outputs.
type InsightRepo struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewInsightRepo creates an insight repository.
func NewInsightRepo(db *sql.DB, log zerolog.Logger) *InsightRepo {
	return &InsightRepo{
		db:  db,
		log: log.With().Str("repo", "insights").Logger(),
	}
}

// DB exposes the underlying handle for transaction composition.
func (r *InsightRepo) DB() *sql.DB { return r.db }

// Insert persists a plan as an insight. Title and body are truncated to
// their column budgets.
func (r *InsightRepo) Insert(q database.Queryer, ts, title string, plan Plan, criticScore float64, starred bool, status string, snapshotID int64) (int64, error) {
	if len(title) > 120 {
		title = title[:120]
	}
	body := plan.Explanation
	if len(body) > 1800 {
		body = body[:1800]
	}
	agentsJSON, err := json.Marshal(plan.Agents)
	if err != nil {
		return 0, fmt.Errorf("failed to encode agents: %w", err)
	}
	decisionsJSON, err := json.Marshal(plan.Decisions)
	if err != nil {
		return 0, fmt.Errorf("failed to encode decisions: %w", err)
	}

	starredInt := 0
	if starred {
		starredInt = 1
	}
	res, err := q.Exec(`
		INSERT INTO insights(ts, title, body, agents_json, decisions_json, confidence, critic_score, starred, status, evidence_snapshot_id)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		ts, title, body, string(agentsJSON), string(decisionsJSON),
		plan.Confidence, criticScore, starredInt, status, snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert insight: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read insight id: %w", err)
	}
	return id, nil
}

// Get returns an insight by id, or nil.
func (r *InsightRepo) Get(q database.Queryer, id int64) (*Insight, error) {
	row := q.QueryRow(insightColumns+" WHERE insight_id=?", id)
	ins, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insight %d: %w", id, err)
	}
	return ins, nil
}

// UpdateStatus moves an insight to a new status.
func (r *InsightRepo) UpdateStatus(q database.Queryer, id int64, status string) error {
	if _, err := q.Exec("UPDATE insights SET status=? WHERE insight_id=?", status, id); err != nil {
		return fmt.Errorf("failed to update insight %d status: %w", id, err)
	}
	return nil
}

// RecentStarred returns the latest starred insights, newest first.
func (r *InsightRepo) RecentStarred(q database.Queryer, limit int) ([]Insight, error) {
	return r.list(q, insightColumns+" WHERE starred=1 ORDER BY insight_id DESC LIMIT ?", limit)
}

// ListByStatus returns insights in one status, oldest first.
func (r *InsightRepo) ListByStatus(q database.Queryer, status string) ([]Insight, error) {
	return r.list(q, insightColumns+" WHERE status=? ORDER BY insight_id ASC", status)
}

const insightColumns = "SELECT insight_id, ts, title, body, agents_json, decisions_json, confidence, critic_score, starred, status, COALESCE(evidence_snapshot_id,0) FROM insights"

func (r *InsightRepo) list(q database.Queryer, query string, args ...any) ([]Insight, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		ins, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		out = append(out, *ins)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInsight(row rowScanner) (*Insight, error) {
	var ins Insight
	var starred int
	if err := row.Scan(&ins.InsightID, &ins.TS, &ins.Title, &ins.Body,
		&ins.AgentsJSON, &ins.DecisionsJSON, &ins.Confidence, &ins.CriticScore,
		&starred, &ins.Status, &ins.EvidenceSnapshotID); err != nil {
		return nil, err
	}
	ins.Starred = starred == 1
	return &ins, nil
}
