package graph

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/database"
)

// Node is one knowledge-graph vertex.
type Node struct {
	NodeID      string  `json:"node_id"`
	Kind        string  `json:"kind"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Degree      int     `json:"degree"`
	LastTouched string  `json:"last_touched"`
}

// Edge is one undirected multi-channel relationship.
type Edge struct {
	EdgeID          int64   `json:"edge_id"`
	NodeA           string  `json:"node_a"`
	NodeB           string  `json:"node_b"`
	Weight          float64 `json:"weight"`
	TopChannel      string  `json:"top_channel"`
	LastAssessed    string  `json:"last_assessed"`
	AssessmentCount int     `json:"assessment_count"`
}

// Channel is one labeled relationship on an edge.
type Channel struct {
	Channel  string  `json:"channel"`
	Strength float64 `json:"strength"`
}

// Engine provides access to the graph tables.
type Engine struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewEngine creates a graph engine.
func NewEngine(db *sql.DB, log zerolog.Logger) *Engine {
	return &Engine{
		db:  db,
		log: log.With().Str("repo", "graph").Logger(),
	}
}

// DB exposes the underlying handle for transaction composition.
func (e *Engine) DB() *sql.DB { return e.db }

// EnsureNode inserts a node if it does not exist yet.
func (e *Engine) EnsureNode(q database.Queryer, nodeID, kind, label, description, now string) error {
	if _, err := q.Exec(
		"INSERT OR IGNORE INTO nodes(node_id, kind, label, description, last_touched) VALUES(?,?,?,?,?)",
		nodeID, kind, label, description, now); err != nil {
		return fmt.Errorf("failed to ensure node %s: %w", nodeID, err)
	}
	return nil
}

// EnsureEdgeID returns the edge id for the normalized pair, creating the
// edge row on first use.
func (e *Engine) EnsureEdgeID(q database.Queryer, a, b string) (int64, error) {
	na, nb := NormPair(a, b)
	if _, err := q.Exec(
		"INSERT OR IGNORE INTO edges(node_a, node_b, weight) VALUES(?,?,0)", na, nb); err != nil {
		return 0, fmt.Errorf("failed to ensure edge %s-%s: %w", na, nb, err)
	}
	var id int64
	if err := q.QueryRow(
		"SELECT edge_id FROM edges WHERE node_a=? AND node_b=?", na, nb).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read edge id for %s-%s: %w", na, nb, err)
	}
	return id, nil
}

// ReplaceChannels atomically rewrites an edge's channel set and derives
// weight/top_channel. Must run inside the caller's transaction.
func (e *Engine) ReplaceChannels(q database.Queryer, edgeID int64, channels map[string]float64, now string) error {
	if _, err := q.Exec("DELETE FROM edge_channels WHERE edge_id=?", edgeID); err != nil {
		return fmt.Errorf("failed to clear channels for edge %d: %w", edgeID, err)
	}
	for ch, s := range channels {
		if _, err := q.Exec(
			"INSERT OR REPLACE INTO edge_channels(edge_id, channel, strength) VALUES(?,?,?)",
			edgeID, ch, s); err != nil {
			return fmt.Errorf("failed to insert channel %s for edge %d: %w", ch, edgeID, err)
		}
	}
	weight, top := WeightAndTop(channels)
	if _, err := q.Exec(
		"UPDATE edges SET weight=?, top_channel=?, last_assessed=?, assessment_count=assessment_count+1 WHERE edge_id=?",
		weight, top, now, edgeID); err != nil {
		return fmt.Errorf("failed to update edge %d: %w", edgeID, err)
	}
	return nil
}

// TouchNodes bumps last_touched and score for the two endpoints and
// recomputes their degrees.
func (e *Engine) TouchNodes(q database.Queryer, a, b, now string) error {
	if _, err := q.Exec(
		"UPDATE nodes SET last_touched=?, score=score+0.005 WHERE node_id IN (?,?)",
		now, a, b); err != nil {
		return fmt.Errorf("failed to touch nodes %s,%s: %w", a, b, err)
	}
	if _, err := q.Exec(`
		UPDATE nodes SET degree = (
		  SELECT COUNT(*) FROM edges WHERE edges.node_a = nodes.node_id OR edges.node_b = nodes.node_id
		) WHERE node_id IN (?,?)`, a, b); err != nil {
		return fmt.Errorf("failed to recompute degree for %s,%s: %w", a, b, err)
	}
	return nil
}

// RecomputeAllDegrees recomputes degree for every node.
func (e *Engine) RecomputeAllDegrees(q database.Queryer) error {
	if _, err := q.Exec(`
		UPDATE nodes SET degree = (
		  SELECT COUNT(*) FROM edges WHERE edges.node_a = nodes.node_id OR edges.node_b = nodes.node_id
		)`); err != nil {
		return fmt.Errorf("failed to recompute degrees: %w", err)
	}
	return nil
}

// NodeCount returns the number of nodes.
func (e *Engine) NodeCount(q database.Queryer) (int, error) {
	var c int
	if err := q.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&c); err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return c, nil
}

// EdgeCount returns the number of edges.
func (e *Engine) EdgeCount(q database.Queryer) (int, error) {
	var c int
	if err := q.QueryRow("SELECT COUNT(*) FROM edges").Scan(&c); err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return c, nil
}

// GetNode returns a node by id, or nil.
func (e *Engine) GetNode(q database.Queryer, nodeID string) (*Node, error) {
	var n Node
	var desc, touched sql.NullString
	err := q.QueryRow(
		"SELECT node_id, kind, label, description, score, degree, last_touched FROM nodes WHERE node_id=?",
		nodeID).Scan(&n.NodeID, &n.Kind, &n.Label, &desc, &n.Score, &n.Degree, &touched)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", nodeID, err)
	}
	n.Description = desc.String
	n.LastTouched = touched.String
	return &n, nil
}

// GetEdge returns an edge by id, or nil.
func (e *Engine) GetEdge(q database.Queryer, edgeID int64) (*Edge, error) {
	row := q.QueryRow(
		"SELECT edge_id, node_a, node_b, weight, top_channel, last_assessed, assessment_count FROM edges WHERE edge_id=?",
		edgeID)
	ed, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge %d: %w", edgeID, err)
	}
	return ed, nil
}

// GetEdgeByPair returns the edge for the normalized pair, or nil.
func (e *Engine) GetEdgeByPair(q database.Queryer, a, b string) (*Edge, error) {
	na, nb := NormPair(a, b)
	row := q.QueryRow(
		"SELECT edge_id, node_a, node_b, weight, top_channel, last_assessed, assessment_count FROM edges WHERE node_a=? AND node_b=?",
		na, nb)
	ed, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge %s-%s: %w", na, nb, err)
	}
	return ed, nil
}

// Channels returns an edge's channels ordered by strength.
func (e *Engine) Channels(q database.Queryer, edgeID int64) ([]Channel, error) {
	rows, err := q.Query(
		"SELECT channel, strength FROM edge_channels WHERE edge_id=? ORDER BY strength DESC", edgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read channels for edge %d: %w", edgeID, err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.Channel, &c.Strength); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IncidentEdges returns up to limit edges touching nodeID, heaviest first.
func (e *Engine) IncidentEdges(q database.Queryer, nodeID string, limit int) ([]Edge, error) {
	rows, err := q.Query(`
		SELECT edge_id, node_a, node_b, weight, top_channel, last_assessed, assessment_count
		FROM edges WHERE node_a=? OR node_b=?
		ORDER BY weight DESC LIMIT ?`, nodeID, nodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read incident edges for %s: %w", nodeID, err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		ed, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		out = append(out, *ed)
	}
	return out, rows.Err()
}

// TopNodes returns the most prominent nodes by degree + 5·score.
func (e *Engine) TopNodes(q database.Queryer, limit int) ([]Node, error) {
	rows, err := q.Query(`
		SELECT node_id, kind, label, COALESCE(description,''), score, degree, COALESCE(last_touched,'')
		FROM nodes ORDER BY (degree*1.0 + score*5.0) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read top nodes: %w", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.NodeID, &n.Kind, &n.Label, &n.Description, &n.Score, &n.Degree, &n.LastTouched); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// TopEdges returns the heaviest edges.
func (e *Engine) TopEdges(q database.Queryer, limit int) ([]Edge, error) {
	rows, err := q.Query(`
		SELECT edge_id, node_a, node_b, weight, top_channel, last_assessed, assessment_count
		FROM edges ORDER BY weight DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read top edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		ed, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		out = append(out, *ed)
	}
	return out, rows.Err()
}

// NodesByKind returns node ids of one kind.
func (e *Engine) NodesByKind(q database.Queryer, kind string) ([]string, error) {
	rows, err := q.Query("SELECT node_id FROM nodes WHERE kind=?", kind)
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes of kind %s: %w", kind, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan node id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdge(row rowScanner) (*Edge, error) {
	var ed Edge
	var top, assessed sql.NullString
	if err := row.Scan(&ed.EdgeID, &ed.NodeA, &ed.NodeB, &ed.Weight, &top, &assessed, &ed.AssessmentCount); err != nil {
		return nil, err
	}
	ed.TopChannel = top.String
	ed.LastAssessed = assessed.String
	return &ed, nil
}
