package graph

import (
	"database/sql"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/kginvest/internal/database"
)

const ivHistoryLimit = 30

// UpsertOptionContract registers or refreshes a monitored contract.
// The graph node is created on first sight; the IV history keeps the
// most recent observations only.
func (e *Engine) UpsertOptionContract(q database.Queryer, m OptionMeta, now string) error {
	kind := "option_call"
	if m.OptType == "put" {
		kind = "option_put"
	}
	label := fmt.Sprintf("%s %s %.2f %s", m.Underlying, m.OptType, m.Strike, m.Expiration)
	desc := fmt.Sprintf("Monitored option contract on %s.", m.Underlying)
	if err := e.EnsureNode(q, m.NodeID, kind, label, desc, now); err != nil {
		return err
	}

	prev, err := e.GetOptionContract(q, m.NodeID)
	if err != nil {
		return err
	}
	history := m.IVHistory
	if prev != nil && len(history) == 0 {
		history = append(prev.IVHistory, m.IV)
	} else if len(history) == 0 {
		history = []float64{m.IV}
	}
	if len(history) > ivHistoryLimit {
		history = history[len(history)-ivHistoryLimit:]
	}

	blob, err := msgpack.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode iv history for %s: %w", m.NodeID, err)
	}
	if _, err := q.Exec(`
		INSERT INTO option_contracts(node_id, underlying, opt_type, strike, expiration, iv, delta, vega, iv_history, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(node_id) DO UPDATE SET
		  iv=excluded.iv, delta=excluded.delta, vega=excluded.vega,
		  iv_history=excluded.iv_history, updated_at=excluded.updated_at`,
		m.NodeID, m.Underlying, m.OptType, m.Strike, m.Expiration,
		m.IV, m.Delta, m.Vega, blob, now); err != nil {
		return fmt.Errorf("failed to upsert option contract %s: %w", m.NodeID, err)
	}
	return nil
}

// GetOptionContract returns one monitored contract, or nil.
func (e *Engine) GetOptionContract(q database.Queryer, nodeID string) (*OptionMeta, error) {
	row := q.QueryRow(`
		SELECT node_id, underlying, opt_type, strike, expiration, iv, delta, vega, iv_history
		FROM option_contracts WHERE node_id=?`, nodeID)
	m, err := scanOption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get option contract %s: %w", nodeID, err)
	}
	return m, nil
}

// ListOptionContracts returns all monitored contracts.
func (e *Engine) ListOptionContracts(q database.Queryer) ([]OptionMeta, error) {
	rows, err := q.Query(`
		SELECT node_id, underlying, opt_type, strike, expiration, iv, delta, vega, iv_history
		FROM option_contracts ORDER BY node_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list option contracts: %w", err)
	}
	defer rows.Close()

	var out []OptionMeta
	for rows.Next() {
		m, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option contract: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanOption(row rowScanner) (*OptionMeta, error) {
	var m OptionMeta
	var blob []byte
	if err := row.Scan(&m.NodeID, &m.Underlying, &m.OptType, &m.Strike,
		&m.Expiration, &m.IV, &m.Delta, &m.Vega, &blob); err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &m.IVHistory); err != nil {
			return nil, fmt.Errorf("failed to decode iv history for %s: %w", m.NodeID, err)
		}
	}
	return &m, nil
}
