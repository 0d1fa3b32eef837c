package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/kginvest/internal/committee"
	"github.com/aristath/kginvest/internal/market"
)

const (
	stateLogLines    = 12
	stateInsights    = 8
	stateDecisionMax = 900
	wsPushEvery      = 3 * time.Second
)

// buildStateDoc assembles the dashboard document served over HTTP and
// pushed on the websocket.
func (s *Server) buildStateDoc() (map[string]any, error) {
	db := s.db.Conn()

	nodes, err := s.engine.NodeCount(db)
	if err != nil {
		return nil, err
	}
	edges, err := s.engine.EdgeCount(db)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshots.Latest(db)
	if err != nil {
		return nil, err
	}
	var prices map[string]market.Quote
	latest := map[string]any{
		"spy": "—", "qqq": "—", "vix": "—", "uup": "—",
		"signals": "{}",
	}
	if snap != nil {
		prices = snap.Prices
		for key, sym := range map[string]string{"spy": "SPY", "qqq": "QQQ", "vix": "^VIX", "uup": "UUP"} {
			if q, ok := snap.Bells[sym]; ok {
				latest[key] = formatPct(q.ChangePct)
			} else if q, ok := snap.Prices[sym]; ok {
				latest[key] = formatPct(q.ChangePct)
			}
		}
		sj, _ := json.Marshal(snap.Signals)
		latest["signals"] = string(sj)
	}

	st, err := s.repo.State(db, prices, s.cfg.StartCash)
	if err != nil {
		return nil, err
	}

	logs, err := s.repo.RecentLogs(db, stateLogLines)
	if err != nil {
		return nil, err
	}

	starred, err := s.insights.RecentStarred(db, stateInsights)
	if err != nil {
		return nil, err
	}
	insights := make([]map[string]any, 0, len(starred))
	for _, ins := range starred {
		dec := ins.DecisionsJSON
		if len(dec) > stateDecisionMax {
			dec = dec[:stateDecisionMax]
		}
		insights = append(insights, map[string]any{
			"insight_id":   ins.InsightID,
			"ts":           ins.TS,
			"title":        ins.Title,
			"confidence":   ins.Confidence,
			"critic_score": ins.CriticScore,
			"starred":      ins.Starred,
			"status":       ins.Status,
			"decisions":    dec,
		})
	}

	return map[string]any{
		"nodes":          nodes,
		"edges":          edges,
		"market_running": s.workers["market"].Running(),
		"dream_running":  s.workers["dream"].Running(),
		"think_running":  s.workers["think"].Running(),
		"auto_trade":     s.cfg.AutoTrade,
		"latest":         latest,
		"portfolio": map[string]any{
			"cash":      committee.FmtMoney(st.Cash),
			"equity":    committee.FmtMoney(st.Equity),
			"positions": st.Positions,
		},
		"llm":      s.budget.Stats(),
		"logs":     logs,
		"insights": insights,
	}, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	doc, err := s.buildStateDoc()
	if err != nil {
		s.log.Error().Err(err).Msg("state build failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleWS streams the state document until the client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	ticker := time.NewTicker(wsPushEvery)
	defer ticker.Stop()

	for {
		doc, err := s.buildStateDoc()
		if err != nil {
			s.log.Error().Err(err).Msg("state build failed")
			return
		}
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = wsjson.Write(writeCtx, c, doc)
		cancel()
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func formatPct(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}
