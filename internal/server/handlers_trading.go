package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/graph"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/metrics"
	"github.com/aristath/kginvest/internal/portfolio"
)

// handleInsightApprove applies a starred plan on demand. Outside the
// trading window the insight is queued instead.
func (s *Server) handleInsightApprove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid insight id")
		return
	}
	db := s.db.Conn()

	ins, err := s.insights.Get(db, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ins == nil {
		writeError(w, http.StatusNotFound, "insight not found")
		return
	}
	if ins.Status == "applied" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "already applied"})
		return
	}

	if !market.CanTradeNow(s.cfg.TradeAnytime, time.Now()) {
		err := database.WithTransaction(db, func(tx *sql.Tx) error {
			if err := s.insights.UpdateStatus(tx, id, "queued"); err != nil {
				return err
			}
			return s.repo.LogEvent(tx, "trade", "approve_queued",
				fmt.Sprintf("id=%d market_open=True", id))
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "queued"})
		return
	}

	decisions, err := ins.Decisions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snap, err := s.snapshots.Latest(db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		writeError(w, http.StatusConflict, "no market snapshot yet")
		return
	}

	var executed, skipped int
	err = database.WithTransaction(db, func(tx *sql.Tx) error {
		res, err := s.executor.Execute(tx, decisions, snap.Prices,
			fmt.Sprintf("manual approve insight %d", id), id)
		if err != nil {
			return err
		}
		executed, skipped = len(res.Executed), len(res.Skipped)
		for _, slice := range res.Executed {
			metrics.TradesExecuted.WithLabelValues(slice.Side).Inc()
		}
		if err := s.insights.UpdateStatus(tx, id, "applied"); err != nil {
			return err
		}
		return s.repo.LogEvent(tx, "trade", "approve_applied",
			fmt.Sprintf("id=%d executed=%d", id, executed))
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "status": "applied", "executed": executed, "skipped": skipped,
	})
}

type optionRegisterRequest struct {
	NodeID     string  `json:"node_id"`
	Underlying string  `json:"underlying"`
	OptType    string  `json:"opt_type"`
	Strike     float64 `json:"strike"`
	Expiration string  `json:"expiration"`
	IV         float64 `json:"iv"`
	Delta      float64 `json:"delta"`
	Vega       float64 `json:"vega"`
}

// handleOptionRegister registers or refreshes a monitored option
// contract for the dream worker to assess.
func (s *Server) handleOptionRegister(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.OptionsEnabled {
		writeError(w, http.StatusForbidden, "options disabled")
		return
	}
	var req optionRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Underlying = strings.ToUpper(strings.TrimSpace(req.Underlying))
	req.OptType = strings.ToLower(strings.TrimSpace(req.OptType))
	if req.Underlying == "" || req.Strike <= 0 || req.Expiration == "" {
		writeError(w, http.StatusBadRequest, "underlying, strike, and expiration are required")
		return
	}
	if req.OptType != "call" && req.OptType != "put" {
		writeError(w, http.StatusBadRequest, "opt_type must be call or put")
		return
	}
	if req.NodeID == "" {
		req.NodeID = fmt.Sprintf("OPT:%s:%s:%.2f:%s", req.Underlying, req.OptType, req.Strike, req.Expiration)
	}

	meta := graph.OptionMeta{
		NodeID:     req.NodeID,
		Underlying: req.Underlying,
		OptType:    req.OptType,
		Strike:     req.Strike,
		Expiration: req.Expiration,
		IV:         req.IV,
		Delta:      req.Delta,
		Vega:       req.Vega,
	}
	if err := s.engine.UpsertOptionContract(s.db.Conn(), meta, portfolio.UTCNow()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "node_id": req.NodeID})
}
