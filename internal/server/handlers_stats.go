package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	historyDefaultLimit = 50
	historyMaxLimit     = 200
	topTickerLimit      = 10
)

// handleStats serves lookup telemetry and per-worker counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	db := s.db.Conn()

	lookups, err := s.repo.GetLookupStats(db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	top, err := s.repo.TopTickers(db, s.cfg.Investibles, topTickerLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	perf := map[string]any{}
	for name, worker := range s.workers {
		st := worker.GetStats()
		perf[name] = map[string]any{
			"running":     worker.Running(),
			"steps":       st.Steps,
			"errors":      st.Errors,
			"last_ts":     st.LastTS,
			"last_action": st.LastAction,
			"last_error":  st.LastError,
			"counters":    st.Counters,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lookup_stats":       lookups,
		"top_tickers":        top,
		"worker_performance": perf,
	})
}

// handleTickerHistory serves recent fetch telemetry rows.
func (s *Server) handleTickerHistory(w http.ResponseWriter, r *http.Request) {
	limit := historyDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}

	history, err := s.repo.TickerHistory(s.db.Conn(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history, "count": len(history)})
}

// handleHealth reports process, host, and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbHealth := "ok"
	if err := s.db.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbHealth = err.Error()
	}

	doc := map[string]any{
		"status":         status,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"database":       dbHealth,
	}

	if stats, err := s.db.GetStats(); err == nil {
		doc["db_size_bytes"] = stats.SizeBytes
		doc["wal_size_bytes"] = stats.WALSizeBytes
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		doc["cpu_percent"] = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		doc["mem_percent"] = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		doc["disk_percent"] = du.UsedPercent
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, doc)
}
