package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) workerFromRequest(w http.ResponseWriter, r *http.Request) (ControlledWorker, bool) {
	name := chi.URLParam(r, "name")
	worker, ok := s.workers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown worker")
		return nil, false
	}
	return worker, true
}

func (s *Server) handleWorkerStart(w http.ResponseWriter, r *http.Request) {
	worker, ok := s.workerFromRequest(w, r)
	if !ok {
		return
	}
	worker.Start()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": worker.Running()})
}

func (s *Server) handleWorkerStop(w http.ResponseWriter, r *http.Request) {
	worker, ok := s.workerFromRequest(w, r)
	if !ok {
		return
	}
	worker.StopNow()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": worker.Running()})
}

func (s *Server) handleWorkerStep(w http.ResponseWriter, r *http.Request) {
	worker, ok := s.workerFromRequest(w, r)
	if !ok {
		return
	}
	if err := worker.StepOnce(); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": false, "running": worker.Running(), "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": worker.Running()})
}
