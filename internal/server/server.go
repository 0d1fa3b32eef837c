// Package server exposes the HTTP surface: state and stats APIs, graph
// browsing, worker controls, insight approval, health, metrics, and a
// websocket state stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/committee"
	"github.com/aristath/kginvest/internal/config"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/graph"
	"github.com/aristath/kginvest/internal/llm"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/portfolio"
	"github.com/aristath/kginvest/internal/trading"
	"github.com/aristath/kginvest/internal/workers"
	"github.com/aristath/kginvest/pkg/embedded"
)

// ControlledWorker is the supervisor surface each worker exposes.
type ControlledWorker interface {
	Start()
	StopNow()
	Running() bool
	StepOnce() error
	GetStats() workers.Stats
}

// Server hosts the HTTP API.
type Server struct {
	cfg       *config.Config
	db        *database.DB
	engine    *graph.Engine
	snapshots *market.SnapshotRepo
	repo      *portfolio.Repository
	insights  *committee.InsightRepo
	budget    *llm.Budget
	executor  trading.TradeExecutor
	workers   map[string]ControlledWorker
	startedAt time.Time
	http      *http.Server
	log       zerolog.Logger
}

// Deps bundles everything the server serves.
type Deps struct {
	Cfg       *config.Config
	DB        *database.DB
	Engine    *graph.Engine
	Snapshots *market.SnapshotRepo
	Repo      *portfolio.Repository
	Insights  *committee.InsightRepo
	Budget    *llm.Budget
	Executor  trading.TradeExecutor
	Market    ControlledWorker
	Dream     ControlledWorker
	Think     ControlledWorker
}

// New builds the server and its routes.
func New(d Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:       d.Cfg,
		db:        d.DB,
		engine:    d.Engine,
		snapshots: d.Snapshots,
		repo:      d.Repo,
		insights:  d.Insights,
		budget:    d.Budget,
		executor:  d.Executor,
		workers: map[string]ControlledWorker{
			"market": d.Market,
			"dream":  d.Dream,
			"think":  d.Think,
		},
		startedAt: time.Now(),
		log:       log.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/state", s.handleState)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/ticker-history", s.handleTickerHistory)
	r.Get("/api/health", s.handleHealth)

	r.Route("/api/worker/{name}", func(r chi.Router) {
		r.Post("/start", s.handleWorkerStart)
		r.Post("/stop", s.handleWorkerStop)
		r.Post("/step", s.handleWorkerStep)
	})

	r.Post("/api/insight/{id}/approve", s.handleInsightApprove)
	r.Post("/api/options", s.handleOptionRegister)

	r.Get("/graph-data", s.handleGraphData)
	r.Get("/node/{id}", s.handleNodeDetail)
	r.Get("/edge/{id}", s.handleEdgeDetail)

	r.Get("/ws", s.handleWS)
	r.Handle("/metrics", promhttp.Handler())

	if assets, err := embedded.Static(); err == nil {
		r.Handle("/*", http.FileServer(http.FS(assets)))
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", d.Cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
