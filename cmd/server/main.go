// Command server runs the trading engine: the three workers, the
// maintenance scheduler, and the HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/committee"
	"github.com/aristath/kginvest/internal/config"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/graph"
	"github.com/aristath/kginvest/internal/llm"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/portfolio"
	"github.com/aristath/kginvest/internal/scheduler"
	"github.com/aristath/kginvest/internal/server"
	"github.com/aristath/kginvest/internal/trading"
	"github.com/aristath/kginvest/internal/workers"
	"github.com/aristath/kginvest/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Str("db", cfg.DBPath).Int("port", cfg.Port).Msg("starting kginvest")

	db, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileLedger,
		Name:    "kginvest",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.InitSchema(db.Conn(), cfg.StartCash); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	engine := graph.NewEngine(db.Conn(), log)
	if err := engine.BootstrapIfEmpty(cfg.Investibles, cfg.AllBellwethers()); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap graph")
	}

	cache := market.NewQuoteCache(time.Duration(cfg.YahooCacheSeconds)*time.Second, db.Conn(), log)
	yahoo := market.NewYahooClient(cfg.YahooTimeout, cfg.YahooRangeDays, cache, log)
	router := &market.Router{Provider: cfg.DataProvider, Yahoo: yahoo, Log: log}
	if cfg.AlpacaAPIKey != "" && cfg.AlpacaSecretKey != "" {
		router.Alpaca = market.NewAlpacaDataClient(
			cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.YahooTimeout, cfg.YahooRangeDays, cache, log)
	}

	var provider llm.Provider
	switch cfg.LLMProvider {
	case "openrouter":
		provider = llm.NewOpenRouterProvider(
			cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.DreamModel,
			cfg.LLMTemp, cfg.LLMMaxTokens, cfg.LLMTimeout)
	default:
		provider = llm.NewOllamaProvider(cfg.OllamaURL, cfg.DreamModel, cfg.LLMTemp, cfg.LLMTimeout)
	}
	budget := llm.NewBudget(cfg.LLMCallsPerMin)
	adapter := llm.NewAdapter(provider, budget, cfg.LLMMaxReask, log)

	repo := portfolio.NewRepository(db.Conn(), log)
	insights := committee.NewInsightRepo(db.Conn(), log)
	snapshots := market.NewSnapshotRepo(db.Conn(), log)
	adjudicator := graph.NewAdjudicator(adapter)
	com := committee.New(adapter, cfg.ExplanationMinLength, log)

	rails := committee.Guardrails{
		MinCashBufferPct:   cfg.MinCashBufferPct,
		MaxBuyEquityPct:    cfg.MaxBuyEquityPctPerCycle,
		MaxSellHoldingPct:  cfg.MaxSellHoldingPctPerCycle,
		MaxSymbolWeightPct: cfg.MaxSymbolWeightPct,
		MinTradeNotional:   cfg.MinTradeNotional,
	}
	var executor trading.TradeExecutor
	if cfg.BrokerProvider == "alpaca" {
		broker := trading.NewAlpacaClient(
			cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.AlpacaPaperMode, cfg.YahooTimeout, log)
		executor = trading.NewBrokerExecutor(broker, repo, rails, cfg.StartCash, log)
	} else {
		executor = trading.NewExecutor(repo, rails, cfg.StartCash, log)
	}

	marketWorker := workers.NewMarketWorker(cfg, router, snapshots, repo, log)
	dreamWorker := workers.NewDreamWorker(cfg, engine, adjudicator, snapshots, repo, log)
	thinkWorker := workers.NewThinkWorker(cfg, com, insights, snapshots, repo, executor, log)

	if cfg.AutoMarket {
		marketWorker.Start()
	}
	if cfg.AutoDream {
		dreamWorker.Start()
	}
	if cfg.AutoThink {
		thinkWorker.Start()
	}

	sched := scheduler.New(log)
	mustAddJob(sched, "0 */10 * * * *", &scheduler.WALCheckpointJob{DB: db}, log)
	mustAddJob(sched, "30 * * * * *", &scheduler.QueuedInsightFlushJob{
		Insights:     insights,
		Snapshots:    snapshots,
		Repo:         repo,
		Executor:     executor,
		TradeAnytime: cfg.TradeAnytime,
		Log:          log,
	}, log)
	if cfg.BackupS3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load AWS configuration")
		}
		mustAddJob(sched, "0 0 */6 * * *", &scheduler.S3BackupJob{
			DB:     db,
			Client: s3.NewFromConfig(awsCfg),
			Bucket: cfg.BackupS3Bucket,
			Prefix: cfg.BackupS3Prefix,
			Log:    log,
		}, log)
	}
	sched.Start()

	srv := server.New(server.Deps{
		Cfg:       cfg,
		DB:        db,
		Engine:    engine,
		Snapshots: snapshots,
		Repo:      repo,
		Insights:  insights,
		Budget:    budget,
		Executor:  executor,
		Market:    marketWorker,
		Dream:     dreamWorker,
		Think:     thinkWorker,
	}, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	marketWorker.StopNow()
	dreamWorker.StopNow()
	thinkWorker.StopNow()
	sched.Stop()
	log.Info().Msg("stopped")
}

func mustAddJob(s *scheduler.Scheduler, schedule string, job scheduler.Job, log zerolog.Logger) {
	if err := s.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("failed to register job")
	}
}
