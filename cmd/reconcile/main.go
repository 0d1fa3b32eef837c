// Command reconcile replays the local trade ledger, derives expected
// cash and positions, and prints the drift against the broker when
// credentials are configured.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/config"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/portfolio"
	"github.com/aristath/kginvest/internal/trading"
	"github.com/aristath/kginvest/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.For(logger.New(logger.Config{Level: "warn", Pretty: true}), "reconcile")

	db, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileLedger,
		Name:    "kginvest",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	repo := portfolio.NewRepository(db.Conn(), log)

	var brokerQty map[string]float64
	if cfg.AlpacaAPIKey != "" && cfg.AlpacaSecretKey != "" {
		broker := trading.NewAlpacaClient(
			cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.AlpacaPaperMode, cfg.YahooTimeout, log)
		positions, err := broker.GetPositions()
		if err != nil {
			log.Warn().Err(err).Msg("broker positions unavailable, comparing against local book")
		} else {
			brokerQty = map[string]float64{}
			for _, p := range positions {
				brokerQty[p.Symbol] = p.Qty
			}
		}
	}

	report, err := trading.BuildReport(db.Conn(), repo, cfg.StartCash, brokerQty)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build reconciliation report")
	}
	fmt.Println(report.Render())
}
