package main

import (
	"context"
	"flag"
	"strings"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/anomaly"
	"github.com/hyperflow/hyperflow/internal/drivers/coingecko"
	"github.com/hyperflow/hyperflow/internal/etl"
	"github.com/hyperflow/hyperflow/internal/storage"
	"github.com/hyperflow/hyperflow/pkg/logger"
)

func main() {
	var (
		coinsFlag string
		days      int
	)

	flag.StringVar(&coinsFlag, "coins", "", "Comma-separated coin IDs to process (default: configured coins)")
	flag.IntVar(&days, "days", etl.DefaultFetchDays, "Days of OHLC history to fetch per coin")
	flag.Parse()

	cfg := configs.AppLoad()
	appLogger := logger.New(cfg.LogLevel)

	coins := cfg.SupportedCoins
	if coinsFlag != "" {
		coins = strings.Split(coinsFlag, ",")
		for i := range coins {
			coins[i] = strings.TrimSpace(coins[i])
		}
	}

	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		appLogger.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	gecko := coingecko.NewClient(cfg.CoinGecko, appLogger)
	detector := anomaly.NewDetector(store, cfg.Anomaly, appLogger)
	runner := etl.NewRunner(gecko, store, detector, coins, days, appLogger)

	appLogger.Infof("Starting pipeline for %d coins", len(coins))

	ctx := context.Background()
	if err := runner.Run(ctx); err != nil {
		appLogger.Fatalf("Pipeline failed: %v", err)
	}

	appLogger.Info("Pipeline completed")
}
