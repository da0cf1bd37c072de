package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/drivers/coingecko"
	"github.com/hyperflow/hyperflow/internal/resample"
	"github.com/hyperflow/hyperflow/internal/storage"
	"github.com/hyperflow/hyperflow/pkg/logger"
)

func main() {
	var (
		coinsFlag string
		width     time.Duration
		lookback  time.Duration
	)

	flag.StringVar(&coinsFlag, "coins", "", "Comma-separated coin IDs to standardize (default: configured coins)")
	flag.DurationVar(&width, "width", 0, "Candle width, e.g. 30m (default: configured width)")
	flag.DurationVar(&lookback, "lookback", 0, "History window for coins with no stored data, e.g. 168h (default: configured lookback)")
	flag.Parse()

	cfg := configs.AppLoad()
	appLogger := logger.New(cfg.LogLevel)

	if width > 0 {
		cfg.Standardize.CandleWidth = width
	}
	if lookback > 0 {
		cfg.Standardize.Lookback = lookback
	}

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
	standardizer := resample.NewStandardizer(gecko, store, coins, cfg.Standardize, appLogger)

	appLogger.Infof("Standardizing %d coins to %s candles", len(coins), cfg.Standardize.CandleWidth)

	ctx := context.Background()
	if err := standardizer.Run(ctx); err != nil {
		appLogger.Fatalf("Standardization failed: %v", err)
	}

	appLogger.Info("Standardization completed")
}
