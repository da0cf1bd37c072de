package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/anomaly"
	"github.com/hyperflow/hyperflow/internal/drivers/coingecko"
	"github.com/hyperflow/hyperflow/internal/etl"
	"github.com/hyperflow/hyperflow/internal/llm"
	"github.com/hyperflow/hyperflow/internal/storage"
	"github.com/hyperflow/hyperflow/pkg/logger"
	"github.com/hyperflow/hyperflow/server/internal/handler"
	"github.com/hyperflow/hyperflow/server/internal/router"
	"github.com/hyperflow/hyperflow/server/internal/service"
)

func main() {
	cfg := configs.AppLoad()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	appLogger := logger.New(cfg.LogLevel)

	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	migrateFlag := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	if *migrateFlag {
		sqlDB, err := store.DB()
		if err != nil {
			log.Fatalf("Failed to get sql.DB: %v", err)
		}
		if err := goose.SetDialect("sqlite3"); err != nil {
			log.Fatalf("Goose: failed to set dialect: %v", err)
		}
		log.Println("Running database migrations...")
		if err := goose.Up(sqlDB, "internal/migrations"); err != nil {
			log.Fatalf("Goose migration failed: %v", err)
		}
		return
	}

	gecko := coingecko.NewClient(cfg.CoinGecko, appLogger)
	detector := anomaly.NewDetector(store, cfg.Anomaly, appLogger)
	llmClient := llm.NewClient(cfg.OpenAI, appLogger)
	runner := etl.NewRunner(gecko, store, detector, cfg.SupportedCoins, etl.DefaultFetchDays, appLogger)

	marketService := service.NewMarketService(store, detector, llmClient, runner, cfg.Server.RefreshCooldown, appLogger)
	marketHandler := handler.NewMarketHandler(marketService)

	routerConfig := &router.Config{
		MarketHandler: marketHandler,
	}

	r := router.NewRouter(routerConfig)

	if err := r.Run(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
