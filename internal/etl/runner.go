// Package etl orchestrates ingestion runs: fetch, normalize, compute
// metrics, detect anomalies, persist, log.
package etl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hyperflow/hyperflow/internal/anomaly"
	"github.com/hyperflow/hyperflow/internal/metrics"
	"github.com/hyperflow/hyperflow/internal/normalize"
	"github.com/hyperflow/hyperflow/internal/storage"
	"github.com/hyperflow/hyperflow/internal/storage/models"
)

// DefaultFetchDays is the trailing window of one ingestion run.
const DefaultFetchDays = 7

// Fetcher is the upstream API surface the runner consumes.
type Fetcher interface {
	Ping(ctx context.Context) error
	OHLC(ctx context.Context, coinID, vsCurrency string, days int) ([]normalize.RawCandle, error)
}

// Runner executes ingestion runs over the configured coins. Failures
// are isolated per coin: one coin's failure is recorded as an error ETL
// log entry and the run continues with the next coin.
type Runner struct {
	fetcher  Fetcher
	store    storage.Store
	detector *anomaly.Detector
	opts     metrics.Options
	coins    []string
	days     int
	logger   *logrus.Entry
}

// NewRunner creates a pipeline runner.
func NewRunner(fetcher Fetcher, store storage.Store, detector *anomaly.Detector, coins []string, days int, logger *logrus.Logger) *Runner {
	if days <= 0 {
		days = DefaultFetchDays
	}
	return &Runner{
		fetcher:  fetcher,
		store:    store,
		detector: detector,
		opts:     metrics.DefaultOptions(),
		coins:    coins,
		days:     days,
		logger:   logger.WithField("component", "etl"),
	}
}

// Run checks upstream health and processes every configured coin.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.fetcher.Ping(ctx); err != nil {
		return fmt.Errorf("upstream API is not accessible: %w", err)
	}
	r.logger.Info("upstream health check passed")

	for _, coin := range r.coins {
		if _, err := r.RunCoin(ctx, coin); err != nil {
			r.logger.WithField("coin", coin).WithError(err).Error("processing failed")
			if logErr := r.store.InsertETLLog(ctx, coin, models.StatusError, err.Error(), 0); logErr != nil {
				r.logger.WithField("coin", coin).WithError(logErr).Warn("failed to record ETL log")
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}

// RunCoin ingests one coin: fetch, normalize, compute metrics, detect
// anomalies, upsert candles and write the success ETL log entry. It
// returns the number of candles written.
func (r *Runner) RunCoin(ctx context.Context, coin string) (int64, error) {
	log := r.logger.WithField("coin", coin)
	log.Info("processing coin")

	raw, err := r.fetcher.OHLC(ctx, coin, "usd", r.days)
	if err != nil {
		return 0, fmt.Errorf("fetch OHLC: %w", err)
	}

	candles := normalize.Candles(raw, coin)
	if len(candles) == 0 {
		log.Warn("no data to process")
		return 0, r.store.InsertETLLog(ctx, coin, models.StatusSuccess, "no data returned", 0)
	}

	result := metrics.All(candles, r.opts)
	summary := metrics.Summarize(coin, candles, result)
	log.WithFields(logrus.Fields{
		"records":  summary.Records,
		"last_rsi": summary.LastRSI,
	}).Debug("metrics computed")

	flags, err := r.detector.DetectAll(ctx, coin, candles)
	if err != nil {
		return 0, fmt.Errorf("detect anomalies: %w", err)
	}

	inserted, err := r.store.UpsertCandles(ctx, candles)
	if err != nil {
		return 0, fmt.Errorf("store candles: %w", err)
	}

	message := fmt.Sprintf("processed %d records, %d anomalies recorded", inserted, flags.Recorded)
	if err := r.store.InsertETLLog(ctx, coin, models.StatusSuccess, message, int(inserted)); err != nil {
		log.WithError(err).Warn("failed to record ETL log")
	}

	log.WithFields(logrus.Fields{"records": inserted, "anomalies": flags.Recorded}).
		Info("coin processed")
	return inserted, nil
}
