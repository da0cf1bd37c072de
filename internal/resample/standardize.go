package resample

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/drivers/coingecko"
	"github.com/hyperflow/hyperflow/internal/models"
	"github.com/hyperflow/hyperflow/internal/normalize"
)

// RangeFetcher fetches price+volume history for an explicit window.
type RangeFetcher interface {
	MarketChartRange(ctx context.Context, coinID, vsCurrency string, from, to time.Time) (*coingecko.MarketChart, error)
}

// CandleStore is the persistence surface the standardizer needs.
type CandleStore interface {
	// EarliestTimestamp returns the oldest stored candle time for coin;
	// found is false when the coin has no data.
	EarliestTimestamp(ctx context.Context, coin string) (ts time.Time, found bool, err error)

	// ReplaceCandles deletes the coin's full history and inserts the
	// given candles in one transaction.
	ReplaceCandles(ctx context.Context, coin string, candles []models.Candle) (deleted, inserted int64, err error)

	// InsertETLLog appends one run log entry.
	InsertETLLog(ctx context.Context, coin, status, message string, recordsProcessed int) error
}

// Standardizer rebuilds each coin's candle history at one fixed
// granularity from raw tick data, replacing any prior
// inconsistent-granularity rows. Re-running it reproduces the same
// candles given stable upstream data.
type Standardizer struct {
	fetcher RangeFetcher
	store   CandleStore
	coins   []string
	cfg     configs.StandardizeConfig
	logger  *logrus.Entry
}

// NewStandardizer creates a standardizer for the configured coins.
func NewStandardizer(fetcher RangeFetcher, store CandleStore, coins []string, cfg configs.StandardizeConfig, logger *logrus.Logger) *Standardizer {
	return &Standardizer{
		fetcher: fetcher,
		store:   store,
		coins:   coins,
		cfg:     cfg,
		logger:  logger.WithField("component", "standardizer"),
	}
}

// Run standardizes every configured coin. A coin's failure is recorded
// as an error ETL log entry and the pass continues with the next coin.
func (s *Standardizer) Run(ctx context.Context) error {
	for _, coin := range s.coins {
		if err := s.StandardizeCoin(ctx, coin); err != nil {
			s.logger.WithField("coin", coin).WithError(err).Error("standardization failed")
			if logErr := s.store.InsertETLLog(ctx, coin, "error", err.Error(), 0); logErr != nil {
				s.logger.WithField("coin", coin).WithError(logErr).Warn("failed to record ETL log")
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}

// StandardizeCoin rebuilds one coin's history at the configured width.
func (s *Standardizer) StandardizeCoin(ctx context.Context, coin string) error {
	log := s.logger.WithField("coin", coin)
	log.WithField("width", s.cfg.CandleWidth).Info("standardizing candles")

	now := time.Now().UTC()
	start, found, err := s.store.EarliestTimestamp(ctx, coin)
	if err != nil {
		return fmt.Errorf("determine rebuild window: %w", err)
	}
	if !found {
		start = now.Add(-s.cfg.Lookback)
	}

	ticks, err := s.fetchTicks(ctx, coin, start, now)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		log.Warn("no tick data returned; skipping")
		return nil
	}

	candles := FromTicks(ticks, coin, s.cfg.CandleWidth)

	deleted, inserted, err := s.store.ReplaceCandles(ctx, coin, candles)
	if err != nil {
		return fmt.Errorf("replace candles: %w", err)
	}

	message := fmt.Sprintf("standardize %s: deleted %d, inserted %d", s.cfg.CandleWidth, deleted, inserted)
	if err := s.store.InsertETLLog(ctx, coin, "success", message, int(inserted)); err != nil {
		log.WithError(err).Warn("failed to record ETL log")
	}

	log.WithFields(logrus.Fields{"deleted": deleted, "inserted": inserted}).Info("standardized")
	return nil
}

// fetchTicks pulls the window in bounded chunks, concatenates the
// results and deduplicates by timestamp.
func (s *Standardizer) fetchTicks(ctx context.Context, coin string, start, end time.Time) ([]models.Tick, error) {
	var all []models.Tick
	for from := start; from.Before(end); from = from.Add(s.cfg.ChunkSize) {
		to := from.Add(s.cfg.ChunkSize)
		if to.After(end) {
			to = end
		}

		chart, err := s.fetcher.MarketChartRange(ctx, coin, "usd", from, to)
		if err != nil {
			return nil, fmt.Errorf("fetch range %s..%s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), err)
		}
		all = append(all, normalize.Ticks(chart.Prices, chart.TotalVolumes)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return normalize.DedupeTicks(all), nil
}
