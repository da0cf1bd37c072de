package resample

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/drivers/coingecko"
	"github.com/hyperflow/hyperflow/internal/models"
	"github.com/hyperflow/hyperflow/internal/normalize"
)

type fakeFetcher struct {
	charts map[string]*coingecko.MarketChart
	err    error
	calls  int
}

func (f *fakeFetcher) MarketChartRange(ctx context.Context, coinID, vsCurrency string, from, to time.Time) (*coingecko.MarketChart, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if chart, ok := f.charts[coinID]; ok {
		return chart, nil
	}
	return &coingecko.MarketChart{}, nil
}

type fakeStore struct {
	earliest  time.Time
	hasData   bool
	replaced  []models.Candle
	logs      []string
	logStatus []string
}

func (f *fakeStore) EarliestTimestamp(ctx context.Context, coin string) (time.Time, bool, error) {
	return f.earliest, f.hasData, nil
}

func (f *fakeStore) ReplaceCandles(ctx context.Context, coin string, candles []models.Candle) (int64, int64, error) {
	deleted := int64(len(f.replaced))
	f.replaced = candles
	return deleted, int64(len(candles)), nil
}

func (f *fakeStore) InsertETLLog(ctx context.Context, coin, status, message string, records int) error {
	f.logs = append(f.logs, message)
	f.logStatus = append(f.logStatus, status)
	return nil
}

func testConfig() configs.StandardizeConfig {
	return configs.StandardizeConfig{
		CandleWidth: 30 * time.Minute,
		ChunkSize:   7 * 24 * time.Hour,
		Lookback:    7 * 24 * time.Hour,
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestStandardizeCoinRebuildsHistory(t *testing.T) {
	now := time.Now().UTC()
	base := now.Add(-time.Hour).Truncate(30 * time.Minute)

	fetcher := &fakeFetcher{charts: map[string]*coingecko.MarketChart{
		"bitcoin": {
			Prices: []normalize.Point{
				{TimestampMS: base.Add(5 * time.Minute).UnixMilli(), Value: 100},
				{TimestampMS: base.Add(10 * time.Minute).UnixMilli(), Value: 110},
				{TimestampMS: base.Add(35 * time.Minute).UnixMilli(), Value: 105},
			},
			TotalVolumes: []normalize.Point{
				{TimestampMS: base.Add(5 * time.Minute).UnixMilli(), Value: 1000},
			},
		},
	}}
	store := &fakeStore{}

	s := NewStandardizer(fetcher, store, []string{"bitcoin"}, testConfig(), quietLogger())
	err := s.StandardizeCoin(context.Background(), "bitcoin")

	require.NoError(t, err)
	require.Len(t, store.replaced, 2)
	assert.Equal(t, 100.0, store.replaced[0].Open)
	assert.Equal(t, 110.0, store.replaced[0].High)
	assert.Equal(t, 110.0, store.replaced[0].Close)
	assert.Equal(t, 105.0, store.replaced[1].Close)
	require.Len(t, store.logStatus, 1)
	assert.Equal(t, "success", store.logStatus[0])
	assert.Contains(t, store.logs[0], "standardize 30m0s")
}

func TestStandardizeCoinNoData(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := &fakeStore{}

	s := NewStandardizer(fetcher, store, []string{"bitcoin"}, testConfig(), quietLogger())
	err := s.StandardizeCoin(context.Background(), "bitcoin")

	require.NoError(t, err)
	assert.Empty(t, store.replaced, "no replacement without tick data")
	assert.Empty(t, store.logs)
}

func TestStandardizeCoinChunksWindow(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 24 * time.Hour

	fetcher := &fakeFetcher{}
	store := &fakeStore{
		earliest: time.Now().UTC().Add(-60 * time.Hour),
		hasData:  true,
	}

	s := NewStandardizer(fetcher, store, []string{"bitcoin"}, cfg, quietLogger())
	err := s.StandardizeCoin(context.Background(), "bitcoin")

	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.calls, "a 60-hour window at 1-day chunks needs 3 fetches")
}

func TestRunIsolatesFailures(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	store := &fakeStore{}

	s := NewStandardizer(fetcher, store, []string{"bitcoin", "ethereum"}, testConfig(), quietLogger())
	err := s.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, store.logStatus, 2, "each failing coin gets an error log entry")
	assert.Equal(t, []string{"error", "error"}, store.logStatus)
}
