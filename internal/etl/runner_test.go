package etl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/anomaly"
	"github.com/hyperflow/hyperflow/internal/normalize"
	"github.com/hyperflow/hyperflow/internal/storage"
	"github.com/hyperflow/hyperflow/internal/storage/models"
)

type fakeFetcher struct {
	pingErr error
	rows    map[string][]normalize.RawCandle
	errs    map[string]error
}

func (f *fakeFetcher) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeFetcher) OHLC(ctx context.Context, coinID, vsCurrency string, days int) ([]normalize.RawCandle, error) {
	if err, ok := f.errs[coinID]; ok {
		return nil, err
	}
	return f.rows[coinID], nil
}

func rawRows(n int) []normalize.RawCandle {
	rows := make([]normalize.RawCandle, n)
	for i := range rows {
		price := 100 + float64(i)
		rows[i] = normalize.RawCandle{
			TimestampMS: int64(1700000000000 + i*3600000),
			Open:        price,
			High:        price + 1,
			Low:         price - 1,
			Close:       price,
			Volume:      1000,
			HasVolume:   true,
		}
	}
	return rows
}

func newRunner(t *testing.T, fetcher Fetcher, coins []string) (*Runner, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	detector := anomaly.NewDetector(store, configs.AnomalyConfig{
		VolumeThreshold:  3.0,
		PriceThreshold:   2.5,
		VolatilityWindow: 24,
	}, logger)

	return NewRunner(fetcher, store, detector, coins, DefaultFetchDays, logger), store
}

func TestRunCoinPersistsCandlesAndLog(t *testing.T) {
	fetcher := &fakeFetcher{rows: map[string][]normalize.RawCandle{
		"bitcoin": rawRows(48),
	}}
	runner, store := newRunner(t, fetcher, []string{"bitcoin"})
	ctx := context.Background()

	inserted, err := runner.RunCoin(ctx, "bitcoin")

	require.NoError(t, err)
	assert.Equal(t, int64(48), inserted)

	candles, err := store.LatestCandles(ctx, "bitcoin", 100)
	require.NoError(t, err)
	assert.Len(t, candles, 48)

	logs, err := store.ETLLogs(ctx, "bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.StatusSuccess, logs[0].Status)
	assert.Equal(t, 48, logs[0].RecordsProcessed)
	assert.Contains(t, logs[0].Message, "processed 48 records")
}

func TestRunCoinEmptyPayload(t *testing.T) {
	fetcher := &fakeFetcher{}
	runner, store := newRunner(t, fetcher, []string{"bitcoin"})
	ctx := context.Background()

	inserted, err := runner.RunCoin(ctx, "bitcoin")

	require.NoError(t, err)
	assert.Zero(t, inserted)

	logs, err := store.ETLLogs(ctx, "bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.StatusSuccess, logs[0].Status)
	assert.Equal(t, "no data returned", logs[0].Message)
	assert.Zero(t, logs[0].RecordsProcessed)
}

func TestRunCoinMalformedPayloadFails(t *testing.T) {
	fetcher := &fakeFetcher{
		rows: map[string][]normalize.RawCandle{"ethereum": rawRows(10)},
		errs: map[string]error{
			"bitcoin": fmt.Errorf("%w: unexpected OHLCV row length 4", normalize.ErrMalformedPayload),
		},
	}
	runner, store := newRunner(t, fetcher, []string{"bitcoin", "ethereum"})
	ctx := context.Background()

	inserted, err := runner.RunCoin(ctx, "bitcoin")

	require.Error(t, err, "a malformed payload must surface to the caller")
	assert.ErrorIs(t, err, normalize.ErrMalformedPayload)
	assert.Zero(t, inserted)

	// A full run still records the failure and moves on to the next coin.
	require.NoError(t, runner.Run(ctx))

	logs, err := store.ETLLogs(ctx, "bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.StatusError, logs[0].Status)
	assert.Contains(t, logs[0].Message, "fetch OHLC")

	candles, err := store.LatestCandles(ctx, "ethereum", 100)
	require.NoError(t, err)
	assert.Len(t, candles, 10)
}

func TestRunIsolatesCoinFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		rows: map[string][]normalize.RawCandle{"ethereum": rawRows(10)},
		errs: map[string]error{"bitcoin": errors.New("upstream down")},
	}
	runner, store := newRunner(t, fetcher, []string{"bitcoin", "ethereum"})
	ctx := context.Background()

	err := runner.Run(ctx)

	require.NoError(t, err)

	candles, err := store.LatestCandles(ctx, "ethereum", 100)
	require.NoError(t, err)
	assert.Len(t, candles, 10, "the failing coin must not block the next one")

	logs, err := store.ETLLogs(ctx, "bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.StatusError, logs[0].Status)
}

func TestRunFailsWhenUpstreamUnreachable(t *testing.T) {
	fetcher := &fakeFetcher{pingErr: errors.New("connection refused")}
	runner, _ := newRunner(t, fetcher, []string{"bitcoin"})

	err := runner.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accessible")
}
