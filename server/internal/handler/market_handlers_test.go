package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/anomaly"
	domain "github.com/hyperflow/hyperflow/internal/models"
	"github.com/hyperflow/hyperflow/internal/storage"
	"github.com/hyperflow/hyperflow/server/internal/handler"
	"github.com/hyperflow/hyperflow/server/internal/router"
	"github.com/hyperflow/hyperflow/server/internal/service"
)

func testRouter(t *testing.T) (*gin.Engine, storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	marketService := service.NewMarketService(store, detector, nil, nil, 5*time.Minute, logger)
	r := router.NewRouter(&router.Config{
		MarketHandler: handler.NewMarketHandler(marketService),
	})
	return r, store
}

func seedCandles(t *testing.T, store storage.Store, coin string, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := range candles {
		price := 100 + float64(i)
		candles[i] = domain.Candle{
			Coin:      coin,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	_, err := store.UpsertCandles(context.Background(), candles)
	require.NoError(t, err)
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGetCoins(t *testing.T) {
	r, store := testRouter(t)
	seedCandles(t, store, "bitcoin", 5)
	seedCandles(t, store, "ethereum", 5)

	w := doRequest(r, http.MethodGet, "/v1/coins")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Coins []string `json:"coins"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"bitcoin", "ethereum"}, body.Coins)
}

func TestGetCoinData(t *testing.T) {
	r, store := testRouter(t)
	seedCandles(t, store, "bitcoin", 50)

	w := doRequest(r, http.MethodGet, "/v1/coins/bitcoin?limit=30")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Coin   string `json:"coin"`
		Points []struct {
			Close float64  `json:"close"`
			RSI   *float64 `json:"rsi"`
		} `json:"points"`
		Summary struct {
			Records int `json:"records"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bitcoin", body.Coin)
	assert.Len(t, body.Points, 30)
	assert.Equal(t, 30, body.Summary.Records)
	// Early rows have no RSI yet; it must arrive as null, not NaN.
	assert.Nil(t, body.Points[0].RSI)
	assert.NotNil(t, body.Points[29].RSI)
}

func TestGetCoinDataTimeRange(t *testing.T) {
	r, store := testRouter(t)
	seedCandles(t, store, "bitcoin", 48)

	w := doRequest(r, http.MethodGet,
		"/v1/coins/bitcoin?from=2024-01-01T10:00:00Z&to=2024-01-01T19:00:00Z")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Points []struct {
			Timestamp time.Time `json:"timestamp"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Points, 10)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), body.Points[0].Timestamp.UTC())
}

func TestGetCoinDataBadTimeRange(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(r, http.MethodGet, "/v1/coins/bitcoin?from=yesterday")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCoinDataNotFound(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(r, http.MethodGet, "/v1/coins/dogecoin")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	r, store := testRouter(t)
	seedCandles(t, store, "bitcoin", 5)

	w := doRequest(r, http.MethodGet, "/v1/stats")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		CandleCount int64 `json:"candle_count"`
		UniqueCoins int64 `json:"unique_coins"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.CandleCount)
	assert.Equal(t, int64(1), body.UniqueCoins)
}

func TestGetAnomaliesEmpty(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(r, http.MethodGet, "/v1/anomalies")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Total int `json:"total_anomalies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Zero(t, body.Total)
}
