package coingecko

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperflow/hyperflow/configs"
)

func testClient(baseURL string) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewClient(configs.CoinGeckoConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		RateLimit:      60000, // effectively unpaced in tests
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}, logger)
}

func TestOHLCDecodesRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/ohlc" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("vs_currency") != "usd" {
			t.Errorf("Expected vs_currency=usd, got %s", r.URL.Query().Get("vs_currency"))
		}
		if r.URL.Query().Get("days") != "7" {
			t.Errorf("Expected days=7, got %s", r.URL.Query().Get("days"))
		}
		w.Write([]byte(`[[1700000000000, 100, 110, 95, 105], [1700003600000, 105, 108, 104, 106]]`))
	}))
	defer server.Close()

	rows, err := testClient(server.URL).OHLC(context.Background(), "bitcoin", "usd", 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Close != 105 {
		t.Errorf("Expected close 105, got %v", rows[0].Close)
	}
	if !math.IsNaN(rows[0].Volume) {
		t.Errorf("Expected NaN volume on 5-element rows, got %v", rows[0].Volume)
	}
}

func TestRetriesOnTooManyRequests(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"gecko_says": "(V3) To the Moon!"}`))
	}))
	defer server.Close()

	if err := testClient(server.URL).Ping(context.Background()); err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestServerErrorIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if err := testClient(server.URL).Ping(context.Background()); err == nil {
		t.Fatal("Expected error on 404")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected no retries on non-429 status, got %d attempts", got)
	}
}

func TestRequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-cg-pro-api-key") != "test-key" {
			t.Errorf("Expected API key header, got '%s'", r.Header.Get("x-cg-pro-api-key"))
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected Accept header, got '%s'", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if err := testClient(server.URL).Ping(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestMarketChartRangeParams(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart/range" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("from") != "1704067200" {
			t.Errorf("Expected from=1704067200, got %s", r.URL.Query().Get("from"))
		}
		w.Write([]byte(`{"prices": [[1704067200000, 42000]], "total_volumes": [[1704067200000, 1000000]]}`))
	}))
	defer server.Close()

	chart, err := testClient(server.URL).MarketChartRange(context.Background(), "bitcoin", "usd", from, to)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(chart.Prices) != 1 || chart.Prices[0].Value != 42000 {
		t.Errorf("Unexpected prices %+v", chart.Prices)
	}
}
