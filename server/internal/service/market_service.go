// Package service exposes the dashboard-facing read and action surface
// over the shared store, metrics engine, anomaly detector and LLM client.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperflow/hyperflow/internal/anomaly"
	"github.com/hyperflow/hyperflow/internal/etl"
	"github.com/hyperflow/hyperflow/internal/llm"
	"github.com/hyperflow/hyperflow/internal/metrics"
	domain "github.com/hyperflow/hyperflow/internal/models"
	"github.com/hyperflow/hyperflow/internal/storage"
	storagemodels "github.com/hyperflow/hyperflow/internal/storage/models"
)

// ErrRefreshTooSoon is returned when a manual refresh is requested
// inside the cooldown window after a successful run.
var ErrRefreshTooSoon = fmt.Errorf("recent run detected; try again later")

// CandlePoint is one dashboard row: the candle plus its derived metric
// columns. Undefined metrics serialize as null.
type CandlePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	Returns           metrics.Float `json:"returns"`
	LogReturns        metrics.Float `json:"log_returns"`
	CumulativeReturns metrics.Float `json:"cumulative_returns"`
	Volatility        metrics.Float `json:"volatility"`
	SMA7              metrics.Float `json:"sma_7"`
	SMA30             metrics.Float `json:"sma_30"`
	EMA7              metrics.Float `json:"ema_7"`
	EMA30             metrics.Float `json:"ema_30"`
	BBUpper           metrics.Float `json:"bb_upper"`
	BBMiddle          metrics.Float `json:"bb_middle"`
	BBLower           metrics.Float `json:"bb_lower"`
	BBPosition        metrics.Float `json:"bb_position"`
	RSI               metrics.Float `json:"rsi"`
	MACD              metrics.Float `json:"macd"`
	MACDSignal        metrics.Float `json:"macd_signal"`
	MACDHistogram     metrics.Float `json:"macd_histogram"`
	VolumeRatio       metrics.Float `json:"volume_ratio"`
	VWAP              metrics.Float `json:"vwap"`

	AnomalyFlag bool `json:"anomaly"`
}

// CoinData is the dashboard payload for one coin.
type CoinData struct {
	Coin    string           `json:"coin"`
	Points  []CandlePoint    `json:"points"`
	Summary *metrics.Summary `json:"summary"`
}

// MarketService serves dashboard queries and actions.
type MarketService struct {
	store    storage.Store
	detector *anomaly.Detector
	llmc     *llm.Client
	runner   *etl.Runner
	opts     metrics.Options
	cooldown time.Duration
	logger   *logrus.Entry
}

// NewMarketService wires the dashboard service.
func NewMarketService(store storage.Store, detector *anomaly.Detector, llmc *llm.Client, runner *etl.Runner, cooldown time.Duration, logger *logrus.Logger) *MarketService {
	return &MarketService{
		store:    store,
		detector: detector,
		llmc:     llmc,
		runner:   runner,
		opts:     metrics.DefaultOptions(),
		cooldown: cooldown,
		logger:   logger.WithField("component", "server"),
	}
}

// Coins lists the coins with stored candles.
func (s *MarketService) Coins(ctx context.Context) ([]string, error) {
	return s.store.Coins(ctx)
}

// CoinData loads candles for coin and computes every metric column per
// row. With a zero from/to it loads up to limit recent candles,
// otherwise the candles inside [from, to].
func (s *MarketService) CoinData(ctx context.Context, coin string, limit int, from, to time.Time) (*CoinData, error) {
	var candles []domain.Candle
	var err error
	if from.IsZero() && to.IsZero() {
		candles, err = s.store.LatestCandles(ctx, coin, limit)
	} else {
		if to.IsZero() {
			to = time.Now().UTC()
		}
		candles, err = s.store.CandlesByRange(ctx, coin, from, to)
	}
	if err != nil {
		return nil, err
	}

	result := metrics.All(candles, s.opts)
	summary := metrics.Summarize(coin, candles, result)

	points := make([]CandlePoint, len(candles))
	for i, c := range candles {
		points[i] = CandlePoint{
			Timestamp:         c.Timestamp,
			Open:              c.Open,
			High:              c.High,
			Low:               c.Low,
			Close:             c.Close,
			Volume:            c.Volume,
			Returns:           metrics.Float(result.Returns[i]),
			LogReturns:        metrics.Float(result.LogReturns[i]),
			CumulativeReturns: metrics.Float(result.CumulativeReturns[i]),
			Volatility:        metrics.Float(result.Volatility[i]),
			SMA7:              metrics.Float(result.SMA[7][i]),
			SMA30:             metrics.Float(result.SMA[30][i]),
			EMA7:              metrics.Float(result.EMA[7][i]),
			EMA30:             metrics.Float(result.EMA[30][i]),
			BBUpper:           metrics.Float(result.BBUpper[i]),
			BBMiddle:          metrics.Float(result.BBMiddle[i]),
			BBLower:           metrics.Float(result.BBLower[i]),
			BBPosition:        metrics.Float(result.BBPosition[i]),
			RSI:               metrics.Float(result.RSI[i]),
			MACD:              metrics.Float(result.MACD[i]),
			MACDSignal:        metrics.Float(result.MACDSignal[i]),
			MACDHistogram:     metrics.Float(result.MACDHistogram[i]),
			VolumeRatio:       metrics.Float(result.VolumeRatio[i]),
			VWAP:              metrics.Float(result.VWAP[i]),
		}
	}
	return &CoinData{Coin: coin, Points: points, Summary: summary}, nil
}

// AnomalySummary aggregates persisted anomaly events.
func (s *MarketService) AnomalySummary(ctx context.Context, coin string, limit int) (*anomaly.Summary, error) {
	return s.detector.Summarize(ctx, coin, limit)
}

// AnomalyTrends groups the coin's persisted events by day.
func (s *MarketService) AnomalyTrends(ctx context.Context, coin string, days int) (*anomaly.Trends, error) {
	return s.detector.TrendsFor(ctx, coin, days)
}

// ETLLogs returns recent run log entries.
func (s *MarketService) ETLLogs(ctx context.Context, coin string, limit int) ([]storagemodels.ETLLog, error) {
	return s.store.ETLLogs(ctx, coin, limit)
}

// Stats returns store statistics.
func (s *MarketService) Stats(ctx context.Context) (*storage.Stats, error) {
	return s.store.Stats(ctx)
}

// Refresh re-triggers ingestion for one coin, debounced against recent
// successful runs.
func (s *MarketService) Refresh(ctx context.Context, coin string) (int64, error) {
	recent, err := s.store.RecentRun(ctx, coin, s.cooldown)
	if err != nil {
		return 0, err
	}
	if recent {
		return 0, ErrRefreshTooSoon
	}
	return s.runner.RunCoin(ctx, coin)
}

// Analyze runs the requested LLM mode against the coin's current data
// summary. LLM failures come back as user-visible text.
func (s *MarketService) Analyze(ctx context.Context, coin, mode, question string, limit int) (string, error) {
	candles, err := s.store.LatestCandles(ctx, coin, limit)
	if err != nil {
		return "", err
	}
	if len(candles) == 0 {
		return "", fmt.Errorf("no data available for %s", coin)
	}

	result := metrics.All(candles, s.opts)
	summary := metrics.Summarize(coin, candles, result)

	switch mode {
	case "summary":
		return s.llmc.GenerateMarketSummary(ctx, summary), nil
	case "patterns":
		return s.llmc.DetectPatterns(ctx, summary), nil
	default:
		return s.llmc.AnalyzeMarketData(ctx, summary, question), nil
	}
}
