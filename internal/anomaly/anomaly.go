// Package anomaly flags statistical outliers in candle series using
// whole-series z-scores and persists them as durable audit events.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/hyperflow/hyperflow/configs"
	"github.com/hyperflow/hyperflow/internal/metrics"
	domain "github.com/hyperflow/hyperflow/internal/models"
	"github.com/hyperflow/hyperflow/internal/storage/models"
)

// EventStore is the persistence surface detection writes to and the
// summary queries read from.
type EventStore interface {
	UpsertAnomalies(ctx context.Context, events []models.Anomaly) (int64, error)
	Anomalies(ctx context.Context, coin string, limit int) ([]models.Anomaly, error)
	AnomaliesSince(ctx context.Context, coin string, since time.Time) ([]models.Anomaly, error)
}

// Detector evaluates candle series against configured z-score
// thresholds. Detection is stateless per call; persisting flagged rows
// is a side effect of detection, not merely a query.
type Detector struct {
	store  EventStore
	cfg    configs.AnomalyConfig
	logger *logrus.Entry
}

// NewDetector creates a detector with the configured thresholds.
func NewDetector(store EventStore, cfg configs.AnomalyConfig, logger *logrus.Logger) *Detector {
	return &Detector{
		store:  store,
		cfg:    cfg,
		logger: logger.WithField("component", "anomaly"),
	}
}

// Flags carries the per-row detection outcome, aligned 1:1 with the
// input candles.
type Flags struct {
	VolumeZScore     []float64
	PriceZScore      []float64
	VolatilityZScore []float64

	VolumeAnomaly     []bool
	PriceAnomaly      []bool
	VolatilityAnomaly []bool

	// Any is the logical OR of the three per-row flags.
	Any []bool

	// Recorded counts events newly persisted by this call.
	Recorded int64
}

// DetectVolume flags rows whose volume z-score exceeds the volume
// threshold and persists one event per flagged row.
func (d *Detector) DetectVolume(ctx context.Context, coin string, candles []domain.Candle) ([]float64, []bool, int64, error) {
	volumes := domain.Volumes(candles)
	zscores := d.zscores(coin, "volume", volumes)
	flags, events := d.flag(coin, candles, zscores, models.AnomalyTypeVolume, d.cfg.VolumeThreshold, volumes)

	recorded, err := d.record(ctx, coin, models.AnomalyTypeVolume, events)
	return zscores, flags, recorded, err
}

// DetectPrice flags rows whose return z-score exceeds the price
// threshold and persists one event per flagged row. The recorded value
// is the close price at the flagged instant.
func (d *Detector) DetectPrice(ctx context.Context, coin string, candles []domain.Candle) ([]float64, []bool, int64, error) {
	closes := domain.Closes(candles)
	returns, _, _ := metrics.Returns(closes)
	zscores := d.zscores(coin, "returns", returns)
	flags, events := d.flag(coin, candles, zscores, models.AnomalyTypePrice, d.cfg.PriceThreshold, closes)

	recorded, err := d.record(ctx, coin, models.AnomalyTypePrice, events)
	return zscores, flags, recorded, err
}

// DetectVolatility flags rows whose rolling-volatility z-score exceeds
// the price threshold and persists one event per flagged row.
func (d *Detector) DetectVolatility(ctx context.Context, coin string, candles []domain.Candle) ([]float64, []bool, int64, error) {
	returns, _, _ := metrics.Returns(domain.Closes(candles))
	volatility, _ := metrics.Volatility(returns, d.cfg.VolatilityWindow)
	zscores := d.zscores(coin, "volatility", volatility)
	flags, events := d.flag(coin, candles, zscores, models.AnomalyTypeVolatility, d.cfg.PriceThreshold, volatility)

	recorded, err := d.record(ctx, coin, models.AnomalyTypeVolatility, events)
	return zscores, flags, recorded, err
}

// DetectAll runs every detection method and combines the per-row flags.
func (d *Detector) DetectAll(ctx context.Context, coin string, candles []domain.Candle) (*Flags, error) {
	f := &Flags{}
	var err error
	var recorded int64

	f.VolumeZScore, f.VolumeAnomaly, recorded, err = d.DetectVolume(ctx, coin, candles)
	if err != nil {
		return nil, fmt.Errorf("volume anomalies: %w", err)
	}
	f.Recorded += recorded

	f.PriceZScore, f.PriceAnomaly, recorded, err = d.DetectPrice(ctx, coin, candles)
	if err != nil {
		return nil, fmt.Errorf("price anomalies: %w", err)
	}
	f.Recorded += recorded

	f.VolatilityZScore, f.VolatilityAnomaly, recorded, err = d.DetectVolatility(ctx, coin, candles)
	if err != nil {
		return nil, fmt.Errorf("volatility anomalies: %w", err)
	}
	f.Recorded += recorded

	f.Any = make([]bool, len(candles))
	for i := range f.Any {
		f.Any[i] = f.VolumeAnomaly[i] || f.PriceAnomaly[i] || f.VolatilityAnomaly[i]
	}

	d.logger.WithFields(logrus.Fields{"coin": coin, "recorded": f.Recorded}).
		Info("anomaly detection finished")
	return f, nil
}

// zscores computes whole-series z-scores of x against its own mean and
// sample standard deviation, skipping non-finite values. A zero
// standard deviation defines every z-score as 0 so nothing is flagged;
// the condition is logged.
func (d *Detector) zscores(coin, series string, x []float64) []float64 {
	finite := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	out := make([]float64, len(x))
	if len(finite) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	mean := stat.Mean(finite, nil)
	std := math.Sqrt(stat.Variance(finite, nil))
	if std == 0 || math.IsNaN(std) {
		d.logger.WithFields(logrus.Fields{"coin": coin, "series": series}).
			Warn("standard deviation is 0; z-scores defined as 0")
		return out
	}

	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (v - mean) / std
	}
	return out
}

// flag builds per-row flags and the events to persist for one anomaly
// type; values holds the observed metric recorded with each event.
func (d *Detector) flag(coin string, candles []domain.Candle, zscores []float64, anomalyType string, threshold float64, values []float64) ([]bool, []models.Anomaly) {
	flags := make([]bool, len(candles))
	events := make([]models.Anomaly, 0)
	for i, c := range candles {
		if math.Abs(zscores[i]) > threshold {
			flags[i] = true
			events = append(events, models.Anomaly{
				Coin:        coin,
				Timestamp:   c.Timestamp,
				AnomalyType: anomalyType,
				Value:       values[i],
				ZScore:      zscores[i],
				Threshold:   threshold,
			})
		}
	}
	return flags, events
}

func (d *Detector) record(ctx context.Context, coin, anomalyType string, events []models.Anomaly) (int64, error) {
	recorded, err := d.store.UpsertAnomalies(ctx, events)
	if err != nil {
		return 0, err
	}
	d.logger.WithFields(logrus.Fields{
		"coin": coin, "type": anomalyType, "flagged": len(events), "recorded": recorded,
	}).Debug("anomalies recorded")
	return recorded, nil
}
