package metrics

import (
	"encoding/json"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hyperflow/hyperflow/internal/models"
)

// Float is a float64 that marshals NaN and infinities as JSON null,
// so summaries with undefined metrics stay serializable.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// ColumnStats summarizes one series: min/max/mean/std over the finite
// values plus the latest observation.
type ColumnStats struct {
	Min     Float `json:"min"`
	Max     Float `json:"max"`
	Mean    Float `json:"mean"`
	Std     Float `json:"std"`
	Current Float `json:"current"`
}

// Summary aggregates the statistics shown on the dashboard metrics tab
// and fed into the LLM data summary.
type Summary struct {
	Coin         string      `json:"coin"`
	Records      int         `json:"records"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Price        ColumnStats `json:"price"`
	Volume       ColumnStats `json:"volume"`
	Returns      ColumnStats `json:"returns"`
	Volatility   ColumnStats `json:"volatility"`
	LastRSI      Float       `json:"last_rsi"`
	LastSMA7     Float       `json:"last_sma_7"`
	LastSMA30    Float       `json:"last_sma_30"`
	AnomalyCount int         `json:"anomaly_count,omitempty"`
}

// Summarize computes summary statistics for a coin's candles and their
// derived metrics.
func Summarize(coin string, candles []models.Candle, r *Result) *Summary {
	s := &Summary{Coin: coin, Records: len(candles)}
	if len(candles) == 0 {
		return s
	}
	s.Start = candles[0].Timestamp
	s.End = candles[len(candles)-1].Timestamp

	s.Price = columnStats(models.Closes(candles))
	s.Volume = columnStats(models.Volumes(candles))
	s.Returns = columnStats(r.Returns)
	s.Volatility = columnStats(r.Volatility)
	s.LastRSI = Float(last(r.RSI))
	s.LastSMA7 = Float(last(r.SMA[7]))
	s.LastSMA30 = Float(last(r.SMA[30]))
	return s
}

// columnStats summarizes the finite values of x; an all-NaN series
// yields NaN statistics.
func columnStats(x []float64) ColumnStats {
	finite := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	cs := ColumnStats{
		Min:     Float(math.NaN()),
		Max:     Float(math.NaN()),
		Mean:    Float(math.NaN()),
		Std:     Float(math.NaN()),
		Current: Float(last(x)),
	}
	if len(finite) == 0 {
		return cs
	}

	lo, hi := finite[0], finite[0]
	for _, v := range finite[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	cs.Min, cs.Max = Float(lo), Float(hi)
	cs.Mean = Float(stat.Mean(finite, nil))
	cs.Std = Float(math.Sqrt(stat.Variance(finite, nil)))
	return cs
}

func last(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return x[len(x)-1]
}
