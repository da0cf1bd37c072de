// Package resample aggregates tick-level price+volume series into
// fixed-width OHLCV candles.
package resample

import (
	"math"
	"time"

	"github.com/hyperflow/hyperflow/internal/models"
)

// FromTicks aggregates ticks into candles of the given width for coin.
//
// Buckets are right-closed and right-labeled: a candle's timestamp is
// its closing instant, and a tick landing exactly on a boundary belongs
// to the bucket that closes there. Buckets without ticks are dropped,
// not interpolated. Each tick contributes its price as open, high, low
// and close before aggregation, so a close-only series produces
// synthetic OHLC (a documented approximation, not a true intrabar
// range).
//
// Aggregation rules per bucket: open=first, high=max, low=min,
// close=last, volume=sum (NaN volumes excluded; a bucket with no
// finite volume sums to 0).
func FromTicks(ticks []models.Tick, coin string, width time.Duration) []models.Candle {
	if len(ticks) == 0 || width <= 0 {
		return nil
	}

	var out []models.Candle
	var cur *models.Candle
	for _, t := range ticks {
		label := bucketEnd(t.Timestamp, width)
		if cur == nil || !cur.Timestamp.Equal(label) {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &models.Candle{
				Coin:      coin,
				Timestamp: label,
				Open:      t.Price,
				High:      t.Price,
				Low:       t.Price,
				Close:     t.Price,
				Volume:    0,
			}
		} else {
			cur.High = math.Max(cur.High, t.Price)
			cur.Low = math.Min(cur.Low, t.Price)
			cur.Close = t.Price
		}
		if !math.IsNaN(t.Volume) {
			cur.Volume += t.Volume
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// bucketEnd returns the closing instant of the bucket containing t.
func bucketEnd(t time.Time, width time.Duration) time.Time {
	truncated := t.Truncate(width)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(width)
}
