// Package normalize converts raw upstream payloads into canonical
// candle and tick sequences.
//
// Two input shapes exist: OHLC rows (length 5 or 6 arrays) and parallel
// price/volume tick series. Both come out sorted ascending by timestamp
// with prices coerced to finite floats; missing volume stays NaN until
// persistence coerces it to zero.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hyperflow/hyperflow/internal/models"
)

// ErrMalformedPayload marks an upstream payload whose shape is not
// recognized. Callers skip the coin for the run and continue; a valid
// empty payload is not malformed and yields zero rows with a nil error.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// RawCandle is one OHLC row as delivered by the upstream API, decoded
// at the boundary from a length-5 [ts_ms, o, h, l, c] or length-6
// [ts_ms, o, h, l, c, v] array. HasVolume distinguishes the two.
type RawCandle struct {
	TimestampMS int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	HasVolume   bool
}

// UnmarshalJSON decodes the array form. Any other row length is a
// malformed payload. A null element decodes to NaN so the row gets
// dropped by the finite-price filter instead of surviving as a zero.
func (r *RawCandle) UnmarshalJSON(b []byte) error {
	var row []*float64
	if err := json.Unmarshal(b, &row); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	switch len(row) {
	case 5:
		r.Volume = math.NaN()
		r.HasVolume = false
	case 6:
		r.Volume = deref(row[5])
		r.HasVolume = true
	default:
		return fmt.Errorf("%w: unexpected OHLCV row length %d", ErrMalformedPayload, len(row))
	}
	if row[0] == nil {
		return fmt.Errorf("%w: null OHLCV timestamp", ErrMalformedPayload)
	}
	r.TimestampMS = int64(*row[0])
	r.Open = deref(row[1])
	r.High = deref(row[2])
	r.Low = deref(row[3])
	r.Close = deref(row[4])
	return nil
}

// Point is one [ts_ms, value] pair from a price or volume history series.
type Point struct {
	TimestampMS int64
	Value       float64
}

// UnmarshalJSON decodes the [ts_ms, value] array form. A null value
// decodes to NaN and gets dropped downstream.
func (p *Point) UnmarshalJSON(b []byte) error {
	var pair []*float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: unexpected point length %d", ErrMalformedPayload, len(pair))
	}
	if pair[0] == nil {
		return fmt.Errorf("%w: null point timestamp", ErrMalformedPayload)
	}
	p.TimestampMS = int64(*pair[0])
	p.Value = deref(pair[1])
	return nil
}

// deref unwraps an optional JSON number; null becomes NaN.
func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Candles converts raw OHLC rows into canonical candles for coin.
// Rows with non-finite price fields are dropped; the result is sorted
// ascending by timestamp. Running it twice over the same payload yields
// an identical result.
func Candles(raw []RawCandle, coin string) []models.Candle {
	out := make([]models.Candle, 0, len(raw))
	for _, r := range raw {
		if !finite(r.Open) || !finite(r.High) || !finite(r.Low) || !finite(r.Close) {
			continue
		}
		out = append(out, models.Candle{
			Coin:      coin,
			Timestamp: time.UnixMilli(r.TimestampMS).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Ticks joins a price series with a volume series on exact timestamp
// match. Volume is NaN where no volume point shares the timestamp;
// points with a non-finite price are dropped. The result is sorted
// ascending by timestamp.
func Ticks(prices, volumes []Point) []models.Tick {
	volumeAt := make(map[int64]float64, len(volumes))
	for _, v := range volumes {
		volumeAt[v.TimestampMS] = v.Value
	}

	out := make([]models.Tick, 0, len(prices))
	for _, p := range prices {
		if !finite(p.Value) {
			continue
		}
		volume := math.NaN()
		if v, ok := volumeAt[p.TimestampMS]; ok {
			volume = v
		}
		out = append(out, models.Tick{
			Timestamp: time.UnixMilli(p.TimestampMS).UTC(),
			Price:     p.Value,
			Volume:    volume,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// DedupeTicks drops ticks sharing a timestamp with an earlier tick.
// Input must already be sorted ascending.
func DedupeTicks(ticks []models.Tick) []models.Tick {
	out := ticks[:0]
	var last time.Time
	for i, t := range ticks {
		if i > 0 && t.Timestamp.Equal(last) {
			continue
		}
		out = append(out, t)
		last = t.Timestamp
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
