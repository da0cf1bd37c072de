// Package metrics computes derived statistical series over a per-coin
// candle sequence sorted ascending by time.
//
// All transforms are pure functions of their input: no external state,
// deterministic given the window parameters. Rolling metrics are NaN
// for the first window-1 elements by construction.
package metrics

import (
	"math"

	"github.com/hyperflow/hyperflow/internal/models"
)

// Options holds the window parameters for the composite computation.
type Options struct {
	VolatilityWindow int
	MAWindows        []int
	BollingerWindow  int
	BollingerStd     float64
	RSIWindow        int
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
}

// DefaultOptions returns the standard window parameters.
func DefaultOptions() Options {
	return Options{
		VolatilityWindow: 24,
		MAWindows:        []int{7, 30, 90},
		BollingerWindow:  20,
		BollingerStd:     2.0,
		RSIWindow:        14,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
	}
}

// Result carries every derived column, aligned 1:1 with the input candles.
type Result struct {
	Returns           []float64
	LogReturns        []float64
	CumulativeReturns []float64

	Volatility           []float64
	VolatilityAnnualized []float64

	SMA map[int][]float64
	EMA map[int][]float64

	BBMiddle   []float64
	BBStd      []float64
	BBUpper    []float64
	BBLower    []float64
	BBPosition []float64

	RSI []float64

	MACD          []float64
	MACDSignal    []float64
	MACDHistogram []float64

	VolumeSMA7  []float64
	VolumeSMA30 []float64
	VolumeRatio []float64
	VWAP        []float64
}

// Returns computes simple, log and cumulative returns of the close
// price. The first element of each series is NaN.
func Returns(closes []float64) (simple, logReturns, cumulative []float64) {
	n := len(closes)
	simple = nans(n)
	logReturns = nans(n)
	for i := 1; i < n; i++ {
		simple[i] = closes[i]/closes[i-1] - 1
		logReturns[i] = math.Log(closes[i] / closes[i-1])
	}
	cumulative = cumulativeFromReturns(simple)
	return simple, logReturns, cumulative
}

// cumulativeFromReturns computes (1+r).cumprod()-1, leaving NaN at NaN
// positions while continuing the product afterward.
func cumulativeFromReturns(returns []float64) []float64 {
	out := nans(len(returns))
	prod := 1.0
	for i, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		prod *= 1 + r
		out[i] = prod - 1
	}
	return out
}

// Volatility computes the rolling sample standard deviation of the
// given returns series, plus the annualized form (scaled by sqrt 365).
func Volatility(returns []float64, window int) (raw, annualized []float64) {
	raw = rollingStd(returns, window)
	annualized = make([]float64, len(raw))
	scale := math.Sqrt(365)
	for i, v := range raw {
		annualized[i] = v * scale
	}
	return raw, annualized
}

// SMA computes the simple moving average of x for each window size.
func SMA(x []float64, windows []int) map[int][]float64 {
	out := make(map[int][]float64, len(windows))
	for _, w := range windows {
		out[w] = rollingMean(x, w)
	}
	return out
}

// EMA computes the span-based exponential moving average of x for each
// window size.
func EMA(x []float64, windows []int) map[int][]float64 {
	out := make(map[int][]float64, len(windows))
	for _, w := range windows {
		out[w] = ewm(x, w)
	}
	return out
}

// BollingerBands computes middle/std/upper/lower bands and the band
// position of the close price. Position is +-Inf (or NaN) where the
// band width is zero; that follows from the raw float division.
func BollingerBands(closes []float64, window int, numStd float64) (middle, std, upper, lower, position []float64) {
	middle = rollingMean(closes, window)
	std = rollingStd(closes, window)
	n := len(closes)
	upper = make([]float64, n)
	lower = make([]float64, n)
	position = make([]float64, n)
	for i := 0; i < n; i++ {
		upper[i] = middle[i] + std[i]*numStd
		lower[i] = middle[i] - std[i]*numStd
		position[i] = (closes[i] - lower[i]) / (upper[i] - lower[i])
	}
	return middle, std, upper, lower, position
}

// RSI computes the Relative Strength Index over the window using a
// simple rolling mean of gains and losses. When the average loss is
// zero with positive gains the value clamps to 100; a fully flat
// window has no defined RSI and stays NaN.
func RSI(closes []float64, window int) []float64 {
	n := len(closes)
	change := diff(closes)

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i, d := range change {
		// The undefined first change counts as neither gain nor loss.
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}

	avgGains := rollingMean(gains, window)
	avgLosses := rollingMean(losses, window)

	out := nans(n)
	for i := 0; i < n; i++ {
		ag, al := avgGains[i], avgLosses[i]
		if math.IsNaN(ag) || math.IsNaN(al) {
			continue
		}
		if al == 0 {
			if ag > 0 {
				out[i] = 100
			}
			continue
		}
		rs := ag / al
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD computes the MACD line (fast EMA minus slow EMA), its signal
// line and the histogram.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, histogram []float64) {
	emaFast := ewm(closes, fast)
	emaSlow := ewm(closes, slow)

	n := len(closes)
	macd = make([]float64, n)
	for i := 0; i < n; i++ {
		macd[i] = emaFast[i] - emaSlow[i]
	}

	signalLine = ewm(macd, signal)
	histogram = make([]float64, n)
	for i := 0; i < n; i++ {
		histogram[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, histogram
}

// VolumeMetrics computes the 7/30-period volume SMAs, the volume ratio
// against the 30-period SMA, and the whole-history cumulative VWAP over
// the typical price (high+low+close)/3.
func VolumeMetrics(candles []models.Candle) (sma7, sma30, ratio, vwap []float64) {
	n := len(candles)
	volumes := models.Volumes(candles)

	sma7 = rollingMean(volumes, 7)
	sma30 = rollingMean(volumes, 30)

	ratio = make([]float64, n)
	pv := make([]float64, n)
	for i, c := range candles {
		ratio[i] = volumes[i] / sma30[i]
		typical := (c.High + c.Low + c.Close) / 3
		pv[i] = volumes[i] * typical
	}

	cumPV := cumsumSkipNaN(pv)
	cumVol := cumsumSkipNaN(volumes)
	vwap = make([]float64, n)
	for i := 0; i < n; i++ {
		vwap[i] = cumPV[i] / cumVol[i]
	}
	return sma7, sma30, ratio, vwap
}

// All applies every transform in sequence, sharing the returns column
// across volatility and the return statistics.
func All(candles []models.Candle, opts Options) *Result {
	closes := models.Closes(candles)

	r := &Result{}
	r.Returns, r.LogReturns, r.CumulativeReturns = Returns(closes)
	r.Volatility, r.VolatilityAnnualized = Volatility(r.Returns, opts.VolatilityWindow)
	r.SMA = SMA(closes, opts.MAWindows)
	r.EMA = EMA(closes, opts.MAWindows)
	r.BBMiddle, r.BBStd, r.BBUpper, r.BBLower, r.BBPosition =
		BollingerBands(closes, opts.BollingerWindow, opts.BollingerStd)
	r.RSI = RSI(closes, opts.RSIWindow)
	r.MACD, r.MACDSignal, r.MACDHistogram =
		MACD(closes, opts.MACDFast, opts.MACDSlow, opts.MACDSignal)
	r.VolumeSMA7, r.VolumeSMA30, r.VolumeRatio, r.VWAP = VolumeMetrics(candles)
	return r
}
