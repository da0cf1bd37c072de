package metrics

import "math"

// nans returns a slice of length n filled with NaN.
func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean computes the trailing-window mean. The first window-1
// elements are NaN, as is any element whose window contains a NaN.
func rollingMean(x []float64, window int) []float64 {
	out := nans(len(x))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(x); i++ {
		sum, ok := windowSum(x[i-window+1 : i+1])
		if !ok {
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// rollingStd computes the trailing-window sample standard deviation
// (n-1 denominator). NaN handling matches rollingMean.
func rollingStd(x []float64, window int) []float64 {
	out := nans(len(x))
	if window <= 1 {
		return out
	}
	for i := window - 1; i < len(x); i++ {
		w := x[i-window+1 : i+1]
		sum, ok := windowSum(w)
		if !ok {
			continue
		}
		mean := sum / float64(window)
		var ss float64
		for _, v := range w {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

func windowSum(w []float64) (float64, bool) {
	var sum float64
	for _, v := range w {
		if math.IsNaN(v) {
			return 0, false
		}
		sum += v
	}
	return sum, true
}

// ewm computes the exponentially weighted mean with the given span,
// using adjusted weighting: alpha = 2/(span+1) and
// y[t] = sum((1-alpha)^i * x[t-i]) / sum((1-alpha)^i).
// NaN inputs keep the running weights decaying and emit the previous mean.
func ewm(x []float64, span int) []float64 {
	out := nans(len(x))
	if span <= 0 || len(x) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1.0 - alpha

	var num, den float64
	started := false
	for i, v := range x {
		num *= decay
		den *= decay
		if !math.IsNaN(v) {
			num += v
			den++
			started = true
		}
		if started && den != 0 {
			out[i] = num / den
		}
	}
	return out
}

// diff computes x[i] - x[i-1]; the first element is NaN.
func diff(x []float64) []float64 {
	out := nans(len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

// cumsumSkipNaN computes the running sum, leaving NaN at NaN positions
// while continuing the accumulation afterward.
func cumsumSkipNaN(x []float64) []float64 {
	out := nans(len(x))
	var sum float64
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		out[i] = sum
	}
	return out
}
