// Package models defines the domain types shared by the pipeline stages.
package models

import "time"

// Candle is one fixed-interval OHLCV record for a coin.
// Uniqueness is on (Coin, Timestamp); Volume is NaN when the source
// endpoint omits it and is coerced to 0.0 at persistence.
type Candle struct {
	Coin      string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Tick is one raw price observation with an optional volume,
// the input unit of the resampler. Volume is NaN when unknown.
type Tick struct {
	Timestamp time.Time
	Price     float64
	Volume    float64
}

// Closes extracts the close column from a candle sequence.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume column from a candle sequence.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
