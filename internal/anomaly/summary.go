package anomaly

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hyperflow/hyperflow/internal/storage/models"
)

// Summary aggregates persisted anomaly events. It reads back only what
// detection has written; nothing is recomputed.
type Summary struct {
	Total  int              `json:"total_anomalies"`
	ByType map[string]int   `json:"by_type"`
	ByCoin map[string]int   `json:"by_coin"`
	Recent []models.Anomaly `json:"recent_anomalies"`
}

// Trends describes anomaly frequency over a trailing number of days.
// AverageZScore is the mean absolute z-score of the window's events.
type Trends struct {
	Total          int            `json:"total_anomalies"`
	DailyCounts    map[string]int `json:"daily_anomaly_counts"`
	MostCommonType string         `json:"most_common_type,omitempty"`
	AverageZScore  float64        `json:"average_zscore"`
}

const recentEventLimit = 10

// Summarize aggregates recent persisted events by type and coin.
// An empty coin matches all coins.
func (d *Detector) Summarize(ctx context.Context, coin string, limit int) (*Summary, error) {
	events, err := d.store.Anomalies(ctx, coin, limit)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Total:  len(events),
		ByType: make(map[string]int),
		ByCoin: make(map[string]int),
		Recent: []models.Anomaly{},
	}
	for _, e := range events {
		s.ByType[e.AnomalyType]++
		s.ByCoin[e.Coin]++
	}
	if len(events) > recentEventLimit {
		s.Recent = events[:recentEventLimit]
	} else {
		s.Recent = events
	}
	return s, nil
}

// TrendsFor groups the coin's persisted events of the trailing days by
// calendar day.
func (d *Detector) TrendsFor(ctx context.Context, coin string, days int) (*Trends, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	events, err := d.store.AnomaliesSince(ctx, coin, since)
	if err != nil {
		return nil, err
	}

	t := &Trends{
		Total:       len(events),
		DailyCounts: make(map[string]int),
	}
	if len(events) == 0 {
		return t, nil
	}

	typeCounts := make(map[string]int)
	zscores := make([]float64, 0, len(events))
	for _, e := range events {
		t.DailyCounts[e.Timestamp.UTC().Format("2006-01-02")]++
		typeCounts[e.AnomalyType]++
		zscores = append(zscores, math.Abs(e.ZScore))
	}

	best := 0
	for typ, count := range typeCounts {
		if count > best {
			best = count
			t.MostCommonType = typ
		}
	}
	t.AverageZScore = stat.Mean(zscores, nil)
	return t, nil
}
