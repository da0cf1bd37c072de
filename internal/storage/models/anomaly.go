// Package models defines the persistence row types for the SQLite store.
package models

import "time"

// Anomaly types recorded by detection.
const (
	AnomalyTypeVolume     = "volume"
	AnomalyTypePrice      = "price"
	AnomalyTypeVolatility = "volatility"
)

// Anomaly is one flagged statistical outlier. Rows are append-only
// audit records, unique per (Coin, Timestamp, AnomalyType) so repeated
// detection runs over the same data do not duplicate events.
type Anomaly struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	// Coin is the upstream coin identifier.
	Coin string `json:"coin" gorm:"not null;uniqueIndex:idx_anomalies_natural"`

	// Timestamp is the candle instant the anomaly was observed at.
	Timestamp time.Time `json:"timestamp" gorm:"not null;uniqueIndex:idx_anomalies_natural"`

	// AnomalyType is one of volume, price, volatility.
	AnomalyType string `json:"anomaly_type" gorm:"not null;uniqueIndex:idx_anomalies_natural"`

	// Value is the observed metric value (volume, close or volatility).
	Value float64 `json:"value" gorm:"not null"`

	// ZScore is the value's distance from the series mean in stddevs.
	ZScore float64 `json:"zscore" gorm:"column:zscore;not null"`

	// Threshold is the configured limit the |zscore| exceeded.
	Threshold float64 `json:"threshold" gorm:"not null"`

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table name used by the migrations.
func (Anomaly) TableName() string { return "anomalies" }
