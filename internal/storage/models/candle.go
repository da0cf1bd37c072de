package models

import "time"

// Candle represents a single OHLCV row in the ohlcv table.
// Rows are unique per (Coin, Timestamp); ingestion upserts on that key.
type Candle struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	// Coin is the upstream coin identifier (e.g., "bitcoin").
	Coin string `json:"coin" gorm:"not null;uniqueIndex:idx_ohlcv_coin_timestamp"`

	// Timestamp is the candle close instant in UTC.
	Timestamp time.Time `json:"timestamp" gorm:"not null;uniqueIndex:idx_ohlcv_coin_timestamp"`

	// Open is the opening price of the candle.
	Open float64 `json:"open" gorm:"not null"`

	// High is the highest price during the candle period.
	High float64 `json:"high" gorm:"not null"`

	// Low is the lowest price during the candle period.
	Low float64 `json:"low" gorm:"not null"`

	// Close is the closing price of the candle.
	Close float64 `json:"close" gorm:"not null"`

	// Volume is the trading volume during the candle period.
	// Sources without volume data store 0.
	Volume float64 `json:"volume" gorm:"not null"`

	// CreatedAt is when the row was first written.
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table name used by the migrations.
func (Candle) TableName() string { return "ohlcv" }
