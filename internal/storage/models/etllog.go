package models

import "time"

// ETL run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ETLLog is one audit entry per ingestion or standardization run per
// coin. Rows are append-only.
type ETLLog struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	// Coin is the upstream coin identifier.
	Coin string `json:"coin" gorm:"not null;index:idx_etl_logs_coin_timestamp"`

	// Status is success or error.
	Status string `json:"status" gorm:"not null"`

	// Message describes the run outcome.
	Message string `json:"message"`

	// RecordsProcessed counts the rows the run produced.
	RecordsProcessed int `json:"records_processed" gorm:"default:0"`

	// Timestamp is when the run finished.
	Timestamp time.Time `json:"timestamp" gorm:"autoCreateTime;index:idx_etl_logs_coin_timestamp"`
}

// TableName keeps the table name used by the migrations.
func (ETLLog) TableName() string { return "etl_logs" }
