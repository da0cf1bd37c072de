// Package storage provides the SQLite persistence layer for candles,
// ETL run logs and anomaly events.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	domain "github.com/hyperflow/hyperflow/internal/models"
	"github.com/hyperflow/hyperflow/internal/storage/models"
)

// Stats describes the store contents.
type Stats struct {
	CandleCount  int64      `json:"candle_count"`
	ETLLogCount  int64      `json:"etl_log_count"`
	AnomalyCount int64      `json:"anomaly_count"`
	UniqueCoins  int64      `json:"unique_coins"`
	Earliest     *time.Time `json:"earliest,omitempty"`
	Latest       *time.Time `json:"latest,omitempty"`
}

// Store defines the persistence interface for candles, ETL logs and
// anomaly events. Multi-row writes are transactional: they commit fully
// or roll back fully.
type Store interface {
	// UpsertCandles inserts candles, replacing rows that share a
	// (coin, timestamp) key. NaN volume is coerced to 0.
	UpsertCandles(ctx context.Context, candles []domain.Candle) (int64, error)

	// LatestCandles returns up to limit most recent candles for coin,
	// ascending by timestamp.
	LatestCandles(ctx context.Context, coin string, limit int) ([]domain.Candle, error)

	// CandlesByRange returns the coin's candles within [from, to],
	// ascending by timestamp.
	CandlesByRange(ctx context.Context, coin string, from, to time.Time) ([]domain.Candle, error)

	// EarliestTimestamp returns the oldest stored candle time for coin.
	EarliestTimestamp(ctx context.Context, coin string) (time.Time, bool, error)

	// ReplaceCandles deletes the coin's full candle history and inserts
	// the given candles in one transaction.
	ReplaceCandles(ctx context.Context, coin string, candles []domain.Candle) (deleted, inserted int64, err error)

	// Coins returns the distinct coins with stored candles.
	Coins(ctx context.Context) ([]string, error)

	// InsertETLLog appends one run log entry.
	InsertETLLog(ctx context.Context, coin, status, message string, recordsProcessed int) error

	// ETLLogs returns recent run log entries, newest first. An empty
	// coin matches all coins.
	ETLLogs(ctx context.Context, coin string, limit int) ([]models.ETLLog, error)

	// RecentRun reports whether a successful run for coin finished
	// within the given duration.
	RecentRun(ctx context.Context, coin string, within time.Duration) (bool, error)

	// UpsertAnomalies records flagged events, ignoring rows that share
	// a (coin, timestamp, anomaly_type) key with an existing event.
	UpsertAnomalies(ctx context.Context, events []models.Anomaly) (int64, error)

	// Anomalies returns recent events, newest first. An empty coin
	// matches all coins.
	Anomalies(ctx context.Context, coin string, limit int) ([]models.Anomaly, error)

	// AnomaliesSince returns the coin's events at or after since,
	// newest first.
	AnomaliesSince(ctx context.Context, coin string, since time.Time) ([]models.Anomaly, error)

	// PurgeCoin removes every candle, log entry and anomaly for coin.
	PurgeCoin(ctx context.Context, coin string) error

	// Stats returns table counts and the stored time range.
	Stats(ctx context.Context) (*Stats, error)

	// DB exposes the underlying connection for migration tooling.
	DB() (*sql.DB, error)

	// Close releases the database connection.
	Close() error
}

// insertBatchSize keeps multi-row inserts under SQLite's bind-variable
// limit; full-history rebuilds can run to tens of thousands of rows.
const insertBatchSize = 500

// sqliteStore implements Store on gorm with the SQLite driver.
type sqliteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and creates if needed) the SQLite database at
// path and ensures the schema exists.
func NewSQLiteStore(path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Candle{}, &models.ETLLog{}, &models.Anomaly{}); err != nil {
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) UpsertCandles(ctx context.Context, candles []domain.Candle) (int64, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	rows := make([]models.Candle, len(candles))
	for i, c := range candles {
		rows[i] = toRow(c)
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "coin"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"open", "high", "low", "close", "volume",
			}),
		}).CreateInBatches(&rows, insertBatchSize)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (s *sqliteStore) LatestCandles(ctx context.Context, coin string, limit int) ([]domain.Candle, error) {
	var rows []models.Candle
	err := s.db.WithContext(ctx).
		Where("coin = ?", coin).
		Order("timestamp desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// Reverse into ascending order for the metrics engine.
	out := make([]domain.Candle, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = fromRow(r)
	}
	return out, nil
}

func (s *sqliteStore) CandlesByRange(ctx context.Context, coin string, from, to time.Time) ([]domain.Candle, error) {
	var rows []models.Candle
	err := s.db.WithContext(ctx).
		Where("coin = ? AND timestamp BETWEEN ? AND ?", coin, from, to).
		Order("timestamp asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candle, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r)
	}
	return out, nil
}

func (s *sqliteStore) EarliestTimestamp(ctx context.Context, coin string) (time.Time, bool, error) {
	var row models.Candle
	err := s.db.WithContext(ctx).
		Where("coin = ?", coin).
		Order("timestamp asc").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return row.Timestamp, true, nil
}

func (s *sqliteStore) ReplaceCandles(ctx context.Context, coin string, candles []domain.Candle) (int64, int64, error) {
	rows := make([]models.Candle, len(candles))
	for i, c := range candles {
		rows[i] = toRow(c)
	}

	var deleted, inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("coin = ?", coin).Delete(&models.Candle{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected

		if len(rows) == 0 {
			return nil
		}
		res = tx.CreateInBatches(&rows, insertBatchSize)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, inserted, nil
}

func (s *sqliteStore) Coins(ctx context.Context) ([]string, error) {
	var coins []string
	err := s.db.WithContext(ctx).
		Model(&models.Candle{}).
		Distinct("coin").
		Order("coin asc").
		Pluck("coin", &coins).Error
	return coins, err
}

func (s *sqliteStore) InsertETLLog(ctx context.Context, coin, status, message string, recordsProcessed int) error {
	entry := models.ETLLog{
		Coin:             coin,
		Status:           status,
		Message:          message,
		RecordsProcessed: recordsProcessed,
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}

func (s *sqliteStore) ETLLogs(ctx context.Context, coin string, limit int) ([]models.ETLLog, error) {
	query := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit)
	if coin != "" {
		query = query.Where("coin = ?", coin)
	}

	var logs []models.ETLLog
	err := query.Find(&logs).Error
	return logs, err
}

func (s *sqliteStore) RecentRun(ctx context.Context, coin string, within time.Duration) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ETLLog{}).
		Where("coin = ? AND status = ? AND timestamp >= ?",
			coin, models.StatusSuccess, time.Now().UTC().Add(-within)).
		Count(&count).Error
	return count > 0, err
}

func (s *sqliteStore) UpsertAnomalies(ctx context.Context, events []models.Anomaly) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "coin"}, {Name: "timestamp"}, {Name: "anomaly_type"}},
			DoNothing: true,
		}).CreateInBatches(&events, insertBatchSize)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (s *sqliteStore) Anomalies(ctx context.Context, coin string, limit int) ([]models.Anomaly, error) {
	query := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit)
	if coin != "" {
		query = query.Where("coin = ?", coin)
	}

	var events []models.Anomaly
	err := query.Find(&events).Error
	return events, err
}

func (s *sqliteStore) AnomaliesSince(ctx context.Context, coin string, since time.Time) ([]models.Anomaly, error) {
	var events []models.Anomaly
	err := s.db.WithContext(ctx).
		Where("coin = ? AND timestamp >= ?", coin, since).
		Order("timestamp desc").
		Find(&events).Error
	return events, err
}

func (s *sqliteStore) PurgeCoin(ctx context.Context, coin string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("coin = ?", coin).Delete(&models.Candle{}).Error; err != nil {
			return err
		}
		if err := tx.Where("coin = ?", coin).Delete(&models.ETLLog{}).Error; err != nil {
			return err
		}
		return tx.Where("coin = ?", coin).Delete(&models.Anomaly{}).Error
	})
}

func (s *sqliteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Candle{}).Count(&stats.CandleCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ETLLog{}).Count(&stats.ETLLogCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Anomaly{}).Count(&stats.AnomalyCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Candle{}).Distinct("coin").Count(&stats.UniqueCoins).Error; err != nil {
		return nil, err
	}

	if stats.CandleCount > 0 {
		// Typed first/last row queries; SQLite aggregates over datetime
		// columns come back as strings and don't scan into time.Time.
		var first, last models.Candle
		if err := db.Order("timestamp asc").First(&first).Error; err != nil {
			return nil, err
		}
		if err := db.Order("timestamp desc").First(&last).Error; err != nil {
			return nil, err
		}
		earliest := first.Timestamp.UTC()
		latest := last.Timestamp.UTC()
		stats.Earliest = &earliest
		stats.Latest = &latest
	}
	return stats, nil
}

func (s *sqliteStore) DB() (*sql.DB, error) {
	return s.db.DB()
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// toRow converts a domain candle for persistence; NaN volume becomes 0.
func toRow(c domain.Candle) models.Candle {
	volume := c.Volume
	if math.IsNaN(volume) {
		volume = 0
	}
	return models.Candle{
		Coin:      c.Coin,
		Timestamp: c.Timestamp.UTC(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    volume,
	}
}

func fromRow(r models.Candle) domain.Candle {
	return domain.Candle{
		Coin:      r.Coin,
		Timestamp: r.Timestamp.UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}
