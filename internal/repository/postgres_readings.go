package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"agrisense-iot/internal/domain"
)

// PostgresReadingsRepository 读数Repository实现
type PostgresReadingsRepository struct {
	db *sql.DB
}

// NewPostgresReadingsRepository 创建读数Repository
func NewPostgresReadingsRepository(db *sql.DB) *PostgresReadingsRepository {
	return &PostgresReadingsRepository{db: db}
}

// 确保实现了接口
var _ ReadingsRepository = (*PostgresReadingsRepository)(nil)

const readingColumns = `
	reading_id, device_id, metric, value, unit, timestamp,
	latitude, longitude, quality, is_anomaly, anomaly_score, created_at
`

// InsertReading 写入读数
func (r *PostgresReadingsRepository) InsertReading(ctx context.Context, reading *domain.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}

	var lat, lon *float64
	if reading.Location != nil {
		lat = &reading.Location.Latitude
		lon = &reading.Location.Longitude
	}

	query := `
		INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		reading.ReadingID,
		reading.DeviceID,
		string(reading.Metric),
		reading.Value,
		reading.Unit,
		reading.Timestamp,
		lat,
		lon,
		string(reading.Quality),
		reading.IsAnomaly,
		reading.AnomalyScore,
		reading.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// GetRecentReadings 获取同设备同指标最近 limit 条读数（按时间倒序）
func (r *PostgresReadingsRepository) GetRecentReadings(ctx context.Context, deviceID string, metric domain.MetricType, limit int) ([]*domain.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE device_id = $1 AND metric = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, string(metric), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// buildWhereClause 构建 WHERE 子句
func (r *PostgresReadingsRepository) buildWhereClause(deviceID string, filters ReadingFilters, args *[]interface{}, argN *int) string {
	var where []string

	if deviceID != "" {
		where = append(where, fmt.Sprintf("device_id = $%d", *argN))
		*args = append(*args, deviceID)
		*argN++
	}
	if filters.Metric != "" {
		where = append(where, fmt.Sprintf("metric = $%d", *argN))
		*args = append(*args, string(filters.Metric))
		*argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("timestamp >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("timestamp <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}
	if filters.AnomaliesOnly {
		where = append(where, "is_anomaly = true")
	}

	return strings.Join(where, " AND ")
}

// GetReadingsByRange 区间查询（按时间正序）
func (r *PostgresReadingsRepository) GetReadingsByRange(ctx context.Context, deviceID string, filters ReadingFilters, limit int) ([]*domain.Reading, error) {
	if limit <= 0 {
		limit = 10000
	}

	args := []interface{}{}
	argN := 1
	whereClause := r.buildWhereClause(deviceID, filters, &args, &argN)
	if whereClause == "" {
		return nil, fmt.Errorf("device_id or filters are required")
	}

	args = append(args, limit)
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE ` + whereClause + `
		ORDER BY timestamp ASC
		LIMIT $` + fmt.Sprintf("%d", argN)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings by range: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetLatestReading 获取设备最新一条读数
func (r *PostgresReadingsRepository) GetLatestReading(ctx context.Context, deviceID string, metric domain.MetricType) (*domain.Reading, error) {
	args := []interface{}{deviceID}
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE device_id = $1
	`
	if metric != "" {
		query += ` AND metric = $2`
		args = append(args, string(metric))
	}
	query += ` ORDER BY timestamp DESC LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, args...)
	reading, err := scanReading(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("latest reading for device %s: %w", deviceID, domain.ErrNotFound)
		}
		return nil, err
	}
	return reading, nil
}

// GetLastReadingTime 获取设备最后一次上报时间
func (r *PostgresReadingsRepository) GetLastReadingTime(ctx context.Context, deviceID string) (*time.Time, error) {
	query := `SELECT MAX(timestamp) FROM readings WHERE device_id = $1`

	var last sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to query last reading time: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// CountAnomalies 统计 since 之后的异常读数数量
func (r *PostgresReadingsRepository) CountAnomalies(ctx context.Context, deviceID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM readings
		WHERE device_id = $1 AND is_anomaly = true AND timestamp >= $2
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, deviceID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count anomalies: %w", err)
	}
	return count, nil
}

// PurgeReadingsBefore 清理过期读数
func (r *PostgresReadingsRepository) PurgeReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM readings WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge readings: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// scanner 兼容 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(s scanner) (*domain.Reading, error) {
	var reading domain.Reading
	var metric, quality string
	var lat, lon sql.NullFloat64

	if err := s.Scan(
		&reading.ReadingID,
		&reading.DeviceID,
		&metric,
		&reading.Value,
		&reading.Unit,
		&reading.Timestamp,
		&lat,
		&lon,
		&quality,
		&reading.IsAnomaly,
		&reading.AnomalyScore,
		&reading.CreatedAt,
	); err != nil {
		return nil, err
	}

	reading.Metric = domain.MetricType(metric)
	reading.Quality = domain.ReadingQuality(quality)
	if lat.Valid && lon.Valid {
		reading.Location = &domain.Location{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return &reading, nil
}

func (r *PostgresReadingsRepository) scanRows(rows *sql.Rows) ([]*domain.Reading, error) {
	var results []*domain.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		results = append(results, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return results, nil
}
