package repository

import (
	"context"
	"time"

	"agrisense-iot/internal/domain"
)

// ReadingFilters 读数查询过滤条件
type ReadingFilters struct {
	Metric        domain.MetricType // 为空表示不过滤
	StartTime     *time.Time        // timestamp >= StartTime
	EndTime       *time.Time        // timestamp <= EndTime
	AnomaliesOnly bool
}

// ReadingsRepository 读数Repository接口
type ReadingsRepository interface {
	// 写入读数（读数不可变，只有 INSERT）
	InsertReading(ctx context.Context, reading *domain.Reading) error

	// 获取同设备同指标最近 limit 条读数（按时间倒序，供异常检测使用）
	GetRecentReadings(ctx context.Context, deviceID string, metric domain.MetricType, limit int) ([]*domain.Reading, error)

	// 区间查询（按时间正序，limit 为资源保护上限）
	GetReadingsByRange(ctx context.Context, deviceID string, filters ReadingFilters, limit int) ([]*domain.Reading, error)

	// 获取设备最新一条读数（可按指标过滤）
	GetLatestReading(ctx context.Context, deviceID string, metric domain.MetricType) (*domain.Reading, error)

	// 获取设备最后一次上报时间（跨指标）
	GetLastReadingTime(ctx context.Context, deviceID string) (*time.Time, error)

	// 统计 since 之后的异常读数数量（供健康评分使用）
	CountAnomalies(ctx context.Context, deviceID string, since time.Time) (int, error)

	// 清理 cutoff 之前的过期读数，返回删除条数
	PurgeReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
