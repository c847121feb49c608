package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agrisense-iot/internal/domain"

	"go.uber.org/zap"
)

// LatestCache 设备最新读数缓存（写入时更新，Summary 查询优先命中缓存）
type LatestCache struct {
	kv     KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewLatestCache 创建最新读数缓存
func NewLatestCache(kv KVStore, ttl time.Duration, logger *zap.Logger) *LatestCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LatestCache{kv: kv, ttl: ttl, logger: logger}
}

func latestKey(deviceID string, metric domain.MetricType) string {
	return fmt.Sprintf("telemetry:latest:%s:%s", deviceID, metric)
}

// WriteLatest 更新设备某指标的最新读数
func (c *LatestCache) WriteLatest(ctx context.Context, reading *domain.Reading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := latestKey(reading.DeviceID, reading.Metric)
	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set latest cache: %w", err)
	}

	c.logger.Debug("Updated latest reading cache",
		zap.String("device_id", reading.DeviceID),
		zap.String("metric", string(reading.Metric)),
	)
	return nil
}

// ReadLatest 读取设备某指标的最新读数，未命中返回 ErrCacheMiss
func (c *LatestCache) ReadLatest(ctx context.Context, deviceID string, metric domain.MetricType) (*domain.Reading, error) {
	val, err := c.kv.Get(ctx, latestKey(deviceID, metric))
	if err != nil {
		return nil, err
	}

	var reading domain.Reading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached reading: %w", err)
	}
	return &reading, nil
}
