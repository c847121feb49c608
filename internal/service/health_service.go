package service

import (
	"context"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/health"
)

// HealthService 设备健康服务接口
type HealthService interface {
	GetDeviceHealth(ctx context.Context, deviceID string) (*domain.HealthReport, error)
}

// healthService 实现（纯读取，可任意并发调用）
type healthService struct {
	scorer *health.Scorer
}

// NewHealthService 创建健康服务
func NewHealthService(scorer *health.Scorer) HealthService {
	return &healthService{scorer: scorer}
}

func (s *healthService) GetDeviceHealth(ctx context.Context, deviceID string) (*domain.HealthReport, error) {
	return s.scorer.Score(ctx, deviceID)
}
