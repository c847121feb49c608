package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"agrisense-iot/internal/aggregator"
	"agrisense-iot/internal/anomaly"
	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/evaluator"
	"agrisense-iot/internal/registry"
	"agrisense-iot/internal/repository"
	"agrisense-iot/internal/store"
)

// SubmitReadingRequest 读数提交请求
type SubmitReadingRequest struct {
	DeviceID  string
	Metric    string
	Value     float64
	Unit      string
	Timestamp time.Time // 零值表示使用服务端时间
	Location  *domain.Location
	Quality   domain.ReadingQuality
}

// TelemetryService 遥测服务接口
type TelemetryService interface {
	// 提交读数：校验 → 设备确认 → 异常检测 → 落库 → 报警评估
	SubmitReading(ctx context.Context, req SubmitReadingRequest) (*domain.Reading, error)

	// 区间分桶聚合
	Aggregate(ctx context.Context, deviceID, metric string, start, end time.Time, interval string) ([]aggregator.Bucket, error)

	// 不分桶的指标汇总（当前状态面板）
	Summary(ctx context.Context, deviceID, metric string, start, end time.Time) ([]aggregator.MetricSummary, error)
}

// telemetryService 实现
type telemetryService struct {
	readings   repository.ReadingsRepository
	devices    registry.DeviceRegistry
	maint      registry.MaintenanceLog
	detector   *anomaly.Detector
	engine     *evaluator.Engine
	aggregator *aggregator.Aggregator
	cache      *store.LatestCache // 可为 nil
	logger     *zap.Logger
}

// NewTelemetryService 创建遥测服务
func NewTelemetryService(
	readings repository.ReadingsRepository,
	devices registry.DeviceRegistry,
	maint registry.MaintenanceLog,
	detector *anomaly.Detector,
	engine *evaluator.Engine,
	agg *aggregator.Aggregator,
	cache *store.LatestCache,
	logger *zap.Logger,
) TelemetryService {
	return &telemetryService{
		readings:   readings,
		devices:    devices,
		maint:      maint,
		detector:   detector,
		engine:     engine,
		aggregator: agg,
		cache:      cache,
		logger:     logger,
	}
}

// SubmitReading 提交读数
func (s *telemetryService) SubmitReading(ctx context.Context, req SubmitReadingRequest) (*domain.Reading, error) {
	if req.DeviceID == "" {
		return nil, domain.NewValidationError("device_id", "required")
	}
	metric := domain.MetricType(req.Metric)
	if req.Metric == "" || !metric.Valid() {
		return nil, domain.NewValidationError("metric", fmt.Sprintf("unknown metric type %q", req.Metric))
	}
	if math.IsNaN(req.Value) || math.IsInf(req.Value, 0) {
		return nil, domain.NewValidationError("value", "must be a finite number")
	}
	if req.Unit == "" {
		return nil, domain.NewValidationError("unit", "required")
	}
	if req.Quality != "" && req.Quality != domain.QualityGood && req.Quality != domain.QualityUncertain && req.Quality != domain.QualityBad {
		return nil, domain.NewValidationError("quality", fmt.Sprintf("unknown quality %q", req.Quality))
	}

	// 设备必须在 Registry 中存在（fail fast）
	device, err := s.devices.GetDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	// 评估→写入 临界区按 (device, metric) 串行化，
	// 同设备同指标的并发提交不会读到彼此未写入的窗口
	unlock := s.detector.Lock(req.DeviceID, metric)
	defer unlock()

	result := s.detector.Evaluate(ctx, req.DeviceID, metric, req.Value)

	reading := domain.NewReading(req.DeviceID, metric, req.Value, req.Unit,
		req.Timestamp, req.Location, req.Quality, result.IsAnomaly, result.Score)

	if err := s.readings.InsertReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to persist reading: %w", err)
	}

	// 缓存更新失败不影响采集结果
	if s.cache != nil {
		if err := s.cache.WriteLatest(ctx, reading); err != nil {
			s.logger.Warn("Failed to update latest cache",
				zap.String("device_id", req.DeviceID),
				zap.Error(err),
			)
		}
	}

	// 报警评估：读数级 + 设备级，失败只记日志
	s.engine.EvaluateReading(ctx, device, reading, result)
	s.engine.EvaluateDevice(ctx, device, s.listMaintenance(ctx, req.DeviceID))

	if result.IsAnomaly {
		s.logger.Info("Anomalous reading ingested",
			zap.String("device_id", req.DeviceID),
			zap.String("metric", string(metric)),
			zap.Float64("value", req.Value),
			zap.Float64("anomaly_score", result.Score),
		)
	}
	return reading, nil
}

// listMaintenance 尽力获取维护记录；协作方不可用时返回空（引擎退化为只依赖 Registry 字段）
func (s *telemetryService) listMaintenance(ctx context.Context, deviceID string) []*domain.MaintenanceRecord {
	if s.maint == nil {
		return nil
	}
	records, err := s.maint.ListMaintenance(ctx, deviceID)
	if err != nil {
		s.logger.Warn("Maintenance log unavailable during alert evaluation",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil
	}
	return records
}

// Aggregate 区间分桶聚合
func (s *telemetryService) Aggregate(ctx context.Context, deviceID, metric string, start, end time.Time, interval string) ([]aggregator.Bucket, error) {
	parsed, err := aggregator.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	m := domain.MetricType(metric)
	if metric != "" && !m.Valid() {
		return nil, domain.NewValidationError("metric", fmt.Sprintf("unknown metric type %q", metric))
	}
	return s.aggregator.Aggregate(ctx, deviceID, m, start, end, parsed)
}

// Summary 指标汇总
func (s *telemetryService) Summary(ctx context.Context, deviceID, metric string, start, end time.Time) ([]aggregator.MetricSummary, error) {
	m := domain.MetricType(metric)
	if metric != "" && !m.Valid() {
		return nil, domain.NewValidationError("metric", fmt.Sprintf("unknown metric type %q", metric))
	}
	return s.aggregator.Summary(ctx, deviceID, m, start, end)
}
