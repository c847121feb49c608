package evaluator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"agrisense-iot/internal/anomaly"
	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/repository"
)

// Config 报警引擎阈值配置
type Config struct {
	OfflineAfter       time.Duration // 超过该时长无通信 → offline
	DegradedAfter      time.Duration // 超过该时长无通信 → connectivity_issue
	BatteryCritical    float64
	BatteryWarning     float64
	SuppressionWindow  time.Duration // 同设备同类型未解决报警抑制窗口
	AnomalyScoreSevere float64
}

// Engine 报警引擎：评估触发条件并创建报警，状态机为 open → resolved
type Engine struct {
	alerts repository.AlertsRepository
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine 创建报警引擎
func NewEngine(alerts repository.AlertsRepository, cfg Config, logger *zap.Logger) *Engine {
	if cfg.OfflineAfter <= 0 {
		cfg.OfflineAfter = 24 * time.Hour
	}
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = 12 * time.Hour
	}
	if cfg.BatteryCritical <= 0 {
		cfg.BatteryCritical = 20
	}
	if cfg.BatteryWarning <= 0 {
		cfg.BatteryWarning = 50
	}
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = 60 * time.Minute
	}
	if cfg.AnomalyScoreSevere <= 0 {
		cfg.AnomalyScoreSevere = 0.8
	}
	return &Engine{alerts: alerts, config: cfg, logger: logger, now: time.Now}
}

// EvaluateReading 评估单条读数（异常触发）
// 返回实际创建的报警；引擎内部错误只记日志，不向采集链路传播
func (e *Engine) EvaluateReading(ctx context.Context, device *domain.Device, reading *domain.Reading, result anomaly.Result) []*domain.Alert {
	var created []*domain.Alert
	if alert := e.evalAnomaly(device, reading, result); alert != nil {
		if e.createUnlessSuppressed(ctx, alert) {
			created = append(created, alert)
		}
	}
	return created
}

// EvaluateDevice 评估设备级触发条件（电量、离线、维护到期）
// 各触发条件独立评估，同一设备可能同时产生多条不同类型的报警
func (e *Engine) EvaluateDevice(ctx context.Context, device *domain.Device, maintenance []*domain.MaintenanceRecord) []*domain.Alert {
	if device == nil {
		return nil
	}

	var created []*domain.Alert
	for _, alert := range []*domain.Alert{
		e.evalBattery(device),
		e.evalOffline(device),
		e.evalMaintenance(device, maintenance),
	} {
		if alert == nil {
			continue
		}
		if e.createUnlessSuppressed(ctx, alert) {
			created = append(created, alert)
		}
	}
	return created
}

// createUnlessSuppressed 创建报警，抑制窗口内已有同设备同类型未解决报警时跳过
func (e *Engine) createUnlessSuppressed(ctx context.Context, alert *domain.Alert) bool {
	existing, err := e.alerts.GetRecentOpenAlert(ctx, alert.DeviceID, alert.AlertType, e.config.SuppressionWindow)
	if err == nil && existing != nil {
		e.logger.Debug("Alert suppressed by open duplicate",
			zap.String("device_id", alert.DeviceID),
			zap.String("alert_type", string(alert.AlertType)),
			zap.String("existing_alert_id", existing.AlertID),
		)
		return false
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.logger.Warn("Duplicate check failed, creating alert anyway",
			zap.String("device_id", alert.DeviceID),
			zap.Error(err),
		)
	}

	if err := e.alerts.CreateAlert(ctx, alert); err != nil {
		e.logger.Error("Failed to create alert",
			zap.String("device_id", alert.DeviceID),
			zap.String("alert_type", string(alert.AlertType)),
			zap.Error(err),
		)
		return false
	}

	e.logger.Info("Alert created",
		zap.String("alert_id", alert.AlertID),
		zap.String("device_id", alert.DeviceID),
		zap.String("alert_type", string(alert.AlertType)),
		zap.String("severity", string(alert.Severity)),
	)
	return true
}
