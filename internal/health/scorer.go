package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/registry"
	"agrisense-iot/internal/repository"
)

// 扣分项（各维度独立评估）
const (
	deductBatteryCritical = 30
	deductBatteryLow      = 15
	deductSilenceLong     = 25
	deductSilenceShort    = 10
	deductMaintenanceDue  = 15
	deductAnomaliesMany   = 20
	deductAnomaliesSome   = 10
)

// Scorer 设备健康评分器（纯读取：不修改任何设备/读数/报警状态）
type Scorer struct {
	devices  registry.DeviceRegistry
	maint    registry.MaintenanceLog
	readings repository.ReadingsRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewScorer 创建健康评分器
func NewScorer(devices registry.DeviceRegistry, maint registry.MaintenanceLog, readings repository.ReadingsRepository, logger *zap.Logger) *Scorer {
	return &Scorer{
		devices:  devices,
		maint:    maint,
		readings: readings,
		logger:   logger,
		now:      time.Now,
	}
}

// Score 计算设备健康分
// 从 100 起步逐项扣分；单个维度失败只跳过该维度并标记 degraded，不让整个评分失败
// 设备在 Registry 中不存在时 fail fast 返回 domain.ErrNotFound
func (s *Scorer) Score(ctx context.Context, deviceID string) (*domain.HealthReport, error) {
	if deviceID == "" {
		return nil, domain.NewValidationError("device_id", "required")
	}

	report := &domain.HealthReport{
		DeviceID:    deviceID,
		Score:       100,
		Issues:      []domain.HealthIssue{},
		LastChecked: s.now().UTC(),
	}

	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Registry 不可用：跳过电池和维护维度，仍给出部分结果
		s.logger.Warn("Device registry unavailable, scoring degraded",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		report.Degraded = true
	}

	if device != nil {
		s.applyBattery(report, device)
		s.applyMaintenance(ctx, report, device)
	}
	s.applySilence(ctx, report, deviceID)
	s.applyAnomalies(ctx, report, deviceID)

	if report.Score < 0 {
		report.Score = 0
	}
	report.Status = domain.HealthStatusFor(report.Score)
	return report, nil
}

func (s *Scorer) applyBattery(report *domain.HealthReport, device *domain.Device) {
	switch {
	case device.BatteryLevel < 20:
		report.Score -= deductBatteryCritical
		report.Issues = append(report.Issues, domain.HealthIssue{
			Type:     "battery",
			Severity: domain.IssueHigh,
			Message:  fmt.Sprintf("battery critically low: %.0f%%", device.BatteryLevel),
		})
	case device.BatteryLevel <= 50:
		report.Score -= deductBatteryLow
		report.Issues = append(report.Issues, domain.HealthIssue{
			Type:     "battery",
			Severity: domain.IssueMedium,
			Message:  fmt.Sprintf("battery low: %.0f%%", device.BatteryLevel),
		})
	}
}

func (s *Scorer) applyMaintenance(ctx context.Context, report *domain.HealthReport, device *domain.Device) {
	next := device.NextMaintenance
	if next == nil {
		// Registry 上没有排期时再查 Maintenance Log
		records, err := s.maint.ListMaintenance(ctx, device.DeviceID)
		if err != nil {
			s.logger.Warn("Maintenance log unavailable, skipping dimension",
				zap.String("device_id", device.DeviceID),
				zap.Error(err),
			)
			report.Degraded = true
			return
		}
		for _, rec := range records {
			if rec.Status != domain.MaintenanceScheduled || rec.ScheduledDate == nil {
				continue
			}
			if next == nil || rec.ScheduledDate.Before(*next) {
				next = rec.ScheduledDate
			}
		}
	}

	if next != nil && next.Before(s.now()) {
		report.Score -= deductMaintenanceDue
		report.Issues = append(report.Issues, domain.HealthIssue{
			Type:     "maintenance",
			Severity: domain.IssueMedium,
			Message:  fmt.Sprintf("maintenance overdue since %s", next.Format(time.RFC3339)),
		})
	}
}

func (s *Scorer) applySilence(ctx context.Context, report *domain.HealthReport, deviceID string) {
	last, err := s.readings.GetLastReadingTime(ctx, deviceID)
	if err != nil {
		s.logger.Warn("Silence check failed, skipping dimension",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		report.Degraded = true
		return
	}

	var silence time.Duration
	if last == nil {
		// 从未上报也按长静默处理
		silence = 25 * time.Hour
	} else {
		silence = s.now().Sub(*last)
	}

	switch {
	case silence > 24*time.Hour:
		report.Score -= deductSilenceLong
		report.Issues = append(report.Issues, domain.HealthIssue{
			Type:     "connectivity",
			Severity: domain.IssueHigh,
			Message:  "no readings received in over 24 hours",
		})
	case silence > 12*time.Hour:
		report.Score -= deductSilenceShort
		report.Issues = append(report.Issues, domain.HealthIssue{
			Type:     "connectivity",
			Severity: domain.IssueMedium,
			Message:  "no readings received in over 12 hours",
		})
	}
}

func (s *Scorer) applyAnomalies(ctx context.Context, report *domain.HealthReport, deviceID string) {
	since := s.now().AddDate(0, 0, -7)
	count, err := s.readings.CountAnomalies(ctx, deviceID, since)
	if err != nil {
		s.logger.Warn("Anomaly count failed, skipping dimension",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		report.Degraded = true
		return
	}

	switch {
	case count > 10:
		report.Score -= deductAnomaliesMany
		report.Issues = append(report.Issues, domain.HealthIssue{
			Type:     "anomalies",
			Severity: domain.IssueHigh,
			Message:  fmt.Sprintf("%d anomalous readings in the last 7 days", count),
		})
	case count >= 5:
		report.Score -= deductAnomaliesSome
		report.Issues = append(report.Issues, domain.HealthIssue{
			Type:     "anomalies",
			Severity: domain.IssueMedium,
			Message:  fmt.Sprintf("%d anomalous readings in the last 7 days", count),
		})
	}
}
