package evaluator

import (
	"fmt"

	"agrisense-iot/internal/anomaly"
	"agrisense-iot/internal/domain"
)

// evalAnomaly 异常读数触发
// 按偏离方向区分 threshold_exceeded / threshold_below；分值达到 severe 阈值升级为 critical
func (e *Engine) evalAnomaly(device *domain.Device, reading *domain.Reading, result anomaly.Result) *domain.Alert {
	if !result.IsAnomaly {
		return nil
	}

	alertType := domain.AlertThresholdBelow
	direction := "below"
	if result.Above {
		alertType = domain.AlertThresholdExceeded
		direction = "above"
	}

	severity := domain.SeverityWarning
	if result.Score >= e.config.AnomalyScoreSevere {
		severity = domain.SeverityCritical
	}

	message := fmt.Sprintf("anomalous %s reading %.2f%s (%s recent history, score %.2f)",
		reading.Metric, reading.Value, reading.Unit, direction, result.Score)

	return NewAlertBuilder(device.DeviceID).BuildAlert(alertType, severity, message)
}
