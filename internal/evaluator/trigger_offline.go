package evaluator

import (
	"fmt"

	"agrisense-iot/internal/domain"
)

// evalOffline 通信静默触发
// 静默超过 OfflineAfter → offline/critical；超过 DegradedAfter → connectivity_issue/warning
func (e *Engine) evalOffline(device *domain.Device) *domain.Alert {
	if device.LastCommunication == nil {
		return nil
	}

	silence := e.now().Sub(*device.LastCommunication)
	hours := int(silence.Hours())

	switch {
	case silence > e.config.OfflineAfter:
		message := fmt.Sprintf("no communication for %d hours", hours)
		return NewAlertBuilder(device.DeviceID).BuildAlert(domain.AlertOffline, domain.SeverityCritical, message)
	case silence > e.config.DegradedAfter:
		message := fmt.Sprintf("communication degraded, last contact %d hours ago", hours)
		return NewAlertBuilder(device.DeviceID).BuildAlert(domain.AlertConnectivityIssue, domain.SeverityWarning, message)
	default:
		return nil
	}
}
