package evaluator

import (
	"fmt"

	"agrisense-iot/internal/domain"
)

// evalBattery 低电量触发
// 低水位（<20%）→ critical，中水位（<50%）→ warning；充电中不触发
func (e *Engine) evalBattery(device *domain.Device) *domain.Alert {
	if device.BatteryCharging {
		return nil
	}

	var severity domain.AlertSeverity
	switch {
	case device.BatteryLevel < e.config.BatteryCritical:
		severity = domain.SeverityCritical
	case device.BatteryLevel < e.config.BatteryWarning:
		severity = domain.SeverityWarning
	default:
		return nil
	}

	message := fmt.Sprintf("battery level at %.0f%%", device.BatteryLevel)
	return NewAlertBuilder(device.DeviceID).BuildAlert(domain.AlertLowBattery, severity, message)
}
