package evaluator

import (
	"fmt"
	"time"

	"agrisense-iot/internal/domain"
)

// evalMaintenance 维护到期触发
// Registry 的 next_maintenance 优先；缺失时回退到维护日志中最早的未完成排期
func (e *Engine) evalMaintenance(device *domain.Device, records []*domain.MaintenanceRecord) *domain.Alert {
	due := device.NextMaintenance
	if due == nil {
		for _, rec := range records {
			if rec.Status != domain.MaintenanceScheduled || rec.ScheduledDate == nil {
				continue
			}
			if due == nil || rec.ScheduledDate.Before(*due) {
				due = rec.ScheduledDate
			}
		}
	}
	if due == nil || !due.Before(e.now()) {
		return nil
	}

	message := fmt.Sprintf("maintenance was due %s", due.Format(time.RFC3339))
	return NewAlertBuilder(device.DeviceID).BuildAlert(domain.AlertMaintenanceRequired, domain.SeverityWarning, message)
}
