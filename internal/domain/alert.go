package domain

import "time"

// AlertType 报警类型
type AlertType string

const (
	AlertLowBattery          AlertType = "low_battery"
	AlertOffline             AlertType = "offline"
	AlertThresholdExceeded   AlertType = "threshold_exceeded"
	AlertThresholdBelow      AlertType = "threshold_below"
	AlertMaintenanceRequired AlertType = "maintenance_required"
	AlertTamperDetected      AlertType = "tamper_detected"
	AlertConnectivityIssue   AlertType = "connectivity_issue"
	AlertSystemError         AlertType = "system_error"
	AlertOtherType           AlertType = "other"
)

// AlertSeverity 报警级别
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert 报警记录（对应 alerts 表）
// 状态机：open → resolved，resolved 为终态，resolution 三字段要么全空要么全部设置
type Alert struct {
	AlertID         string        `db:"alert_id"` // UUID, PRIMARY KEY
	DeviceID        string        `db:"device_id"`
	AlertType       AlertType     `db:"alert_type"`
	Severity        AlertSeverity `db:"severity"`
	Message         string        `db:"message"`
	Resolved        bool          `db:"resolved"` // DEFAULT false
	ResolvedBy      *string       `db:"resolved_by"`
	ResolutionNotes *string       `db:"resolution_notes"`
	ResolvedAt      *time.Time    `db:"resolved_at"`
	CreatedAt       time.Time     `db:"created_at"`
}
