package domain

import "time"

// MaintenanceStatus 维护记录状态
type MaintenanceStatus string

const (
	MaintenanceScheduled  MaintenanceStatus = "scheduled"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

// MaintenanceRecord 维护记录快照（来自 Maintenance Log，本服务只读）
type MaintenanceRecord struct {
	DeviceID        string            `json:"device_id"`
	MaintenanceType string            `json:"maintenance_type"`
	ScheduledDate   *time.Time        `json:"scheduled_date,omitempty"`
	CompletedDate   *time.Time        `json:"completed_date,omitempty"`
	Status          MaintenanceStatus `json:"status"`
	NextDate        *time.Time        `json:"next_date,omitempty"`
}
