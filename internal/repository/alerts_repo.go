package repository

import (
	"context"
	"time"

	"agrisense-iot/internal/domain"
)

// AlertFilters 报警查询过滤条件
type AlertFilters struct {
	DeviceID  *string
	Resolved  *bool
	Severity  *domain.AlertSeverity
	AlertType *domain.AlertType
	StartTime *time.Time // created_at >= StartTime
	EndTime   *time.Time // created_at <= EndTime
}

// AlertsRepository 报警Repository接口
type AlertsRepository interface {
	// 创建报警（初始状态 open / resolved=false）
	CreateAlert(ctx context.Context, alert *domain.Alert) error

	// 获取单条报警，不存在返回 domain.ErrNotFound
	GetAlert(ctx context.Context, alertID string) (*domain.Alert, error)

	// 查询报警列表（分页，返回 items 和总数）
	ListAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*domain.Alert, int, error)

	// 解决报警：仅当 resolved=false 时生效（compare-and-set）
	// 已解决返回 domain.ErrConflict，不存在返回 domain.ErrNotFound
	ResolveAlert(ctx context.Context, alertID, actorID string, notes *string, at time.Time) error

	// 获取抑制窗口内同设备同类型的未解决报警（用于去重），无则返回 domain.ErrNotFound
	GetRecentOpenAlert(ctx context.Context, deviceID string, alertType domain.AlertType, within time.Duration) (*domain.Alert, error)

	// 管理性清除（不属于正常生命周期）
	DeleteAlert(ctx context.Context, alertID string) error
}
