package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/repository"
)

// Authorizer 操作授权（由外部协作方实现；本服务只做守卫）
type Authorizer interface {
	// CanResolve 判断操作人是否有权处理该设备的报警
	CanResolve(ctx context.Context, actorID, deviceID string) (bool, error)
}

// AllowAllAuthorizer 放行所有操作（联测/单机部署用）
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) CanResolve(context.Context, string, string) (bool, error) {
	return true, nil
}

// ListAlertsRequest 报警列表查询请求
type ListAlertsRequest struct {
	DeviceID  *string
	Resolved  *bool
	Severity  *string
	AlertType *string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int // 默认 1
	Limit     int // 默认 20，最大 100
}

// Pagination 分页信息
type Pagination struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Count int `json:"count"`
	Total int `json:"total"`
}

// ListAlertsResponse 报警列表响应
type ListAlertsResponse struct {
	Alerts     []*domain.Alert `json:"alerts"`
	Pagination Pagination      `json:"pagination"`
}

// AlertService 报警服务接口
type AlertService interface {
	ListAlerts(ctx context.Context, req ListAlertsRequest) (*ListAlertsResponse, error)

	// ResolveAlert 解决报警；重复解决返回 domain.ErrConflict，无权限返回 domain.ErrForbidden
	ResolveAlert(ctx context.Context, alertID, actorID string, notes *string) (*domain.Alert, error)

	// PurgeAlert 管理性清除（不属于正常生命周期）
	PurgeAlert(ctx context.Context, alertID string) error
}

// alertService 实现
type alertService struct {
	alerts     repository.AlertsRepository
	authorizer Authorizer
	logger     *zap.Logger
}

// NewAlertService 创建报警服务
func NewAlertService(alerts repository.AlertsRepository, authorizer Authorizer, logger *zap.Logger) AlertService {
	if authorizer == nil {
		authorizer = AllowAllAuthorizer{}
	}
	return &alertService{alerts: alerts, authorizer: authorizer, logger: logger}
}

// ListAlerts 查询报警列表
func (s *alertService) ListAlerts(ctx context.Context, req ListAlertsRequest) (*ListAlertsResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	filters := repository.AlertFilters{
		DeviceID:  req.DeviceID,
		Resolved:  req.Resolved,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if req.Severity != nil {
		sev := domain.AlertSeverity(*req.Severity)
		filters.Severity = &sev
	}
	if req.AlertType != nil {
		at := domain.AlertType(*req.AlertType)
		filters.AlertType = &at
	}

	items, total, err := s.alerts.ListAlerts(ctx, filters, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	if items == nil {
		items = []*domain.Alert{}
	}

	return &ListAlertsResponse{
		Alerts: items,
		Pagination: Pagination{
			Page:  page,
			Size:  limit,
			Count: len(items),
			Total: total,
		},
	}, nil
}

// ResolveAlert 解决报警
func (s *alertService) ResolveAlert(ctx context.Context, alertID, actorID string, notes *string) (*domain.Alert, error) {
	if alertID == "" {
		return nil, domain.NewValidationError("alert_id", "required")
	}
	if actorID == "" {
		return nil, domain.NewValidationError("actor_id", "required")
	}

	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.authorizer.CanResolve(ctx, actorID, alert.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("authorization check failed: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("actor %s cannot resolve alerts for device %s: %w", actorID, alert.DeviceID, domain.ErrForbidden)
	}

	if err := s.alerts.ResolveAlert(ctx, alertID, actorID, notes, time.Now().UTC()); err != nil {
		return nil, err
	}

	s.logger.Info("Alert resolved",
		zap.String("alert_id", alertID),
		zap.String("actor_id", actorID),
	)
	return s.alerts.GetAlert(ctx, alertID)
}

// PurgeAlert 管理性清除
func (s *alertService) PurgeAlert(ctx context.Context, alertID string) error {
	if alertID == "" {
		return domain.NewValidationError("alert_id", "required")
	}
	if err := s.alerts.DeleteAlert(ctx, alertID); err != nil {
		return err
	}
	s.logger.Info("Alert purged", zap.String("alert_id", alertID))
	return nil
}
