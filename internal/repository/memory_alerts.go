package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agrisense-iot/internal/domain"
)

// MemoryAlertsRepo: 用于 DB 未就绪时的联测和单元测试
// resolve 的 compare-and-set 语义与 Postgres 实现保持一致
type MemoryAlertsRepo struct {
	mu     sync.Mutex
	alerts map[string]*domain.Alert
}

func NewMemoryAlertsRepo() *MemoryAlertsRepo {
	return &MemoryAlertsRepo{alerts: map[string]*domain.Alert{}}
}

var _ AlertsRepository = (*MemoryAlertsRepo)(nil)

func (r *MemoryAlertsRepo) CreateAlert(_ context.Context, alert *domain.Alert) error {
	if alert == nil || alert.AlertID == "" {
		return fmt.Errorf("alert with alert_id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *alert
	r.alerts[alert.AlertID] = &clone
	return nil
}

func (r *MemoryAlertsRepo) GetAlert(_ context.Context, alertID string) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	clone := *alert
	return &clone, nil
}

func (r *MemoryAlertsRepo) ListAlerts(_ context.Context, filters AlertFilters, page, size int) ([]*domain.Alert, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.Alert
	for _, a := range r.alerts {
		if filters.DeviceID != nil && a.DeviceID != *filters.DeviceID {
			continue
		}
		if filters.Resolved != nil && a.Resolved != *filters.Resolved {
			continue
		}
		if filters.Severity != nil && a.Severity != *filters.Severity {
			continue
		}
		if filters.AlertType != nil && a.AlertType != *filters.AlertType {
			continue
		}
		if filters.StartTime != nil && a.CreatedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && a.CreatedAt.After(*filters.EndTime) {
			continue
		}
		clone := *a
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []*domain.Alert{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryAlertsRepo) ResolveAlert(_ context.Context, alertID, actorID string, notes *string, at time.Time) error {
	if actorID == "" {
		return fmt.Errorf("actor_id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[alertID]
	if !ok {
		return fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	if alert.Resolved {
		return fmt.Errorf("alert %s already resolved: %w", alertID, domain.ErrConflict)
	}

	alert.Resolved = true
	alert.ResolvedBy = &actorID
	alert.ResolutionNotes = notes
	resolvedAt := at
	alert.ResolvedAt = &resolvedAt
	return nil
}

func (r *MemoryAlertsRepo) GetRecentOpenAlert(_ context.Context, deviceID string, alertType domain.AlertType, within time.Duration) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Now().UTC().Add(-within)
	var recent *domain.Alert
	for _, a := range r.alerts {
		if a.DeviceID != deviceID || a.AlertType != alertType || a.Resolved {
			continue
		}
		if a.CreatedAt.Before(since) {
			continue
		}
		if recent == nil || a.CreatedAt.After(recent.CreatedAt) {
			recent = a
		}
	}
	if recent == nil {
		return nil, fmt.Errorf("recent open alert for device %s: %w", deviceID, domain.ErrNotFound)
	}
	clone := *recent
	return &clone, nil
}

func (r *MemoryAlertsRepo) DeleteAlert(_ context.Context, alertID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[alertID]; !ok {
		return fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	delete(r.alerts, alertID)
	return nil
}
