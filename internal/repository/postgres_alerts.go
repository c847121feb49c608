package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"agrisense-iot/internal/domain"
)

// PostgresAlertsRepository 报警Repository实现
type PostgresAlertsRepository struct {
	db *sql.DB
}

// NewPostgresAlertsRepository 创建报警Repository
func NewPostgresAlertsRepository(db *sql.DB) *PostgresAlertsRepository {
	return &PostgresAlertsRepository{db: db}
}

var _ AlertsRepository = (*PostgresAlertsRepository)(nil)

const alertColumns = `
	alert_id, device_id, alert_type, severity, message,
	resolved, resolved_by, resolution_notes, resolved_at, created_at
`

// CreateAlert 创建报警
func (r *PostgresAlertsRepository) CreateAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.DeviceID,
		string(alert.AlertType),
		string(alert.Severity),
		alert.Message,
		alert.Resolved,
		alert.ResolvedBy,
		alert.ResolutionNotes,
		alert.ResolvedAt,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert 获取单条报警
func (r *PostgresAlertsRepository) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE alert_id = $1`
	row := r.db.QueryRowContext(ctx, query, alertID)

	alert, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	return alert, nil
}

// buildWhereClause 构建 WHERE 子句
func (r *PostgresAlertsRepository) buildWhereClause(filters AlertFilters, args *[]interface{}, argN *int) string {
	var where []string

	if filters.DeviceID != nil {
		where = append(where, fmt.Sprintf("device_id = $%d", *argN))
		*args = append(*args, *filters.DeviceID)
		*argN++
	}
	if filters.Resolved != nil {
		where = append(where, fmt.Sprintf("resolved = $%d", *argN))
		*args = append(*args, *filters.Resolved)
		*argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", *argN))
		*args = append(*args, string(*filters.Severity))
		*argN++
	}
	if filters.AlertType != nil {
		where = append(where, fmt.Sprintf("alert_type = $%d", *argN))
		*args = append(*args, string(*filters.AlertType))
		*argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	if len(where) == 0 {
		return "TRUE"
	}
	return strings.Join(where, " AND ")
}

// ListAlerts 查询报警列表（分页）
func (r *PostgresAlertsRepository) ListAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*domain.Alert, int, error) {
	args := []interface{}{}
	argN := 1
	whereClause := r.buildWhereClause(filters, &args, &argN)

	queryCount := `SELECT COUNT(*) FROM alerts WHERE ` + whereClause
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	args = append(args, size, offset)
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE ` + whereClause +
		` ORDER BY created_at DESC` +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", argN, argN+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var results []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		results = append(results, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return results, total, nil
}

// ResolveAlert 解决报警（仅当 resolved=false 时生效）
// 用条件 UPDATE 做 compare-and-set：并发重复 resolve 只有一个成功
func (r *PostgresAlertsRepository) ResolveAlert(ctx context.Context, alertID, actorID string, notes *string, at time.Time) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if actorID == "" {
		return fmt.Errorf("actor_id is required")
	}

	query := `
		UPDATE alerts
		SET resolved = true, resolved_by = $1, resolution_notes = $2, resolved_at = $3
		WHERE alert_id = $4 AND resolved = false
	`
	result, err := r.db.ExecContext(ctx, query, actorID, notes, at, alertID)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// 区分不存在和已解决
		if _, err := r.GetAlert(ctx, alertID); err != nil {
			return err
		}
		return fmt.Errorf("alert %s already resolved: %w", alertID, domain.ErrConflict)
	}
	return nil
}

// GetRecentOpenAlert 获取抑制窗口内同设备同类型的未解决报警
func (r *PostgresAlertsRepository) GetRecentOpenAlert(ctx context.Context, deviceID string, alertType domain.AlertType, within time.Duration) (*domain.Alert, error) {
	since := time.Now().UTC().Add(-within)
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE device_id = $1 AND alert_type = $2 AND resolved = false AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, deviceID, string(alertType), since)

	alert, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recent open alert for device %s: %w", deviceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	return alert, nil
}

// DeleteAlert 管理性清除报警
func (r *PostgresAlertsRepository) DeleteAlert(ctx context.Context, alertID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE alert_id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	return nil
}

func scanAlert(s scanner) (*domain.Alert, error) {
	var alert domain.Alert
	var alertType, severity string
	var resolvedBy, resolutionNotes sql.NullString
	var resolvedAt sql.NullTime

	if err := s.Scan(
		&alert.AlertID,
		&alert.DeviceID,
		&alertType,
		&severity,
		&alert.Message,
		&alert.Resolved,
		&resolvedBy,
		&resolutionNotes,
		&resolvedAt,
		&alert.CreatedAt,
	); err != nil {
		return nil, err
	}

	alert.AlertType = domain.AlertType(alertType)
	alert.Severity = domain.AlertSeverity(severity)
	if resolvedBy.Valid {
		alert.ResolvedBy = &resolvedBy.String
	}
	if resolutionNotes.Valid {
		alert.ResolutionNotes = &resolutionNotes.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	return &alert, nil
}
