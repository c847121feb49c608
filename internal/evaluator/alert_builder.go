package evaluator

import (
	"time"

	"github.com/google/uuid"

	"agrisense-iot/internal/domain"
)

// AlertBuilder 报警构建器
// 标识和时间戳在构造时显式生成，不依赖持久化层回调
type AlertBuilder struct {
	deviceID string
}

// NewAlertBuilder 创建报警构建器
func NewAlertBuilder(deviceID string) *AlertBuilder {
	return &AlertBuilder{deviceID: deviceID}
}

// BuildAlert 构建报警（初始状态 open）
func (b *AlertBuilder) BuildAlert(alertType domain.AlertType, severity domain.AlertSeverity, message string) *domain.Alert {
	return &domain.Alert{
		AlertID:   uuid.New().String(),
		DeviceID:  b.deviceID,
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		Resolved:  false,
		CreatedAt: time.Now().UTC(),
	}
}
