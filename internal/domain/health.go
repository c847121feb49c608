package domain

import "time"

// HealthStatus 设备健康状态档位
type HealthStatus string

const (
	HealthPoor      HealthStatus = "poor"
	HealthFair      HealthStatus = "fair"
	HealthGood      HealthStatus = "good"
	HealthExcellent HealthStatus = "excellent"
)

// HealthStatusFor 按分数划分健康档位
func HealthStatusFor(score int) HealthStatus {
	switch {
	case score < 50:
		return HealthPoor
	case score < 70:
		return HealthFair
	case score < 90:
		return HealthGood
	default:
		return HealthExcellent
	}
}

// IssueSeverity 健康问题级别
type IssueSeverity string

const (
	IssueLow    IssueSeverity = "low"
	IssueMedium IssueSeverity = "medium"
	IssueHigh   IssueSeverity = "high"
)

// HealthIssue 健康评分扣分项
type HealthIssue struct {
	Type     string        `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// HealthReport 设备健康报告（纯读取计算，不持久化）
type HealthReport struct {
	DeviceID    string        `json:"device_id"`
	Score       int           `json:"score"` // [0,100]
	Status      HealthStatus  `json:"status"`
	Issues      []HealthIssue `json:"issues"`
	Degraded    bool          `json:"degraded"` // 外部依赖不可用时为 true（结果为部分结果）
	LastChecked time.Time     `json:"last_checked"`
}
