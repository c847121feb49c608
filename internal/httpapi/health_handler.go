package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/service"
)

// HealthHandler 设备健康 HTTP 处理器
type HealthHandler struct {
	health service.HealthService
	logger *zap.Logger
}

// NewHealthHandler 创建设备健康处理器
func NewHealthHandler(health service.HealthService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{health: health, logger: logger}
}

// GetDeviceHealth GET /iot/api/v1/devices/{id}/health
func (h *HealthHandler) GetDeviceHealth(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/iot/api/v1/devices/")
	deviceID := strings.TrimSuffix(path, "/health")
	if deviceID == "" || deviceID == path {
		writeError(w, domain.NewValidationError("path", "expected /devices/{id}/health"))
		return
	}

	report, err := h.health.GetDeviceHealth(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
