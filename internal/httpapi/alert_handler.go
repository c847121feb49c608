package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/service"
)

// AlertHandler 报警 HTTP 处理器
type AlertHandler struct {
	alerts service.AlertService
	logger *zap.Logger
}

// NewAlertHandler 创建报警处理器
func NewAlertHandler(alerts service.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// ListAlerts GET /iot/api/v1/alerts?device_id=&resolved=&severity=&type=&start=&end=&page=&limit=
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.ListAlertsRequest{
		Page:  parseInt(q.Get("page"), 1),
		Limit: parseInt(q.Get("limit"), 20),
	}
	if v := q.Get("device_id"); v != "" {
		req.DeviceID = &v
	}
	if v := q.Get("resolved"); v != "" {
		resolved := v == "true"
		req.Resolved = &resolved
	}
	if v := q.Get("severity"); v != "" {
		req.Severity = &v
	}
	if v := q.Get("type"); v != "" {
		req.AlertType = &v
	}
	if v := q.Get("start"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, domain.NewValidationError("start", "must be RFC3339"))
			return
		}
		req.StartTime = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, domain.NewValidationError("end", "must be RFC3339"))
			return
		}
		req.EndTime = &t
	}

	resp, err := h.alerts.ListAlerts(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolveAlertBody struct {
	ActorID string  `json:"actor_id"`
	Notes   *string `json:"notes,omitempty"`
}

// ResolveAlert PUT /iot/api/v1/alerts/{id}/resolve
func (h *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/iot/api/v1/alerts/")
	alertID := strings.TrimSuffix(path, "/resolve")
	if alertID == "" || alertID == path {
		writeError(w, domain.NewValidationError("path", "expected /alerts/{id}/resolve"))
		return
	}

	var body resolveAlertBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeError(w, domain.NewValidationError("body", "invalid json"))
		return
	}

	alert, err := h.alerts.ResolveAlert(r.Context(), alertID, body.ActorID, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
