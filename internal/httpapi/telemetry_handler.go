package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/service"
)

// TelemetryHandler 遥测 HTTP 处理器
type TelemetryHandler struct {
	telemetry service.TelemetryService
	logger    *zap.Logger
}

// NewTelemetryHandler 创建遥测处理器
func NewTelemetryHandler(telemetry service.TelemetryService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{telemetry: telemetry, logger: logger}
}

type submitReadingBody struct {
	DeviceID  string           `json:"device_id"`
	Metric    string           `json:"metric"`
	Value     float64          `json:"value"`
	Unit      string           `json:"unit"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	Location  *domain.Location `json:"location,omitempty"`
	Quality   string           `json:"quality,omitempty"`
}

// SubmitReading POST /iot/api/v1/readings
func (h *TelemetryHandler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	var body submitReadingBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeError(w, domain.NewValidationError("body", "invalid json"))
		return
	}

	req := service.SubmitReadingRequest{
		DeviceID: body.DeviceID,
		Metric:   body.Metric,
		Value:    body.Value,
		Unit:     body.Unit,
		Location: body.Location,
		Quality:  domain.ReadingQuality(body.Quality),
	}
	if body.Timestamp != nil {
		req.Timestamp = *body.Timestamp
	}

	reading, err := h.telemetry.SubmitReading(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reading)
}

// Aggregate GET /iot/api/v1/analytics/aggregate?device_id=&metric=&start=&end=&interval=
func (h *TelemetryHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTime(q.Get("start"))
	if err != nil {
		writeError(w, domain.NewValidationError("start", "must be RFC3339"))
		return
	}
	end, err := parseTime(q.Get("end"))
	if err != nil {
		writeError(w, domain.NewValidationError("end", "must be RFC3339"))
		return
	}

	buckets, err := h.telemetry.Aggregate(r.Context(), q.Get("device_id"), q.Get("metric"), start, end, q.Get("interval"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

// Summary GET /iot/api/v1/analytics/summary?device_id=&metric=&start=&end=
func (h *TelemetryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseTime(q.Get("start"))
	if err != nil {
		writeError(w, domain.NewValidationError("start", "must be RFC3339"))
		return
	}
	end, err := parseTime(q.Get("end"))
	if err != nil {
		writeError(w, domain.NewValidationError("end", "must be RFC3339"))
		return
	}

	summaries, err := h.telemetry.Summary(r.Context(), q.Get("device_id"), q.Get("metric"), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}
