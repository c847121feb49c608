package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrisense-iot/internal/anomaly"
	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/repository"
)

var engineNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(repo repository.AlertsRepository) *Engine {
	e := NewEngine(repo, Config{}, zap.NewNop())
	e.now = func() time.Time { return engineNow }
	return e
}

func activeDevice() *domain.Device {
	last := engineNow.Add(-time.Hour)
	return &domain.Device{
		DeviceID:          "dev-1",
		DeviceType:        domain.DeviceSoilSensor,
		Status:            domain.DeviceStatusActive,
		BatteryLevel:      90,
		LastCommunication: &last,
	}
}

func testReading(value float64) *domain.Reading {
	return domain.NewReading("dev-1", domain.MetricTemperature, value, "celsius",
		engineNow, nil, domain.QualityGood, true, 0.8)
}

func openAlerts(t *testing.T, repo repository.AlertsRepository, deviceID string) []*domain.Alert {
	t.Helper()
	resolved := false
	items, _, err := repo.ListAlerts(context.Background(), repository.AlertFilters{
		DeviceID: &deviceID,
		Resolved: &resolved,
	}, 1, 100)
	require.NoError(t, err)
	return items
}

func TestEvaluateReading_AnomalyAboveCreatesCriticalAlert(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	created := engine.EvaluateReading(context.Background(), activeDevice(), testReading(99),
		anomaly.Result{IsAnomaly: true, Score: 0.8, Above: true})

	require.Len(t, created, 1)
	assert.Equal(t, domain.AlertThresholdExceeded, created[0].AlertType)
	assert.Equal(t, domain.SeverityCritical, created[0].Severity)
	assert.False(t, created[0].Resolved)

	stored := openAlerts(t, repo, "dev-1")
	require.Len(t, stored, 1)
}

func TestEvaluateReading_AnomalyBelowUsesBelowType(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	created := engine.EvaluateReading(context.Background(), activeDevice(), testReading(-10),
		anomaly.Result{IsAnomaly: true, Score: 0.5, Above: false})

	require.Len(t, created, 1)
	assert.Equal(t, domain.AlertThresholdBelow, created[0].AlertType)
	assert.Equal(t, domain.SeverityWarning, created[0].Severity)
}

func TestEvaluateReading_NormalReadingNoAlert(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	created := engine.EvaluateReading(context.Background(), activeDevice(), testReading(20),
		anomaly.Result{IsAnomaly: false, Score: 0.1})

	assert.Empty(t, created)
	assert.Empty(t, openAlerts(t, repo, "dev-1"))
}

func TestEvaluateReading_DuplicateSuppressed(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)
	result := anomaly.Result{IsAnomaly: true, Score: 0.8, Above: true}

	first := engine.EvaluateReading(context.Background(), activeDevice(), testReading(99), result)
	require.Len(t, first, 1)

	// Same device, same alert type, open alert inside the suppression window.
	second := engine.EvaluateReading(context.Background(), activeDevice(), testReading(98), result)
	assert.Empty(t, second)
	assert.Len(t, openAlerts(t, repo, "dev-1"), 1)
}

func TestEvaluateReading_SuppressionLiftsAfterResolution(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)
	result := anomaly.Result{IsAnomaly: true, Score: 0.8, Above: true}

	first := engine.EvaluateReading(context.Background(), activeDevice(), testReading(99), result)
	require.Len(t, first, 1)

	require.NoError(t, repo.ResolveAlert(context.Background(), first[0].AlertID, "tech-1", nil, engineNow))

	second := engine.EvaluateReading(context.Background(), activeDevice(), testReading(98), result)
	assert.Len(t, second, 1)
}

func TestEvaluateDevice_LowBattery(t *testing.T) {
	tests := []struct {
		name     string
		battery  float64
		charging bool
		want     *domain.AlertSeverity
	}{
		{"critical below 20", 15, false, sevPtr(domain.SeverityCritical)},
		{"warning below 50", 35, false, sevPtr(domain.SeverityWarning)},
		{"no alert above 50", 80, false, nil},
		{"charging suppresses alert", 15, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryAlertsRepo()
			engine := newTestEngine(repo)

			device := activeDevice()
			device.BatteryLevel = tt.battery
			device.BatteryCharging = tt.charging

			created := engine.EvaluateDevice(context.Background(), device, nil)
			if tt.want == nil {
				assert.Empty(t, created)
				return
			}
			require.Len(t, created, 1)
			assert.Equal(t, domain.AlertLowBattery, created[0].AlertType)
			assert.Equal(t, *tt.want, created[0].Severity)
		})
	}
}

func TestEvaluateDevice_Offline(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	device := activeDevice()
	silent := engineNow.Add(-26 * time.Hour)
	device.LastCommunication = &silent

	created := engine.EvaluateDevice(context.Background(), device, nil)
	require.Len(t, created, 1)
	assert.Equal(t, domain.AlertOffline, created[0].AlertType)
	assert.Equal(t, domain.SeverityCritical, created[0].Severity)
}

func TestEvaluateDevice_ConnectivityDegraded(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	device := activeDevice()
	silent := engineNow.Add(-15 * time.Hour)
	device.LastCommunication = &silent

	created := engine.EvaluateDevice(context.Background(), device, nil)
	require.Len(t, created, 1)
	assert.Equal(t, domain.AlertConnectivityIssue, created[0].AlertType)
	assert.Equal(t, domain.SeverityWarning, created[0].Severity)
}

func TestEvaluateDevice_NoCommunicationTimestampNoOfflineAlert(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	device := activeDevice()
	device.LastCommunication = nil

	created := engine.EvaluateDevice(context.Background(), device, nil)
	assert.Empty(t, created)
}

func TestEvaluateDevice_MaintenanceOverdue(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	device := activeDevice()
	due := engineNow.Add(-72 * time.Hour)
	device.NextMaintenance = &due

	created := engine.EvaluateDevice(context.Background(), device, nil)
	require.Len(t, created, 1)
	assert.Equal(t, domain.AlertMaintenanceRequired, created[0].AlertType)
	assert.Equal(t, domain.SeverityWarning, created[0].Severity)
}

func TestEvaluateDevice_MaintenanceFromLogRecords(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	due := engineNow.Add(-24 * time.Hour)
	later := engineNow.Add(24 * time.Hour)
	records := []*domain.MaintenanceRecord{
		{DeviceID: "dev-1", Status: domain.MaintenanceCompleted, ScheduledDate: &due},
		{DeviceID: "dev-1", Status: domain.MaintenanceScheduled, ScheduledDate: &later},
		{DeviceID: "dev-1", Status: domain.MaintenanceScheduled, ScheduledDate: &due},
	}

	created := engine.EvaluateDevice(context.Background(), activeDevice(), records)
	require.Len(t, created, 1)
	assert.Equal(t, domain.AlertMaintenanceRequired, created[0].AlertType)
}

func TestEvaluateDevice_MultipleIndependentAlerts(t *testing.T) {
	repo := repository.NewMemoryAlertsRepo()
	engine := newTestEngine(repo)

	device := activeDevice()
	device.BatteryLevel = 10
	silent := engineNow.Add(-26 * time.Hour)
	device.LastCommunication = &silent

	created := engine.EvaluateDevice(context.Background(), device, nil)
	require.Len(t, created, 2)

	types := map[domain.AlertType]bool{}
	for _, a := range created {
		types[a.AlertType] = true
	}
	assert.True(t, types[domain.AlertLowBattery])
	assert.True(t, types[domain.AlertOffline])
}

func TestEvaluateDevice_NilDevice(t *testing.T) {
	engine := newTestEngine(repository.NewMemoryAlertsRepo())
	assert.Nil(t, engine.EvaluateDevice(context.Background(), nil, nil))
}

func TestBuildAlert_Defaults(t *testing.T) {
	alert := NewAlertBuilder("dev-9").BuildAlert(domain.AlertLowBattery, domain.SeverityWarning, "battery level at 42%")

	assert.NotEmpty(t, alert.AlertID)
	assert.Equal(t, "dev-9", alert.DeviceID)
	assert.False(t, alert.Resolved)
	assert.Nil(t, alert.ResolvedBy)
	assert.Nil(t, alert.ResolvedAt)
	assert.False(t, alert.CreatedAt.IsZero())
}

func sevPtr(s domain.AlertSeverity) *domain.AlertSeverity {
	return &s
}
