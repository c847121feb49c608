package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
)

func newDeviceRegistryClient(t *testing.T, handler http.Handler) *HTTPDeviceRegistry {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	locator := NewStaticLocator(map[string]string{ServiceDeviceRegistry: server.URL})
	client, err := NewHTTPDeviceRegistry(locator, ClientOptions{Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func newMaintenanceLogClient(t *testing.T, handler http.Handler) *HTTPMaintenanceLog {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	locator := NewStaticLocator(map[string]string{ServiceMaintenanceLog: server.URL})
	client, err := NewHTTPMaintenanceLog(locator, ClientOptions{Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestStaticLocator(t *testing.T) {
	locator := NewStaticLocator(map[string]string{ServiceDeviceRegistry: "http://registry:3012"})

	addr, err := locator.Resolve(ServiceDeviceRegistry)
	require.NoError(t, err)
	assert.Equal(t, "http://registry:3012", addr)

	_, err = locator.Resolve("unknown-service")
	assert.Error(t, err)
}

func TestGetDevice_Success(t *testing.T) {
	last := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	client := newDeviceRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/devices/dev-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&domain.Device{
			DeviceID:          "dev-1",
			DeviceType:        domain.DeviceWeatherStation,
			Status:            domain.DeviceStatusActive,
			BatteryLevel:      72,
			LastCommunication: &last,
		})
	}))

	device, err := client.GetDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", device.DeviceID)
	assert.Equal(t, domain.DeviceWeatherStation, device.DeviceType)
	assert.Equal(t, 72.0, device.BatteryLevel)
	require.NotNil(t, device.LastCommunication)
	assert.True(t, last.Equal(*device.LastCommunication))
}

func TestGetDevice_NotFound(t *testing.T) {
	client := newDeviceRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetDevice(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetDevice_EmptyID(t *testing.T) {
	client := newDeviceRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty device id")
	}))

	_, err := client.GetDevice(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetDevice_ServerErrorIsUnavailable(t *testing.T) {
	client := newDeviceRegistryClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetDevice(context.Background(), "dev-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestGetDevice_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	locator := NewStaticLocator(map[string]string{ServiceDeviceRegistry: server.URL})
	client, err := NewHTTPDeviceRegistry(locator, ClientOptions{
		Timeout:         time.Second,
		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.GetDevice(context.Background(), "dev-1")
		require.ErrorIs(t, err, domain.ErrUnavailable)
	}
	callsBeforeOpen := calls

	// Breaker is open now: the call fails fast without touching the server.
	_, err = client.GetDevice(context.Background(), "dev-1")
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, callsBeforeOpen, calls)
}

func TestGetDevice_NotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	locator := NewStaticLocator(map[string]string{ServiceDeviceRegistry: server.URL})
	client, err := NewHTTPDeviceRegistry(locator, ClientOptions{
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := client.GetDevice(context.Background(), "ghost")
		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.NotErrorIs(t, err, domain.ErrUnavailable)
	}
}

func TestListMaintenance_Success(t *testing.T) {
	scheduled := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	client := newMaintenanceLogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/devices/dev-1/maintenance", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]*domain.MaintenanceRecord{
			{DeviceID: "dev-1", MaintenanceType: "calibration", Status: domain.MaintenanceScheduled, ScheduledDate: &scheduled},
		})
	}))

	records, err := client.ListMaintenance(context.Background(), "dev-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "calibration", records[0].MaintenanceType)
	assert.Equal(t, domain.MaintenanceScheduled, records[0].Status)
}

func TestListMaintenance_NotFoundIsEmpty(t *testing.T) {
	client := newMaintenanceLogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	records, err := client.ListMaintenance(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListMaintenance_ServerErrorIsUnavailable(t *testing.T) {
	client := newMaintenanceLogClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.ListMaintenance(context.Background(), "dev-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
