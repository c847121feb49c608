package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
)

// DeviceRegistry 设备注册中心（外部协作方，设备元数据的唯一事实来源）
type DeviceRegistry interface {
	// GetDevice 获取设备元数据；未知设备返回 domain.ErrNotFound（fail fast）
	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)
}

// MaintenanceLog 维护日志（外部协作方，只读）
type MaintenanceLog interface {
	ListMaintenance(ctx context.Context, deviceID string) ([]*domain.MaintenanceRecord, error)
}

// ClientOptions 协作方客户端选项
type ClientOptions struct {
	Timeout         time.Duration
	RetryCount      int
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func newHTTPClient(baseURL string, opts ClientOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// HTTPDeviceRegistry 基于 HTTP 的 Device Registry 客户端
// 传输（resty）、弹性（Breaker）、寻址（Locator）三者分离，注入组合
type HTTPDeviceRegistry struct {
	httpClient *resty.Client
	breaker    *Breaker
	logger     *zap.Logger
}

// NewHTTPDeviceRegistry 创建 Device Registry 客户端
func NewHTTPDeviceRegistry(locator Locator, opts ClientOptions, logger *zap.Logger) (*HTTPDeviceRegistry, error) {
	baseURL, err := locator.Resolve(ServiceDeviceRegistry)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve device registry: %w", err)
	}
	return &HTTPDeviceRegistry{
		httpClient: newHTTPClient(baseURL, opts),
		breaker:    NewBreaker(ServiceDeviceRegistry, opts.BreakerFailures, opts.BreakerCooldown),
		logger:     logger,
	}, nil
}

var _ DeviceRegistry = (*HTTPDeviceRegistry)(nil)

// GetDevice 获取设备元数据
func (c *HTTPDeviceRegistry) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device %q: %w", deviceID, domain.ErrNotFound)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.R().
			SetContext(ctx).
			Get("/internal/devices/" + deviceID)
		if err != nil {
			return nil, fmt.Errorf("device registry call failed: %w", domain.ErrUnavailable)
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			// NotFound 不计入熔断失败：是明确业务结果而非依赖故障
			return nil, nil
		case resp.StatusCode() >= 400:
			return nil, fmt.Errorf("device registry returned %d: %w", resp.StatusCode(), domain.ErrUnavailable)
		}

		var device domain.Device
		if err := json.Unmarshal(resp.Body(), &device); err != nil {
			return nil, fmt.Errorf("failed to decode device: %w", err)
		}
		return &device, nil
	})
	if err != nil {
		c.logger.Warn("Device registry lookup failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, domain.ErrNotFound)
	}
	return result.(*domain.Device), nil
}

// HTTPMaintenanceLog 基于 HTTP 的 Maintenance Log 客户端
type HTTPMaintenanceLog struct {
	httpClient *resty.Client
	breaker    *Breaker
	logger     *zap.Logger
}

// NewHTTPMaintenanceLog 创建 Maintenance Log 客户端
func NewHTTPMaintenanceLog(locator Locator, opts ClientOptions, logger *zap.Logger) (*HTTPMaintenanceLog, error) {
	baseURL, err := locator.Resolve(ServiceMaintenanceLog)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve maintenance log: %w", err)
	}
	return &HTTPMaintenanceLog{
		httpClient: newHTTPClient(baseURL, opts),
		breaker:    NewBreaker(ServiceMaintenanceLog, opts.BreakerFailures, opts.BreakerCooldown),
		logger:     logger,
	}, nil
}

var _ MaintenanceLog = (*HTTPMaintenanceLog)(nil)

// ListMaintenance 获取设备的维护记录
func (c *HTTPMaintenanceLog) ListMaintenance(ctx context.Context, deviceID string) ([]*domain.MaintenanceRecord, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.R().
			SetContext(ctx).
			Get("/internal/devices/" + deviceID + "/maintenance")
		if err != nil {
			return nil, fmt.Errorf("maintenance log call failed: %w", domain.ErrUnavailable)
		}
		if resp.StatusCode() == http.StatusNotFound {
			return []*domain.MaintenanceRecord{}, nil
		}
		if resp.StatusCode() >= 400 {
			return nil, fmt.Errorf("maintenance log returned %d: %w", resp.StatusCode(), domain.ErrUnavailable)
		}

		var records []*domain.MaintenanceRecord
		if err := json.Unmarshal(resp.Body(), &records); err != nil {
			return nil, fmt.Errorf("failed to decode maintenance records: %w", err)
		}
		return records, nil
	})
	if err != nil {
		c.logger.Warn("Maintenance log lookup failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil, err
	}
	return result.([]*domain.MaintenanceRecord), nil
}
