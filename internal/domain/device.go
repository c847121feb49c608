package domain

import "time"

// DeviceType 设备类型
type DeviceType string

const (
	DeviceSoilSensor           DeviceType = "soil_sensor"
	DeviceWeatherStation       DeviceType = "weather_station"
	DeviceIrrigationController DeviceType = "irrigation_controller"
	DeviceCamera               DeviceType = "camera"
	DeviceDrone                DeviceType = "drone"
	DeviceSprayer              DeviceType = "sprayer"
	DeviceGPSTracker           DeviceType = "gps_tracker"
	DeviceOther                DeviceType = "other"
)

// DeviceStatus 设备运行状态
type DeviceStatus string

const (
	DeviceStatusActive      DeviceStatus = "active"
	DeviceStatusInactive    DeviceStatus = "inactive"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusError       DeviceStatus = "error"
)

// Device 设备元数据快照（来自 Device Registry，本服务只读）
type Device struct {
	DeviceID          string       `json:"device_id"`
	DeviceType        DeviceType   `json:"device_type"`
	FieldID           string       `json:"field_id"`
	OwnerID           string       `json:"owner_id"`
	Status            DeviceStatus `json:"status"`
	BatteryLevel      float64      `json:"battery_level"` // [0,100]
	BatteryCharging   bool         `json:"battery_charging"`
	LastCommunication *time.Time   `json:"last_communication,omitempty"`
	NextMaintenance   *time.Time   `json:"next_maintenance,omitempty"`
}
