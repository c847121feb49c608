package domain

import (
	"time"

	"github.com/google/uuid"
)

// MetricType 传感器指标类型
type MetricType string

const (
	MetricTemperature         MetricType = "temperature"
	MetricHumidity            MetricType = "humidity"
	MetricSoilMoisture        MetricType = "soil_moisture"
	MetricSoilTemperature     MetricType = "soil_temperature"
	MetricSoilPH              MetricType = "soil_ph"
	MetricSoilEC              MetricType = "soil_ec"
	MetricSoilNitrogen        MetricType = "soil_nitrogen"
	MetricSoilPhosphorus      MetricType = "soil_phosphorus"
	MetricSoilPotassium       MetricType = "soil_potassium"
	MetricLightIntensity      MetricType = "light_intensity"
	MetricRainfall            MetricType = "rainfall"
	MetricWindSpeed           MetricType = "wind_speed"
	MetricWindDirection       MetricType = "wind_direction"
	MetricAtmosphericPressure MetricType = "atmospheric_pressure"
	MetricWaterLevel          MetricType = "water_level"
	MetricBatteryLevel        MetricType = "battery_level"
	MetricSignalStrength      MetricType = "signal_strength"
	MetricOther               MetricType = "other"
)

var validMetrics = map[MetricType]bool{
	MetricTemperature: true, MetricHumidity: true,
	MetricSoilMoisture: true, MetricSoilTemperature: true,
	MetricSoilPH: true, MetricSoilEC: true,
	MetricSoilNitrogen: true, MetricSoilPhosphorus: true, MetricSoilPotassium: true,
	MetricLightIntensity: true, MetricRainfall: true,
	MetricWindSpeed: true, MetricWindDirection: true,
	MetricAtmosphericPressure: true, MetricWaterLevel: true,
	MetricBatteryLevel: true, MetricSignalStrength: true,
	MetricOther: true,
}

// Valid 判断指标类型是否合法
func (m MetricType) Valid() bool {
	return validMetrics[m]
}

// Cumulative 判断是否为累加型指标（聚合时使用 sum/max 而非 avg/min/max）
func (m MetricType) Cumulative() bool {
	return m == MetricRainfall
}

// DeviceVital 判断是否为设备自身健康指标（任何设备类型都参与聚合）
func (m MetricType) DeviceVital() bool {
	return m == MetricBatteryLevel || m == MetricSignalStrength
}

// Location 采样位置（可选）
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReadingQuality 读数质量标记
type ReadingQuality string

const (
	QualityGood      ReadingQuality = "good"
	QualityUncertain ReadingQuality = "uncertain"
	QualityBad       ReadingQuality = "bad"
)

// Reading 传感器读数领域模型（对应 readings 表，写入后不可变）
type Reading struct {
	ReadingID    string         `db:"reading_id"` // UUID, PRIMARY KEY
	DeviceID     string         `db:"device_id"`
	Metric       MetricType     `db:"metric"`
	Value        float64        `db:"value"`
	Unit         string         `db:"unit"`
	Timestamp    time.Time      `db:"timestamp"`
	Location     *Location      `db:"-"` // latitude/longitude 两列
	Quality      ReadingQuality `db:"quality"`
	IsAnomaly    bool           `db:"is_anomaly"`
	AnomalyScore float64        `db:"anomaly_score"` // [0,1]
	CreatedAt    time.Time      `db:"created_at"`
}

// NewReading 创建读数（异常标记在构造时确定，落库后不再变更）
func NewReading(deviceID string, metric MetricType, value float64, unit string, ts time.Time, loc *Location, quality ReadingQuality, isAnomaly bool, anomalyScore float64) *Reading {
	if quality == "" {
		quality = QualityGood
	}
	if anomalyScore < 0 {
		anomalyScore = 0
	}
	if anomalyScore > 1 {
		anomalyScore = 1
	}
	now := time.Now().UTC()
	if ts.IsZero() {
		ts = now
	}
	return &Reading{
		ReadingID:    uuid.New().String(),
		DeviceID:     deviceID,
		Metric:       metric,
		Value:        value,
		Unit:         unit,
		Timestamp:    ts,
		Location:     loc,
		Quality:      quality,
		IsAnomaly:    isAnomaly,
		AnomalyScore: anomalyScore,
		CreatedAt:    now,
	}
}
