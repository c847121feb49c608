package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RegistryConfig 外部协作方配置（Device Registry / Maintenance Log）
type RegistryConfig struct {
	DeviceRegistryURL string        `yaml:"device_registry_url"`
	MaintenanceLogURL string        `yaml:"maintenance_log_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RetryCount        int           `yaml:"retry_count"`
	BreakerFailures   uint32        `yaml:"breaker_failures"` // 连续失败多少次后熔断
	BreakerCooldown   time.Duration `yaml:"breaker_cooldown"`
}

// TelemetryConfig 遥测分析配置
type TelemetryConfig struct {
	AnomalyWindow     int           `yaml:"anomaly_window"`      // 异常检测历史窗口（条数）
	AnomalyMinHistory int           `yaml:"anomaly_min_history"` // 低于该数量不做统计判断
	AnomalyZThreshold float64       `yaml:"anomaly_z_threshold"`
	MaxRangeRows      int           `yaml:"max_range_rows"` // 区间查询单次上限
	RetentionDays     int           `yaml:"retention_days"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	LatestCacheTTL    time.Duration `yaml:"latest_cache_ttl"`
}

// AlertConfig 报警引擎配置
type AlertConfig struct {
	OfflineAfter       time.Duration `yaml:"offline_after"`       // 超过该时长无通信 → offline
	DegradedAfter      time.Duration `yaml:"degraded_after"`      // 超过该时长无通信 → connectivity_issue
	BatteryCritical    float64       `yaml:"battery_critical"`    // 低于该水位 → critical
	BatteryWarning     float64       `yaml:"battery_warning"`     // 低于该水位 → warning
	SuppressionWindow  time.Duration `yaml:"suppression_window"`  // 同设备同类型未解决报警抑制窗口
	AnomalyScoreSevere float64       `yaml:"anomaly_score_severe"` // 达到该分值 → critical
}

// Config agrisense-iot 服务配置
type Config struct {
	ServiceName string         `yaml:"service_name"`
	HTTPAddr    string         `yaml:"http_addr"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Registry    RegistryConfig `yaml:"registry"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Alert       AlertConfig    `yaml:"alert"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 从环境变量加载配置；CONFIG_FILE 指定 yaml 文件时先读文件再用环境变量覆盖
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = parseInt(getEnv("DB_PORT", ""), cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", ""), cfg.Redis.DB)

	cfg.Registry.DeviceRegistryURL = getEnv("DEVICE_REGISTRY_URL", cfg.Registry.DeviceRegistryURL)
	cfg.Registry.MaintenanceLogURL = getEnv("MAINTENANCE_LOG_URL", cfg.Registry.MaintenanceLogURL)
	cfg.Registry.Timeout = parseDuration(getEnv("REGISTRY_TIMEOUT", ""), cfg.Registry.Timeout)
	cfg.Registry.RetryCount = parseInt(getEnv("REGISTRY_RETRY_COUNT", ""), cfg.Registry.RetryCount)

	cfg.Telemetry.RetentionDays = parseInt(getEnv("RETENTION_DAYS", ""), cfg.Telemetry.RetentionDays)
	cfg.Telemetry.CleanupInterval = parseDuration(getEnv("CLEANUP_INTERVAL", ""), cfg.Telemetry.CleanupInterval)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.ServiceName = "agrisense-iot"
	cfg.HTTPAddr = ":8095"

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "agrisense"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 20
	cfg.Database.MaxIdle = 5

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.DB = 0

	cfg.Registry.DeviceRegistryURL = "http://localhost:3012"
	cfg.Registry.MaintenanceLogURL = "http://localhost:3012"
	cfg.Registry.Timeout = 5 * time.Second
	cfg.Registry.RetryCount = 2
	cfg.Registry.BreakerFailures = 5
	cfg.Registry.BreakerCooldown = 30 * time.Second

	cfg.Telemetry.AnomalyWindow = 100
	cfg.Telemetry.AnomalyMinHistory = 10
	cfg.Telemetry.AnomalyZThreshold = 3.0
	cfg.Telemetry.MaxRangeRows = 10000
	cfg.Telemetry.RetentionDays = 365
	cfg.Telemetry.CleanupInterval = 6 * time.Hour
	cfg.Telemetry.LatestCacheTTL = 5 * time.Minute

	cfg.Alert.OfflineAfter = 24 * time.Hour
	cfg.Alert.DegradedAfter = 12 * time.Hour
	cfg.Alert.BatteryCritical = 20
	cfg.Alert.BatteryWarning = 50
	cfg.Alert.SuppressionWindow = 60 * time.Minute
	cfg.Alert.AnomalyScoreSevere = 0.8

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
