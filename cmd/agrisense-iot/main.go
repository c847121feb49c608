package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"agrisense-iot/internal/aggregator"
	"agrisense-iot/internal/anomaly"
	"agrisense-iot/internal/config"
	"agrisense-iot/internal/database"
	"agrisense-iot/internal/evaluator"
	"agrisense-iot/internal/health"
	"agrisense-iot/internal/httpapi"
	"agrisense-iot/internal/logger"
	"agrisense-iot/internal/registry"
	"agrisense-iot/internal/repository"
	"agrisense-iot/internal/service"
	"agrisense-iot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 数据库：不可用时回退到内存 repo（联测模式）
	var readingsRepo repository.ReadingsRepository
	var alertsRepo repository.AlertsRepository
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Warn("DB connection failed, falling back to in-memory repositories", zap.Error(err))
		readingsRepo = repository.NewMemoryReadingsRepo()
		alertsRepo = repository.NewMemoryAlertsRepo()
	} else {
		defer db.Close()
		readingsRepo = repository.NewPostgresReadingsRepository(db)
		alertsRepo = repository.NewPostgresAlertsRepository(db)
		log.Info("DB enabled for agrisense-iot")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	latestCache := store.NewLatestCache(store.NewRedisKV(redisClient), cfg.Telemetry.LatestCacheTTL, log)

	// 外部协作方：寻址、传输、熔断分离组合
	locator := registry.NewStaticLocator(map[string]string{
		registry.ServiceDeviceRegistry: cfg.Registry.DeviceRegistryURL,
		registry.ServiceMaintenanceLog: cfg.Registry.MaintenanceLogURL,
	})
	clientOpts := registry.ClientOptions{
		Timeout:         cfg.Registry.Timeout,
		RetryCount:      cfg.Registry.RetryCount,
		BreakerFailures: cfg.Registry.BreakerFailures,
		BreakerCooldown: cfg.Registry.BreakerCooldown,
	}
	deviceRegistry, err := registry.NewHTTPDeviceRegistry(locator, clientOpts, log)
	if err != nil {
		log.Fatal("Failed to create device registry client", zap.Error(err))
	}
	maintenanceLog, err := registry.NewHTTPMaintenanceLog(locator, clientOpts, log)
	if err != nil {
		log.Fatal("Failed to create maintenance log client", zap.Error(err))
	}

	detector := anomaly.NewDetector(
		readingsRepo,
		cfg.Telemetry.AnomalyWindow,
		cfg.Telemetry.AnomalyMinHistory,
		cfg.Telemetry.AnomalyZThreshold,
		log,
	)
	engine := evaluator.NewEngine(alertsRepo, evaluator.Config{
		OfflineAfter:       cfg.Alert.OfflineAfter,
		DegradedAfter:      cfg.Alert.DegradedAfter,
		BatteryCritical:    cfg.Alert.BatteryCritical,
		BatteryWarning:     cfg.Alert.BatteryWarning,
		SuppressionWindow:  cfg.Alert.SuppressionWindow,
		AnomalyScoreSevere: cfg.Alert.AnomalyScoreSevere,
	}, log)
	agg := aggregator.NewAggregator(readingsRepo, latestCache, cfg.Telemetry.MaxRangeRows, log)
	scorer := health.NewScorer(deviceRegistry, maintenanceLog, readingsRepo, log)

	telemetrySvc := service.NewTelemetryService(readingsRepo, deviceRegistry, maintenanceLog, detector, engine, agg, latestCache, log)
	alertSvc := service.NewAlertService(alertsRepo, nil, log)
	healthSvc := service.NewHealthService(scorer)

	router := httpapi.NewRouter(log)
	router.RegisterTelemetryRoutes(httpapi.NewTelemetryHandler(telemetrySvc, log))
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(alertSvc, log))
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(healthSvc, log))

	janitor := service.NewJanitor(
		readingsRepo,
		time.Duration(cfg.Telemetry.RetentionDays)*24*time.Hour,
		cfg.Telemetry.CleanupInterval,
		log,
	)
	janitor.Start()

	server := service.NewServer(cfg.HTTPAddr, router, log)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("agrisense-iot telemetry core started",
		zap.String("addr", cfg.HTTPAddr),
		zap.Int("anomaly_window", cfg.Telemetry.AnomalyWindow),
		zap.Int("retention_days", cfg.Telemetry.RetentionDays),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	janitor.Stop()
	log.Info("agrisense-iot stopped")
}
