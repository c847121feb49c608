package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"agrisense-iot/internal/repository"
)

// Janitor 读数保留期清理（周期性删除超过保留期的读数）
type Janitor struct {
	readings  repository.ReadingsRepository
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewJanitor 创建清理任务
func NewJanitor(readings repository.ReadingsRepository, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Janitor{
		readings:  readings,
		retention: retention,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start 启动后台清理循环
func (j *Janitor) Start() {
	go j.run()
}

func (j *Janitor) run() {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce(context.Background())
		case <-j.stopCh:
			return
		}
	}
}

// RunOnce 执行一轮清理
func (j *Janitor) RunOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	deleted, err := j.readings.PurgeReadingsBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("Retention cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Info("Retention cleanup completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}

// Stop 停止清理循环并等待退出
func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.doneCh
}
