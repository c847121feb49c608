package anomaly

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
)

// 检测结果分值：二元判定 + 固定分值，不是连续概率
const (
	scoreAnomalous = 0.8
	scoreNormal    = 0.1
)

// ReadingSource 历史读数来源（ReadingsRepository 的窄接口）
type ReadingSource interface {
	GetRecentReadings(ctx context.Context, deviceID string, metric domain.MetricType, limit int) ([]*domain.Reading, error)
}

// Result 单次检测结果
type Result struct {
	IsAnomaly bool
	Score     float64 // [0,1]
	Above     bool    // 偏离方向：true 表示高于历史均值
}

// Detector 基于滑动窗口 z-score 的异常检测器
// 对同一 (device, metric) 的 评估→写入 临界区按 key 串行化，避免并发提交时的窗口读写竞争
type Detector struct {
	source     ReadingSource
	window     int
	minHistory int
	zThreshold float64
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDetector 创建检测器
func NewDetector(source ReadingSource, window, minHistory int, zThreshold float64, logger *zap.Logger) *Detector {
	if window <= 0 {
		window = 100
	}
	if minHistory <= 0 {
		minHistory = 10
	}
	if zThreshold <= 0 {
		zThreshold = 3.0
	}
	return &Detector{
		source:     source,
		window:     window,
		minHistory: minHistory,
		zThreshold: zThreshold,
		logger:     logger,
		locks:      map[string]*sync.Mutex{},
	}
}

// Lock 获取 (device, metric) 的串行锁，返回解锁函数
// 调用方应持锁完成 Evaluate + 写入，保证窗口读取与写入之间无并发插入
func (d *Detector) Lock(deviceID string, metric domain.MetricType) func() {
	key := deviceID + "|" + string(metric)

	d.mu.Lock()
	lock, ok := d.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[key] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Evaluate 判定新读数是否异常
// 任何内部错误都降级为"非异常"，不阻断、不失败采集链路
func (d *Detector) Evaluate(ctx context.Context, deviceID string, metric domain.MetricType, value float64) Result {
	history, err := d.source.GetRecentReadings(ctx, deviceID, metric, d.window)
	if err != nil {
		d.logger.Warn("Anomaly history fetch failed, treating reading as normal",
			zap.String("device_id", deviceID),
			zap.String("metric", string(metric)),
			zap.Error(err),
		)
		return Result{IsAnomaly: false, Score: scoreNormal}
	}

	// 历史样本太少，无统计意义，直接判定正常
	if len(history) < d.minHistory {
		return Result{IsAnomaly: false, Score: scoreNormal}
	}

	values := make([]float64, len(history))
	for i, rd := range history {
		values[i] = rd.Value
	}

	mean := average(values)
	stddev := populationStdDev(values, mean)
	above := value > mean

	// 零方差：历史值恒定。等于常量 → 正常；偏离常量 → 任何偏差都是最大异常
	if stddev == 0 {
		if value == mean {
			return Result{IsAnomaly: false, Score: scoreNormal, Above: above}
		}
		return Result{IsAnomaly: true, Score: scoreAnomalous, Above: above}
	}

	z := math.Abs(value-mean) / stddev
	if z > d.zThreshold {
		return Result{IsAnomaly: true, Score: scoreAnomalous, Above: above}
	}
	return Result{IsAnomaly: false, Score: scoreNormal, Above: above}
}

func average(xs []float64) float64 {
	total := 0.0
	for _, v := range xs {
		total += v
	}
	return total / float64(len(xs))
}

// populationStdDev 总体标准差（除以 N，不是 N-1）
func populationStdDev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var varianceSum float64
	for _, v := range xs {
		varianceSum += (v - mean) * (v - mean)
	}
	return math.Sqrt(varianceSum / float64(len(xs)))
}
