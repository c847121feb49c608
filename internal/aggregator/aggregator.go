package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/repository"
	"agrisense-iot/internal/store"
)

// Interval 聚合时间粒度
type Interval string

const (
	IntervalHour  Interval = "hour"
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// ParseInterval 解析时间粒度，非法值返回校验错误
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case IntervalHour, IntervalDay, IntervalWeek, IntervalMonth:
		return Interval(s), nil
	default:
		return "", domain.NewValidationError("interval", fmt.Sprintf("unsupported interval %q", s))
	}
}

// Bucket 一个 (metric, 时间窗口) 的聚合统计（派生数据，不持久化）
type Bucket struct {
	DeviceID string            `json:"device_id"`
	Metric   domain.MetricType `json:"metric"`
	Interval Interval          `json:"interval"`
	Start    time.Time         `json:"start"`
	End      time.Time         `json:"end"`
	Count    int               `json:"count"`
	Avg      *float64          `json:"avg,omitempty"` // 累加型指标为空
	Min      float64           `json:"min"`
	Max      float64           `json:"max"`
	Sum      *float64          `json:"sum,omitempty"` // 仅累加型指标
}

// MetricSummary 单指标汇总（不分桶，供"当前状态"面板使用）
type MetricSummary struct {
	Metric          domain.MetricType `json:"metric"`
	Count           int               `json:"count"`
	Avg             float64           `json:"avg"`
	Min             float64           `json:"min"`
	Max             float64           `json:"max"`
	LatestValue     float64           `json:"latest_value"`
	LatestTimestamp time.Time         `json:"latest_timestamp"`
}

// Aggregator 区间分桶聚合器（纯读取，每次调用重新计算）
type Aggregator struct {
	readings repository.ReadingsRepository
	cache    *store.LatestCache // 可为 nil
	maxRows  int
	logger   *zap.Logger
}

// NewAggregator 创建聚合器
func NewAggregator(readings repository.ReadingsRepository, cache *store.LatestCache, maxRows int, logger *zap.Logger) *Aggregator {
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Aggregator{readings: readings, cache: cache, maxRows: maxRows, logger: logger}
}

// Aggregate 区间分桶聚合
// 桶边界按日历对齐（day 对齐到 UTC 零点，week 对齐到 ISO 周一）；结果按时间升序
// 区间内无数据返回空切片，不是错误
func (a *Aggregator) Aggregate(ctx context.Context, deviceID string, metric domain.MetricType, start, end time.Time, interval Interval) ([]Bucket, error) {
	if deviceID == "" {
		return nil, domain.NewValidationError("device_id", "required")
	}
	if end.Before(start) {
		return nil, domain.NewValidationError("end_date", "must not be before start_date")
	}

	filters := repository.ReadingFilters{
		Metric:    metric,
		StartTime: &start,
		EndTime:   &end,
	}
	rows, err := a.readings.GetReadingsByRange(ctx, deviceID, filters, a.maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings for aggregation: %w", err)
	}
	if len(rows) == 0 {
		return []Bucket{}, nil
	}

	type bucketKey struct {
		metric domain.MetricType
		start  time.Time
	}
	buckets := map[bucketKey]*Bucket{}

	for _, rd := range rows {
		bs := bucketStart(rd.Timestamp, interval)
		key := bucketKey{metric: rd.Metric, start: bs}

		b, ok := buckets[key]
		if !ok {
			b = &Bucket{
				DeviceID: deviceID,
				Metric:   rd.Metric,
				Interval: interval,
				Start:    bs,
				End:      bucketEnd(bs, interval),
				Min:      rd.Value,
				Max:      rd.Value,
			}
			buckets[key] = b
		}

		b.Count++
		if rd.Value < b.Min {
			b.Min = rd.Value
		}
		if rd.Value > b.Max {
			b.Max = rd.Value
		}
		// avg 借用 Avg 指针暂存和，最后再除
		if b.Avg == nil {
			b.Avg = new(float64)
		}
		*b.Avg += rd.Value
	}

	results := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		// 指标语义决定算子集合：累加型用 sum/max，其余用 avg/min/max
		if b.Metric.Cumulative() && !b.Metric.DeviceVital() {
			sum := *b.Avg
			b.Sum = &sum
			b.Avg = nil
		} else {
			avg := *b.Avg / float64(b.Count)
			b.Avg = &avg
		}
		results = append(results, *b)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Start.Equal(results[j].Start) {
			return results[i].Start.Before(results[j].Start)
		}
		return results[i].Metric < results[j].Metric
	})
	return results, nil
}

// Summary 不分桶的单指标汇总（count/avg/min/max/latest）
// 最新值优先读缓存，未命中回退到存储
func (a *Aggregator) Summary(ctx context.Context, deviceID string, metric domain.MetricType, start, end time.Time) ([]MetricSummary, error) {
	if deviceID == "" {
		return nil, domain.NewValidationError("device_id", "required")
	}

	filters := repository.ReadingFilters{
		Metric:    metric,
		StartTime: &start,
		EndTime:   &end,
	}
	rows, err := a.readings.GetReadingsByRange(ctx, deviceID, filters, a.maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings for summary: %w", err)
	}
	if len(rows) == 0 {
		return []MetricSummary{}, nil
	}

	summaries := map[domain.MetricType]*MetricSummary{}
	sums := map[domain.MetricType]float64{}
	for _, rd := range rows {
		s, ok := summaries[rd.Metric]
		if !ok {
			s = &MetricSummary{
				Metric:          rd.Metric,
				Min:             rd.Value,
				Max:             rd.Value,
				LatestValue:     rd.Value,
				LatestTimestamp: rd.Timestamp,
			}
			summaries[rd.Metric] = s
		}
		s.Count++
		sums[rd.Metric] += rd.Value
		if rd.Value < s.Min {
			s.Min = rd.Value
		}
		if rd.Value > s.Max {
			s.Max = rd.Value
		}
		if rd.Timestamp.After(s.LatestTimestamp) {
			s.LatestValue = rd.Value
			s.LatestTimestamp = rd.Timestamp
		}
	}

	results := make([]MetricSummary, 0, len(summaries))
	for m, s := range summaries {
		s.Avg = sums[m] / float64(s.Count)

		// 缓存里的最新值可能比查询区间更新（持续采集中）
		if a.cache != nil {
			if cached, err := a.cache.ReadLatest(ctx, deviceID, m); err == nil {
				if cached.Timestamp.After(s.LatestTimestamp) {
					s.LatestValue = cached.Value
					s.LatestTimestamp = cached.Timestamp
				}
			} else if !errors.Is(err, store.ErrCacheMiss) {
				a.logger.Debug("Latest cache read failed",
					zap.String("device_id", deviceID),
					zap.String("metric", string(m)),
					zap.Error(err),
				)
			}
		}
		results = append(results, *s)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Metric < results[j].Metric
	})
	return results, nil
}

// bucketStart 计算读数所属桶的起点（UTC，日历对齐）
func bucketStart(t time.Time, interval Interval) time.Time {
	t = t.UTC()
	switch interval {
	case IntervalHour:
		return t.Truncate(time.Hour)
	case IntervalDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case IntervalWeek:
		// ISO 周：对齐到周一零点
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		weekday := int(day.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday
		}
		return day.AddDate(0, 0, -(weekday - 1))
	case IntervalMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}

func bucketEnd(start time.Time, interval Interval) time.Time {
	switch interval {
	case IntervalHour:
		return start.Add(time.Hour)
	case IntervalDay:
		return start.AddDate(0, 0, 1)
	case IntervalWeek:
		return start.AddDate(0, 0, 7)
	case IntervalMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.Add(time.Hour)
	}
}
