package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
	"agrisense-iot/internal/repository"
	"agrisense-iot/internal/store"
)

// memoryKV implements store.KVStore for tests.
type memoryKV struct {
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", store.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func seedReadings(t *testing.T, repo *repository.MemoryReadingsRepo, deviceID string, metric domain.MetricType, base time.Time, step time.Duration, values []float64) {
	t.Helper()
	for i, v := range values {
		r := domain.NewReading(deviceID, metric, v, "unit", base.Add(time.Duration(i)*step), nil, domain.QualityGood, false, 0.1)
		require.NoError(t, repo.InsertReading(context.Background(), r))
	}
}

func TestParseInterval(t *testing.T) {
	for _, valid := range []string{"hour", "day", "week", "month"} {
		parsed, err := ParseInterval(valid)
		require.NoError(t, err)
		assert.Equal(t, Interval(valid), parsed)
	}

	_, err := ParseInterval("fortnight")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestAggregate_DayBucketsHourlyReadings(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// 24 hourly readings on one calendar day.
	values := make([]float64, 24)
	for i := range values {
		values[i] = float64(10 + i)
	}
	seedReadings(t, repo, "dev-1", domain.MetricTemperature, base, time.Hour, values)

	agg := NewAggregator(repo, nil, 0, zap.NewNop())
	buckets, err := agg.Aggregate(context.Background(), "dev-1", domain.MetricTemperature,
		base, base.Add(24*time.Hour), IntervalDay)
	require.NoError(t, err)

	require.Len(t, buckets, 1)
	b := buckets[0]
	assert.Equal(t, base, b.Start)
	assert.Equal(t, base.AddDate(0, 0, 1), b.End)
	assert.Equal(t, 24, b.Count)
	require.NotNil(t, b.Avg)
	assert.InDelta(t, 21.5, *b.Avg, 1e-9)
	assert.Equal(t, 10.0, b.Min)
	assert.Equal(t, 33.0, b.Max)
	assert.Nil(t, b.Sum)
}

func TestAggregate_HourBucketsSorted(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	base := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	seedReadings(t, repo, "dev-1", domain.MetricHumidity, base, 20*time.Minute,
		[]float64{50, 52, 54, 56, 58, 60})

	agg := NewAggregator(repo, nil, 0, zap.NewNop())
	buckets, err := agg.Aggregate(context.Background(), "dev-1", domain.MetricHumidity,
		base, base.Add(2*time.Hour), IntervalHour)
	require.NoError(t, err)

	require.Len(t, buckets, 2)
	assert.True(t, buckets[0].Start.Before(buckets[1].Start))

	// Bucket counts must add up to the readings in range.
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(t, 6, total)
}

func TestAggregate_CumulativeMetricUsesSum(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	seedReadings(t, repo, "dev-1", domain.MetricRainfall, base, time.Hour,
		[]float64{1.5, 0, 2.5, 4})

	agg := NewAggregator(repo, nil, 0, zap.NewNop())
	buckets, err := agg.Aggregate(context.Background(), "dev-1", domain.MetricRainfall,
		base, base.Add(4*time.Hour), IntervalDay)
	require.NoError(t, err)

	require.Len(t, buckets, 1)
	b := buckets[0]
	assert.Nil(t, b.Avg)
	require.NotNil(t, b.Sum)
	assert.InDelta(t, 8.0, *b.Sum, 1e-9)
	assert.Equal(t, 4.0, b.Max)
}

func TestAggregate_WeekAlignedToMonday(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	// 2026-03-11 is a Wednesday; the ISO week starts on Monday 2026-03-09.
	wednesday := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC)
	seedReadings(t, repo, "dev-1", domain.MetricTemperature, wednesday, time.Hour, []float64{20})

	agg := NewAggregator(repo, nil, 0, zap.NewNop())
	buckets, err := agg.Aggregate(context.Background(), "dev-1", domain.MetricTemperature,
		wednesday.Add(-time.Hour), wednesday.Add(time.Hour), IntervalWeek)
	require.NoError(t, err)

	require.Len(t, buckets, 1)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), buckets[0].Start)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), buckets[0].End)
}

func TestAggregate_SundayBelongsToPrecedingWeek(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	sunday := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	seedReadings(t, repo, "dev-1", domain.MetricTemperature, sunday, time.Hour, []float64{20})

	agg := NewAggregator(repo, nil, 0, zap.NewNop())
	buckets, err := agg.Aggregate(context.Background(), "dev-1", domain.MetricTemperature,
		sunday.Add(-time.Hour), sunday.Add(time.Hour), IntervalWeek)
	require.NoError(t, err)

	require.Len(t, buckets, 1)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), buckets[0].Start)
}

func TestAggregate_EmptyRange(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	agg := NewAggregator(repo, nil, 0, zap.NewNop())

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	buckets, err := agg.Aggregate(context.Background(), "dev-1", domain.MetricTemperature,
		start, start.Add(24*time.Hour), IntervalDay)
	require.NoError(t, err)
	assert.Empty(t, buckets)
	assert.NotNil(t, buckets)
}

func TestAggregate_InvalidRange(t *testing.T) {
	agg := NewAggregator(repository.NewMemoryReadingsRepo(), nil, 0, zap.NewNop())

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := agg.Aggregate(context.Background(), "dev-1", domain.MetricTemperature,
		start, start.Add(-time.Hour), IntervalDay)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	_, err = agg.Aggregate(context.Background(), "", domain.MetricTemperature,
		start, start.Add(time.Hour), IntervalDay)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestSummary_ComputesPerMetric(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	seedReadings(t, repo, "dev-1", domain.MetricTemperature, base, time.Hour, []float64{18, 22, 26})
	seedReadings(t, repo, "dev-1", domain.MetricHumidity, base, time.Hour, []float64{60, 70})

	agg := NewAggregator(repo, nil, 0, zap.NewNop())
	summaries, err := agg.Summary(context.Background(), "dev-1", "", base, base.Add(6*time.Hour))
	require.NoError(t, err)

	require.Len(t, summaries, 2)
	// Sorted by metric name: humidity before temperature.
	assert.Equal(t, domain.MetricHumidity, summaries[0].Metric)
	assert.Equal(t, domain.MetricTemperature, summaries[1].Metric)

	temp := summaries[1]
	assert.Equal(t, 3, temp.Count)
	assert.InDelta(t, 22.0, temp.Avg, 1e-9)
	assert.Equal(t, 18.0, temp.Min)
	assert.Equal(t, 26.0, temp.Max)
	assert.Equal(t, 26.0, temp.LatestValue)
}

func TestSummary_PrefersFresherCachedLatest(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedReadings(t, repo, "dev-1", domain.MetricTemperature, base, time.Hour, []float64{18, 22})

	kv := newMemoryKV()
	cache := store.NewLatestCache(kv, time.Minute, zap.NewNop())

	// Cache holds a reading newer than anything in the queried range.
	fresh := domain.NewReading("dev-1", domain.MetricTemperature, 30, "celsius",
		base.Add(48*time.Hour), nil, domain.QualityGood, false, 0.1)
	require.NoError(t, cache.WriteLatest(context.Background(), fresh))

	agg := NewAggregator(repo, cache, 0, zap.NewNop())
	summaries, err := agg.Summary(context.Background(), "dev-1", domain.MetricTemperature, base, base.Add(6*time.Hour))
	require.NoError(t, err)

	require.Len(t, summaries, 1)
	assert.Equal(t, 30.0, summaries[0].LatestValue)
	// Range stats stay range-scoped.
	assert.Equal(t, 2, summaries[0].Count)
	assert.InDelta(t, 20.0, summaries[0].Avg, 1e-9)
}

func TestSummary_CacheMissFallsBackToStore(t *testing.T) {
	repo := repository.NewMemoryReadingsRepo()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedReadings(t, repo, "dev-1", domain.MetricTemperature, base, time.Hour, []float64{18, 22})

	cache := store.NewLatestCache(newMemoryKV(), time.Minute, zap.NewNop())
	agg := NewAggregator(repo, cache, 0, zap.NewNop())

	summaries, err := agg.Summary(context.Background(), "dev-1", domain.MetricTemperature, base, base.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 22.0, summaries[0].LatestValue)
}

func TestBucketStart_MonthAlignment(t *testing.T) {
	ts := time.Date(2026, 3, 17, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), bucketStart(ts, IntervalMonth))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), bucketEnd(bucketStart(ts, IntervalMonth), IntervalMonth))
}
