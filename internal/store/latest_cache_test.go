package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrisense-iot/internal/domain"
)

func newTestKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisKV(client), mr
}

func TestRedisKV_SetGetDelete(t *testing.T) {
	kv, _ := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k1", "v1", time.Minute))

	val, err := kv.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", val)

	require.NoError(t, kv.Delete(ctx, "k1"))
	_, err = kv.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisKV_MissingKeyIsCacheMiss(t *testing.T) {
	kv, _ := newTestKV(t)

	_, err := kv.Get(context.Background(), "never-set")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisKV_TTLExpiry(t *testing.T) {
	kv, mr := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k1", "v1", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := kv.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLatestCache_RoundTrip(t *testing.T) {
	kv, _ := newTestKV(t)
	cache := NewLatestCache(kv, time.Minute, zap.NewNop())
	ctx := context.Background()

	reading := domain.NewReading("dev-1", domain.MetricSoilMoisture, 42.5, "%",
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		&domain.Location{Latitude: 31.2, Longitude: 121.5},
		domain.QualityGood, false, 0.1)

	require.NoError(t, cache.WriteLatest(ctx, reading))

	got, err := cache.ReadLatest(ctx, "dev-1", domain.MetricSoilMoisture)
	require.NoError(t, err)
	assert.Equal(t, reading.ReadingID, got.ReadingID)
	assert.Equal(t, reading.Value, got.Value)
	assert.True(t, reading.Timestamp.Equal(got.Timestamp))
	require.NotNil(t, got.Location)
	assert.Equal(t, 31.2, got.Location.Latitude)
}

func TestLatestCache_MissReturnsErrCacheMiss(t *testing.T) {
	kv, _ := newTestKV(t)
	cache := NewLatestCache(kv, time.Minute, zap.NewNop())

	_, err := cache.ReadLatest(context.Background(), "dev-1", domain.MetricTemperature)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestLatestCache_KeysIsolatedPerMetric(t *testing.T) {
	kv, _ := newTestKV(t)
	cache := NewLatestCache(kv, time.Minute, zap.NewNop())
	ctx := context.Background()

	temp := domain.NewReading("dev-1", domain.MetricTemperature, 20, "celsius",
		time.Now().UTC(), nil, domain.QualityGood, false, 0.1)
	hum := domain.NewReading("dev-1", domain.MetricHumidity, 60, "%",
		time.Now().UTC(), nil, domain.QualityGood, false, 0.1)
	require.NoError(t, cache.WriteLatest(ctx, temp))
	require.NoError(t, cache.WriteLatest(ctx, hum))

	got, err := cache.ReadLatest(ctx, "dev-1", domain.MetricTemperature)
	require.NoError(t, err)
	assert.Equal(t, domain.MetricTemperature, got.Metric)
	assert.Equal(t, 20.0, got.Value)
}
