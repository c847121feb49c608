package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agrisense-iot/internal/domain"
)

// MemoryReadingsRepo: 用于 DB 未就绪时的联测和单元测试
// - 与 PostgresReadingsRepository 行为对齐（排序、limit、NotFound 语义）
// - 读数不可变：只追加，不更新
type MemoryReadingsRepo struct {
	mu       sync.RWMutex
	readings []*domain.Reading
}

func NewMemoryReadingsRepo() *MemoryReadingsRepo {
	return &MemoryReadingsRepo{}
}

var _ ReadingsRepository = (*MemoryReadingsRepo)(nil)

func (r *MemoryReadingsRepo) InsertReading(_ context.Context, reading *domain.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *reading
	r.readings = append(r.readings, &clone)
	return nil
}

func (r *MemoryReadingsRepo) GetRecentReadings(_ context.Context, deviceID string, metric domain.MetricType, limit int) ([]*domain.Reading, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.Reading
	for _, rd := range r.readings {
		if rd.DeviceID == deviceID && rd.Metric == metric {
			matched = append(matched, rd)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return copyReadings(matched), nil
}

func (r *MemoryReadingsRepo) GetReadingsByRange(_ context.Context, deviceID string, filters ReadingFilters, limit int) ([]*domain.Reading, error) {
	if limit <= 0 {
		limit = 10000
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.Reading
	for _, rd := range r.readings {
		if deviceID != "" && rd.DeviceID != deviceID {
			continue
		}
		if filters.Metric != "" && rd.Metric != filters.Metric {
			continue
		}
		if filters.StartTime != nil && rd.Timestamp.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && rd.Timestamp.After(*filters.EndTime) {
			continue
		}
		if filters.AnomaliesOnly && !rd.IsAnomaly {
			continue
		}
		matched = append(matched, rd)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return copyReadings(matched), nil
}

func (r *MemoryReadingsRepo) GetLatestReading(_ context.Context, deviceID string, metric domain.MetricType) (*domain.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Reading
	for _, rd := range r.readings {
		if rd.DeviceID != deviceID {
			continue
		}
		if metric != "" && rd.Metric != metric {
			continue
		}
		if latest == nil || rd.Timestamp.After(latest.Timestamp) {
			latest = rd
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("latest reading for device %s: %w", deviceID, domain.ErrNotFound)
	}
	clone := *latest
	return &clone, nil
}

func (r *MemoryReadingsRepo) GetLastReadingTime(_ context.Context, deviceID string) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *time.Time
	for _, rd := range r.readings {
		if rd.DeviceID != deviceID {
			continue
		}
		if last == nil || rd.Timestamp.After(*last) {
			ts := rd.Timestamp
			last = &ts
		}
	}
	return last, nil
}

func (r *MemoryReadingsRepo) CountAnomalies(_ context.Context, deviceID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rd := range r.readings {
		if rd.DeviceID == deviceID && rd.IsAnomaly && !rd.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryReadingsRepo) PurgeReadingsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*domain.Reading
	var deleted int64
	for _, rd := range r.readings {
		if rd.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rd)
	}
	r.readings = kept
	return deleted, nil
}

func copyReadings(in []*domain.Reading) []*domain.Reading {
	out := make([]*domain.Reading, len(in))
	for i, rd := range in {
		clone := *rd
		out[i] = &clone
	}
	return out
}
