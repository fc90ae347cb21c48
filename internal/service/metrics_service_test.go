package service

import (
	"context"
	"testing"
	"time"

	clientmodel "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func gatherFamily(t *testing.T, m *MetricsService, name string) *clientmodel.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func TestMetricsServiceObserveGeneration(t *testing.T) {
	m := NewMetricsService()
	m.ObserveGeneration("success", 3, 200*time.Millisecond)
	m.ObserveGeneration("infeasible", 30, time.Second)
	m.ObserveGeneration("cancelled", 0, time.Millisecond)

	total := gatherFamily(t, m, "timetable_generations_total")
	require.NotNil(t, total)
	assert.Len(t, total.GetMetric(), 3)

	attempts := gatherFamily(t, m, "timetable_generation_attempts")
	require.NotNil(t, attempts)
	assert.Equal(t, uint64(2), attempts.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveGeneration("success", 1, time.Second)
		m.ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)
		m.RecordCacheOperation(true, time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

type cacheRepoStub struct {
	values  map[string]bool
	deleted []string
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.values[key] {
		return appErrors.ErrCacheMiss
	}
	return nil
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.values[key] = true
	return nil
}

func (c *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	return nil
}

func TestCacheServiceRecordsHitRatio(t *testing.T) {
	m := NewMetricsService()
	repo := &cacheRepoStub{values: map[string]bool{}}
	cache := NewCacheService(repo, m, time.Minute, nil, true)

	hit, err := cache.Get(context.Background(), "k", nil)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	hit, err = cache.Get(context.Background(), "k", nil)
	require.NoError(t, err)
	assert.True(t, hit)
	require.NoError(t, cache.Delete(context.Background(), "k"))
	assert.Equal(t, []string{"k"}, repo.deleted)

	ratio := gatherFamily(t, m, "cache_hit_ratio")
	require.NotNil(t, ratio)
	assert.InDelta(t, 0.5, ratio.GetMetric()[0].GetGauge().GetValue(), 0.0001)

	disabled := NewCacheService(repo, m, time.Minute, nil, false)
	hit, err = disabled.Get(context.Background(), "k", nil)
	assert.NoError(t, err)
	assert.False(t, hit)
}
