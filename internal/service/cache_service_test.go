package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())

	svc := NewCacheService(&stubCacheRepo{}, nil, 0, nil, false)
	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Equal(t, 5*time.Minute, svc.defaultTTL)
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	metrics := NewMetricsService()
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, statisticsCacheKey, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, statisticsCacheKey, map[string]int{"a": 1}, 0))
	hit, err = svc.Get(ctx, statisticsCacheKey, &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	gathered := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				gathered[family.GetName()] = metric.GetCounter().GetValue()
			}
			if metric.GetGauge() != nil {
				gathered[family.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, gathered["cache_hits_total"])
	assert.Equal(t, 1.0, gathered["cache_misses_total"])
	assert.Equal(t, 0.5, gathered["cache_hit_ratio"])

	svc.InvalidateLedger(ctx)
	assert.Equal(t, 1, repo.deletes)
	hit, err = svc.Get(ctx, statisticsCacheKey, &out)
	require.NoError(t, err)
	assert.False(t, hit)
}
