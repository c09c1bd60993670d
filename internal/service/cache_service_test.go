package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func (failingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("connection refused")
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	var nilSvc *CacheService
	hit, err := nilSvc.Get(ctx, "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, nilSvc.Set(ctx, "k", 1, 0))
	assert.NoError(t, nilSvc.InvalidateTerm(ctx, 2202))

	noRepo := NewCacheService(nil, nil, 0, nil, true)
	assert.False(t, noRepo.Enabled())

	off := NewCacheService(&memCacheRepo{data: map[string][]byte{}}, nil, 0, nil, false)
	assert.False(t, off.Enabled())
	require.NoError(t, off.Set(ctx, "k", 1, 0))
	hit, _ = off.Get(ctx, "k", new(int))
	assert.False(t, hit)
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetricsService()
	svc := NewCacheService(&memCacheRepo{data: map[string][]byte{}}, metrics, time.Minute, nil, true)

	var out int
	hit, err := svc.Get(ctx, sectionCacheKey(2202, 1), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, sectionCacheKey(2202, 1), 42, 0))
	hit, err = svc.Get(ctx, sectionCacheKey(2202, 1), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, out)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
}

func TestCacheServiceInvalidateTermKeepsOtherTerms(t *testing.T) {
	ctx := context.Background()
	repo := &memCacheRepo{data: map[string][]byte{}}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, svc.Set(ctx, sectionCacheKey(2202, 1), 1, 0))
	require.NoError(t, svc.Set(ctx, sectionCacheKey(2205, 1), 2, 0))
	require.NoError(t, svc.InvalidateTerm(ctx, 2202))

	assert.NotContains(t, repo.data, sectionCacheKey(2202, 1))
	assert.Contains(t, repo.data, sectionCacheKey(2205, 1))
}

func TestCacheServiceSurfacesRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewCacheService(failingCacheRepo{}, nil, time.Minute, nil, true)

	hit, err := svc.Get(ctx, "k", new(int))
	assert.False(t, hit)
	assert.Error(t, err)
	assert.Error(t, svc.Set(ctx, "k", 1, 0))
	assert.Error(t, svc.InvalidateTerm(ctx, 2202))
}
