package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/models"
	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

type stubCacheRepo struct {
	mu          sync.Mutex
	store       map[string][]byte
	invalidated []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, pattern)
	for key := range s.store {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.store, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &stubCacheRepo{}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "catalog:a", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "catalog:a", []string{"x"}, 0))
	hit, err = svc.Get(ctx, "catalog:a", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"x"}, out)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)

	require.NoError(t, svc.Invalidate(ctx, "catalog:*"))
	hit, err = svc.Get(ctx, "catalog:a", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	svc := NewCacheService(nil, nil, 0, nil, true)
	assert.False(t, svc.Enabled())

	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, svc.Invalidate(context.Background(), "*"))
}

func TestRememberLoadsOnceAndCaches(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	calls := 0
	load := func(context.Context) (*CatalogPage, error) {
		calls++
		return &CatalogPage{Pagination: &models.Pagination{Page: 1, PageSize: 10, TotalCount: 3}}, nil
	}

	first, hit, err := Remember(context.Background(), svc, "catalog:x", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := Remember(context.Background(), svc, "catalog:x", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Pagination.TotalCount, second.Pagination.TotalCount)
}

func TestRememberSharesConcurrentLoads(t *testing.T) {
	svc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	var calls atomic.Int32
	gate := make(chan struct{})
	load := func(context.Context) (*CatalogPage, error) {
		calls.Add(1)
		<-gate
		return &CatalogPage{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := Remember(context.Background(), svc, "dash:admin", 0, load)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestRememberWithoutCacheAlwaysLoads(t *testing.T) {
	var svc *CacheService
	_, hit, err := Remember(context.Background(), svc, "k", 0, func(context.Context) (*CatalogPage, error) {
		return nil, errors.New("down")
	})
	assert.False(t, hit)
	assert.EqualError(t, err, "down")
}

func TestHashKeyStable(t *testing.T) {
	type q struct {
		Search string
		Page   int
	}
	a := HashKey("catalog", q{Search: "stem", Page: 1})
	b := HashKey("catalog", q{Search: "stem", Page: 1})
	c := HashKey("catalog", q{Search: "stem", Page: 2})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^catalog:[0-9a-f]{24}$`, a)
}

func TestMetricsServiceCatalogSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveCatalogQuery(2*time.Millisecond, 3)
	m.ObserveCatalogQuery(4*time.Millisecond, 0)
	m.RecordExportJob("csv", "FINISHED")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.CatalogQueries)
	assert.InDelta(t, 3.0, snap.AverageCatalogQueryMs, 0.001)

	var nilMetrics *MetricsService
	assert.NotPanics(t, func() {
		nilMetrics.ObserveCatalogQuery(time.Millisecond, 1)
		nilMetrics.RecordExportJob("pdf", "FAILED")
	})
}
