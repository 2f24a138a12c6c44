package repository

import (
	"context"
	"sync"
	"testing"

	domrepo "ReviewCast/internal/domain/repository"
	"ReviewCast/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func thresholdStores(t *testing.T) map[string]domrepo.ThresholdStore {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	lc := cache.NewLayeredCache(cache.NewMemoryCache())
	t.Cleanup(func() { _ = lc.Close() })

	sq, err := NewSQLiteThresholdStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]domrepo.ThresholdStore{
		"cache":   NewCacheThresholdStore(mc),
		"layered": NewCacheThresholdStore(lc),
		"sqlite":  sq,
	}
}

func TestThresholdStoreGetOrSetDefault(t *testing.T) {
	for name, s := range thresholdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "p")
			require.NoError(t, err)
			assert.False(t, ok)

			v, err := s.GetOrSetDefault(ctx, "p", 15)
			require.NoError(t, err)
			assert.Equal(t, 15.0, v)

			v, err = s.GetOrSetDefault(ctx, "p", 99)
			require.NoError(t, err)
			assert.Equal(t, 15.0, v)

			require.NoError(t, s.Set(ctx, "p", 7.5))
			v, ok, err = s.Get(ctx, "p")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 7.5, v)
		})
	}
}

func TestThresholdStoreConcurrentDefault(t *testing.T) {
	for name, s := range thresholdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got := make([]float64, 20)
			var wg sync.WaitGroup
			for i := range got {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					v, err := s.GetOrSetDefault(ctx, "shared", float64(i+1))
					if err == nil {
						got[i] = v
					}
				}(i)
			}
			wg.Wait()

			for _, v := range got {
				assert.Equal(t, got[0], v)
			}
			assert.NotZero(t, got[0])
		})
	}
}
