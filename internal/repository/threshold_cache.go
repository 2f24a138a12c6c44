package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ReviewCast/internal/domain/models"
	domrepo "ReviewCast/internal/domain/repository"
	"ReviewCast/pkg/cache"
)

const thresholdKeyPrefix = "threshold"

// CacheThresholdStore keeps thresholds in a cache.Service. Atomicity of
// GetOrSetDefault comes from the backend's SetNX (Redis SET NX, or the memory
// cache's single lock).
type CacheThresholdStore struct {
	c   cache.Service
	now func() time.Time
}

// NewCacheThresholdStore wraps a cache backend.
func NewCacheThresholdStore(c cache.Service) *CacheThresholdStore {
	return &CacheThresholdStore{c: c, now: time.Now}
}

func (s *CacheThresholdStore) Get(ctx context.Context, productID string) (float64, bool, error) {
	var t models.Threshold
	err := s.c.Get(ctx, cache.GenerateKey(thresholdKeyPrefix, productID), &t)
	if errors.Is(err, cache.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get threshold: %w", err)
	}
	return t.Value, true, nil
}

func (s *CacheThresholdStore) GetOrSetDefault(ctx context.Context, productID string, def float64) (float64, error) {
	key := cache.GenerateKey(thresholdKeyPrefix, productID)
	// The read misses only if the key was evicted after SetNX lost.
	for attempt := 0; attempt < 2; attempt++ {
		won, err := s.c.SetNX(ctx, key, models.Threshold{ProductID: productID, Value: def, CreatedAt: s.now().UTC()}, 0)
		if err != nil {
			return 0, fmt.Errorf("set default threshold: %w", err)
		}
		if won {
			return def, nil
		}
		v, ok, err := s.Get(ctx, productID)
		if err != nil {
			return 0, err
		}
		if ok {
			return v, nil
		}
	}
	return 0, fmt.Errorf("threshold for %s vanished during get-or-set", productID)
}

func (s *CacheThresholdStore) Set(ctx context.Context, productID string, value float64) error {
	key := cache.GenerateKey(thresholdKeyPrefix, productID)
	if err := s.c.Set(ctx, key, models.Threshold{ProductID: productID, Value: value, CreatedAt: s.now().UTC()}, 0); err != nil {
		return fmt.Errorf("set threshold: %w", err)
	}
	return nil
}

var _ domrepo.ThresholdStore = (*CacheThresholdStore)(nil)
