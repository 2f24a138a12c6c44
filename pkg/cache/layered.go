package cache

import (
	"context"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: shared backend,
// usually Redis). L1 entries expire after LocalTTL so writes made by other
// instances become visible within that window.
type LayeredCache struct {
	memCache *MemoryCache
	remote   Service
	localTTL time.Duration
}

// LayeredOption configures a layered cache.
type LayeredOption func(*LayeredConfig)

// LayeredConfig holds layered cache configuration.
type LayeredConfig struct {
	MemoryMaxSize int
	LocalTTL      time.Duration
}

// WithLayeredMemorySize bounds the number of L1 keys.
func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) {
		c.MemoryMaxSize = size
	}
}

// WithLocalTTL sets how long L1 keeps an entry.
func WithLocalTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) {
		c.LocalTTL = ttl
	}
}

// NewLayeredCache creates a layered cache in front of remote.
func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		LocalTTL:      30 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memCache: NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote:   remote,
		localTTL: cfg.LocalTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	// Write-through: remote first, then memory
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, value, lc.ttl(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memCache.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}

	_ = lc.memCache.Set(ctx, key, deref(dest), lc.localTTL)
	return nil
}

// SetNX is decided by the remote layer alone; L1 only learns the winner.
func (lc *LayeredCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	won, err := lc.remote.SetNX(ctx, key, value, expiration)
	if err != nil {
		return false, err
	}
	if won {
		_ = lc.memCache.Set(ctx, key, value, lc.ttl(expiration))
	}
	return won, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.remote.Exists(ctx, keys...)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	return lc.remote.Close()
}

func (lc *LayeredCache) ttl(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.localTTL {
		return expiration
	}
	return lc.localTTL
}

// deref turns a Get destination back into a value encode stores verbatim.
func deref(dest interface{}) interface{} {
	switch d := dest.(type) {
	case *string:
		return *d
	case *[]byte:
		return *d
	default:
		return dest
	}
}

var _ Service = (*LayeredCache)(nil)
