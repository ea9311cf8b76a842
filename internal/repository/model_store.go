package repository

import (
	"context"
	"time"

	drepo "EdgePulse/internal/domain/repository"
	icache "EdgePulse/internal/service/cache"
)

// CacheModelStore persists serialized model state through a BytesCache,
// Redis in production and the in-process TTL cache in tests.
type CacheModelStore struct {
	c icache.BytesCache
}

// NewCacheModelStore creates the store.
func NewCacheModelStore(c icache.BytesCache) *CacheModelStore {
	return &CacheModelStore{c: c}
}

func (s *CacheModelStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	return s.c.GetBytes(ctx, key)
}

func (s *CacheModelStore) Save(ctx context.Context, key string, state []byte, ttl time.Duration) error {
	return s.c.SetBytes(ctx, key, state, ttl)
}

var _ drepo.ModelStore = (*CacheModelStore)(nil)
