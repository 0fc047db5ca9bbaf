package repository

import (
	"context"
	"sync"
	"time"
)

type MemoryViewCache struct {
	entries sync.Map
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryViewCache() *MemoryViewCache {
	return &MemoryViewCache{}
}

func (r *MemoryViewCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, ok := r.entries.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		r.entries.Delete(key)
		return nil, nil
	}
	return entry.value, nil
}

func (r *MemoryViewCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.entries.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (r *MemoryViewCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		r.entries.Delete(key)
	}
	return nil
}
