package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"

	"github.com/rs/zerolog"
)

type FailoverViewCache struct {
	primary   domain.ViewCache
	fallback  domain.ViewCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverViewCache(primary, fallback domain.ViewCache, logger *zerolog.Logger) *FailoverViewCache {
	return &FailoverViewCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverViewCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.isDown.Load() {
		val, err := r.primary.Get(ctx, key)
		if err == nil {
			return val, nil
		}
		r.logger.Error().Err(err).Msg("Primary view cache failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		val, err := r.primary.Get(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return val, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.Get(ctx, key)
}

func (r *FailoverViewCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary view cache failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.Set(ctx, key, value, ttl)
}

func (r *FailoverViewCache) Delete(ctx context.Context, keys ...string) error {
	if !r.isDown.Load() {
		err := r.primary.Delete(ctx, keys...)
		if err == nil {
			// Keep the fallback coherent: a stale entry there would
			// resurface if the primary goes down later.
			r.fallback.Delete(ctx, keys...)
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary view cache failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.Delete(ctx, keys...)
}
