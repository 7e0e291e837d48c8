// Package cache implements the cache-aside protocol in front of the store:
// reads go to the cache first and populate it on a miss, mutations delete
// or overwrite the affected keys. The cache is never authoritative, so every
// cache failure degrades to a store read and is only logged.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is the fixed expiry of cache entries
const DefaultTTL = 60 * time.Second

// Aside coordinates reads and invalidations against a cache Store
type Aside struct {
	store Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewAside creates a coordinator. A non-positive ttl means DefaultTTL.
func NewAside(store Store, ttl time.Duration, log zerolog.Logger) *Aside {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Aside{
		store: store,
		ttl:   ttl,
		log:   log.With().Str("component", "cache").Logger(),
	}
}

// Ping checks the backing store
func (a *Aside) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

// Read returns the cached value under key, or calls load on a miss and
// caches its result. Loader errors are returned unchanged and never cached.
func Read[T any](ctx context.Context, a *Aside, key string, load func(context.Context) (T, error)) (T, error) {
	res := resource(key)

	data, err := a.store.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		decodeErr := json.Unmarshal(data, &v)
		if decodeErr == nil {
			requestsTotal.WithLabelValues(res, resultHit).Inc()
			return v, nil
		}
		a.log.Warn().Err(decodeErr).Str("key", key).Msg("discarding undecodable cache entry")
		requestsTotal.WithLabelValues(res, resultError).Inc()
	case errors.Is(err, ErrMiss):
		requestsTotal.WithLabelValues(res, resultMiss).Inc()
	default:
		a.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to store")
		requestsTotal.WithLabelValues(res, resultError).Inc()
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	a.Populate(ctx, key, v)
	return v, nil
}

// Populate writes value under key with the coordinator's expiry
func (a *Aside) Populate(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}
	if err := a.store.Set(ctx, key, data, a.ttl); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate deletes keys unconditionally
func (a *Aside) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := a.store.Delete(ctx, keys...); err != nil {
		a.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
		return
	}
	for _, k := range keys {
		invalidationsTotal.WithLabelValues(resource(k)).Inc()
	}
	a.log.Debug().Strs("keys", keys).Msg("cache invalidated")
}
