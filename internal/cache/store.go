package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Store.Get when the key holds no live entry
var ErrMiss = errors.New("cache: miss")

// Store is the key/value backend behind the coordinator. Values are opaque
// encoded bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key. RedisStore expires it after ttl.
	// MemoryStore ignores ttl and uses the expiry it was built with, so
	// callers must pass that same expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by cfg and checks it is reachable
func Open(ctx context.Context, cfg *Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}
	if cfg.UsesRedis() {
		return OpenRedis(ctx, cfg)
	}
	return NewMemoryStore(cfg.Capacity, cfg.TTL), nil
}
