// Package bootstrap opens the store and cache backends selected by the
// environment. Commands own what it returns and close it on shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/db"
	"github.com/railcore/railcore/internal/service"
	"github.com/railcore/railcore/internal/store/memory"
	"github.com/railcore/railcore/internal/store/postgres"
	"github.com/railcore/railcore/internal/store/sqlite"
	"github.com/rs/zerolog"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// StoreDriver returns the configured backend name (STORE_DRIVER)
func StoreDriver() string {
	return getEnv("STORE_DRIVER", DriverPostgres)
}

// OpenStore opens the backend named by STORE_DRIVER
func OpenStore(ctx context.Context, log zerolog.Logger) (service.Store, error) {
	driver := StoreDriver()

	switch driver {
	case DriverPostgres:
		cfg := db.LoadConfigFromEnv()
		pool, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("driver", driver).
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Msg("database connection established")
		return postgres.NewStore(pool, cfg.QueryTimeout), nil

	case DriverSQLite:
		path := getEnv("SQLITE_PATH", "railcore.db")
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", driver).Str("path", path).Msg("database opened")
		return s, nil

	case DriverMemory:
		log.Warn().Str("driver", driver).Msg("using in-memory store, data is lost on exit")
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or memory)", driver)
	}
}

// OpenCache opens the cache backend and wraps it in the cache-aside coordinator
func OpenCache(ctx context.Context, log zerolog.Logger) (cache.Store, *cache.Aside, error) {
	cfg := cache.LoadConfigFromEnv()
	backend, err := cache.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.UsesRedis() {
		log.Info().Str("addr", cfg.Addr()).Dur("ttl", cfg.TTL).Msg("redis connection established")
	} else {
		log.Info().Int("capacity", cfg.Capacity).Dur("ttl", cfg.TTL).Msg("using in-process cache")
	}

	return backend, cache.NewAside(backend, cfg.TTL, log), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
