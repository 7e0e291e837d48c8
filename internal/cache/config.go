package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds cache configuration. Redis is used when REDIS_URL or
// REDIS_HOST is set; otherwise entries live in process memory.
type Config struct {
	URL        string
	Host       string
	Port       int
	Password   string
	DB         int
	TLSEnabled bool
	// TTL is the fixed expiry of every entry written through the coordinator
	TTL time.Duration
	// Capacity bounds the in-memory backend
	Capacity int
}

// LoadConfigFromEnv loads cache configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "60s"))
	capacity, _ := strconv.Atoi(getEnv("CACHE_CAPACITY", "1000"))

	return &Config{
		URL:        os.Getenv("REDIS_URL"),
		Host:       os.Getenv("REDIS_HOST"),
		Port:       port,
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         db,
		TLSEnabled: getEnv("REDIS_TLS_ENABLED", "false") == "true",
		TTL:        ttl,
		Capacity:   capacity,
	}
}

// UsesRedis reports whether a Redis server is configured
func (c *Config) UsesRedis() bool {
	return c.URL != "" || c.Host != ""
}

// Addr returns host:port for the Redis server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks expiry and capacity are usable
func (c *Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if !c.UsesRedis() && c.Capacity <= 0 {
		return fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
