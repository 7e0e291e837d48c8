package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/railcore/railcore/internal/api"
	"github.com/railcore/railcore/internal/bootstrap"
	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/logging"
	"github.com/railcore/railcore/internal/middleware"
	"github.com/railcore/railcore/internal/service"
)

func main() {
	log := logging.New(logging.LoadConfigFromEnv())
	log.Info().Msg("Starting railcore API server...")

	ctx := context.Background()

	// Initialize store
	st, err := bootstrap.OpenStore(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	// Initialize cache
	backend, aside, err := bootstrap.OpenCache(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache")
	}
	defer backend.Close()

	enableRateLimit := getEnvBool("ENABLE_RATE_LIMIT", true)
	adminKeyHash := os.Getenv("ADMIN_API_KEY_HASH")

	opts := api.Options{AdminKeyHash: adminKeyHash}

	// The limiter counts in Redis, so it only runs with a Redis cache
	if rs, ok := backend.(*cache.RedisStore); ok && enableRateLimit {
		limits := middleware.Limits{
			PerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 10),
			PerDay:    getEnvInt("RATE_LIMIT_PER_DAY", 10000),
		}
		opts.RateLimiter = middleware.RateLimit(rs.Client(), limits, log)
		log.Info().Int("per_second", limits.PerSecond).Int("per_day", limits.PerDay).Msg("Rate limiting enabled")
	}

	log.Info().
		Bool("admin_key", adminKeyHash != "").
		Bool("rate_limit", opts.RateLimiter != nil).
		Msg("Configuration loaded")

	h := &api.Handlers{
		Stations: service.NewStationService(st, aside, log),
		Trains:   service.NewTrainService(st, aside, log),
		Trips:    service.NewTripService(st, aside, log),
		Store:    st,
		Cache:    aside,
		Log:      log.With().Str("component", "api").Logger(),
	}
	app := api.NewApp(h, opts)

	// Get port from environment
	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Received shutdown signal, shutting down server...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("Server listening")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("Failed to start server")
	}
	log.Info().Msg("Server shut down")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
