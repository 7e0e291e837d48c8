package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/railcore/railcore/internal/bootstrap"
	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/logging"
	"github.com/railcore/railcore/internal/service"
)

func main() {
	trainList := flag.String("trains", "", "Comma-separated train numbers to preload as well (e.g. 001Л,002К)")
	flag.Parse()

	log := logging.New(logging.LoadConfigFromEnv())
	log.Info().Msg("railcore cache warm-up")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := bootstrap.OpenStore(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	backend, aside, err := bootstrap.OpenCache(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache")
	}
	defer backend.Close()

	if _, ok := backend.(*cache.RedisStore); !ok {
		log.Warn().Msg("No Redis configured, the in-process cache is discarded on exit")
	}

	startTime := time.Now()
	stations := service.NewStationService(st, aside, log)
	trains := service.NewTrainService(st, aside, log)

	// Drop what is there so every entry is reloaded from the store
	aside.Invalidate(ctx, cache.StationsAllKey())
	all, err := stations.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load stations")
	}

	for _, s := range all {
		aside.Invalidate(ctx, cache.StationKey(s.Code))
		if _, err := stations.GetByCode(ctx, s.Code); err != nil {
			log.Error().Err(err).Int("code", int(s.Code)).Msg("Failed to preload station")
		}
	}

	warmedTrains := 0
	for _, raw := range splitList(*trainList) {
		if _, err := trains.Get(ctx, raw); err != nil {
			log.Error().Err(err).Str("train", raw).Msg("Failed to preload train")
			continue
		}
		warmedTrains++
	}

	log.Info().
		Int("stations", len(all)).
		Int("trains", warmedTrains).
		Dur("duration", time.Since(startTime)).
		Msg("Cache warm-up completed")

	if warmedTrains < len(splitList(*trainList)) {
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
