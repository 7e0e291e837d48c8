package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/railcore/railcore/internal/bootstrap"
	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/logging"
	"github.com/railcore/railcore/internal/models"
	"github.com/rs/zerolog"
)

// stationImporter is implemented by the persistent stores
type stationImporter interface {
	ImportStations(ctx context.Context, rows []models.StationImport) (int, error)
}

func main() {
	// Command-line flags
	csvPath := flag.String("csv", "", "Path to a stations CSV file with name,code rows (required)")
	dryRun := flag.Bool("dry-run", false, "Validate the file without writing anything")

	flag.Parse()

	// Validate required flags
	if *csvPath == "" {
		fmt.Println("Usage: railcore-import --csv=<stations.csv> [--dry-run]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := logging.New(logging.LoadConfigFromEnv())

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *csvPath).Msg("Failed to open CSV file")
	}
	defer f.Close()

	rows, err := parseStations(f)
	if err != nil {
		log.Fatal().Err(err).Str("file", *csvPath).Msg("Invalid CSV file")
	}
	log.Info().Int("rows", len(rows)).Str("file", *csvPath).Msg("CSV parsed")

	if *dryRun {
		log.Info().Msg("Dry run, nothing written")
		return
	}

	ctx := context.Background()
	if err := run(ctx, log, rows); err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}
}

func run(ctx context.Context, log zerolog.Logger, rows []models.StationImport) error {
	startTime := time.Now()

	st, err := bootstrap.OpenStore(ctx, log)
	if err != nil {
		return err
	}
	defer st.Close()

	importer, ok := st.(stationImporter)
	if !ok {
		return fmt.Errorf("STORE_DRIVER %q does not support imports", bootstrap.StoreDriver())
	}

	inserted, err := importer.ImportStations(ctx, rows)
	if err != nil {
		return err
	}

	// Cached station lists and lookups predate the import
	backend, aside, err := bootstrap.OpenCache(ctx, log)
	if err != nil {
		log.Warn().Err(err).Msg("Cache unavailable, cached stations expire on their own")
	} else {
		defer backend.Close()
		aside.Invalidate(ctx, stationKeys(rows)...)
	}

	log.Info().
		Int("inserted", inserted).
		Int("skipped", len(rows)-inserted).
		Dur("duration", time.Since(startTime)).
		Msg("Import completed successfully")
	return nil
}

// stationKeys lists the cache entries an import can make stale
func stationKeys(rows []models.StationImport) []string {
	keys := make([]string, 0, len(rows)+1)
	keys = append(keys, cache.StationsAllKey())
	for _, r := range rows {
		keys = append(keys, cache.StationKey(r.Code))
	}
	return keys
}
