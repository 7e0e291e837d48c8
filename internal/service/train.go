package service

import (
	"context"
	"errors"
	"strings"

	"github.com/railcore/railcore/internal/apperr"
	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
	"github.com/railcore/railcore/internal/store"
	"github.com/railcore/railcore/internal/wagons"
	"github.com/rs/zerolog"
)

// TrainService manages train composition. Each mutation reads the full
// wagon list from the store, validates the change against it and writes the
// full canonical list back. Concurrent mutations of the same train are not
// serialised: two writers that read the same list can lose one update.
type TrainService struct {
	store TrainStore
	cache *cache.Aside
	log   zerolog.Logger
}

func NewTrainService(s TrainStore, c *cache.Aside, log zerolog.Logger) *TrainService {
	return &TrainService{store: s, cache: c, log: log.With().Str("component", "trains").Logger()}
}

// Create registers a train with its wagons in canonical order
func (s *TrainService) Create(ctx context.Context, rawNumber string, rawWagons []string) (*models.Train, error) {
	number, err := codes.ParseTrainNumber(rawNumber)
	if err != nil {
		return nil, err
	}
	list, err := codes.ParseWagonCodes(rawWagons)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.New(apperr.KindEmptyTrainRejected, "train %s must have at least one wagon", number)
	}
	if dups := wagons.Duplicates(list); len(dups) > 0 {
		return nil, duplicateWagons(dups)
	}

	_, err = s.store.FindTrainByNumber(ctx, number)
	switch {
	case err == nil:
		return nil, trainExists(number)
	case !errors.Is(err, store.ErrNotFound):
		return nil, unavailable(err)
	}

	if _, err := s.store.InsertTrain(ctx, number, wagons.CanonicalOrder(list)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, trainExists(number)
		}
		return nil, unavailable(err)
	}

	t, err := s.reload(ctx, number)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("train", number.String()).Strs("wagons", codes.Strings(t.Wagons)).Msg("train created")
	return t, nil
}

// AddWagons appends wagons the train does not have yet and re-orders the result
func (s *TrainService) AddWagons(ctx context.Context, rawNumber string, rawWagons []string) (*models.Train, error) {
	number, added, err := parseChange(rawNumber, rawWagons)
	if err != nil {
		return nil, err
	}

	current, err := s.find(ctx, number)
	if err != nil {
		return nil, err
	}
	if dups := wagons.Duplicates(added); len(dups) > 0 {
		return nil, duplicateWagons(dups)
	}
	if overlap := wagons.Overlap(current.Wagons, added); len(overlap) > 0 {
		return nil, duplicateWagons(overlap)
	}

	merged := wagons.CanonicalOrder(wagons.Union(current.Wagons, added))
	if err := s.replace(ctx, number, merged); err != nil {
		return nil, err
	}

	t, err := s.reload(ctx, number)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("train", number.String()).Strs("added", codes.Strings(added)).Msg("wagons added")
	return t, nil
}

// RemoveWagons drops wagons from the train. At least one wagon must remain.
func (s *TrainService) RemoveWagons(ctx context.Context, rawNumber string, rawWagons []string) (*models.Train, error) {
	number, removed, err := parseChange(rawNumber, rawWagons)
	if err != nil {
		return nil, err
	}

	current, err := s.find(ctx, number)
	if err != nil {
		return nil, err
	}
	if missing := wagons.Missing(current.Wagons, removed); len(missing) > 0 {
		return nil, apperr.New(apperr.KindUnknownWagons,
			"wagons %s are not part of train %s", strings.Join(codes.Strings(missing), ", "), number).
			WithItems(codes.Strings(missing)...)
	}

	remainder := wagons.Subtract(current.Wagons, removed)
	if len(remainder) == 0 {
		return nil, apperr.New(apperr.KindEmptyTrainRejected, "removing these wagons would leave train %s empty", number)
	}

	if err := s.replace(ctx, number, wagons.CanonicalOrder(remainder)); err != nil {
		return nil, err
	}

	t, err := s.reload(ctx, number)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("train", number.String()).Strs("removed", codes.Strings(removed)).Msg("wagons removed")
	return t, nil
}

// Get returns a train, from the cache when possible
func (s *TrainService) Get(ctx context.Context, rawNumber string) (*models.Train, error) {
	number, err := codes.ParseTrainNumber(rawNumber)
	if err != nil {
		return nil, err
	}
	return cache.Read(ctx, s.cache, cache.TrainKey(number), func(ctx context.Context) (*models.Train, error) {
		return s.find(ctx, number)
	})
}

func parseChange(rawNumber string, rawWagons []string) (codes.TrainNumber, []codes.WagonCode, error) {
	number, err := codes.ParseTrainNumber(rawNumber)
	if err != nil {
		return "", nil, err
	}
	list, err := codes.ParseWagonCodes(rawWagons)
	if err != nil {
		return "", nil, err
	}
	if len(list) == 0 {
		return "", nil, apperr.New(apperr.KindInvalidPayload, "at least one wagon must be given")
	}
	return number, list, nil
}

// find reads a train from the store, never from the cache
func (s *TrainService) find(ctx context.Context, number codes.TrainNumber) (*models.Train, error) {
	t, err := s.store.FindTrainByNumber(ctx, number)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindTrainNotFound, "train %s not found", number)
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return t, nil
}

func (s *TrainService) replace(ctx context.Context, number codes.TrainNumber, list []codes.WagonCode) error {
	err := s.store.ReplaceTrainWagons(ctx, number, list)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.KindTrainNotFound, "train %s not found", number)
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// reload re-reads a train after a write and refreshes its cache entry
func (s *TrainService) reload(ctx context.Context, number codes.TrainNumber) (*models.Train, error) {
	t, err := s.store.FindTrainByNumber(ctx, number)
	if err != nil {
		return nil, unavailable(err)
	}
	s.cache.Populate(ctx, cache.TrainKey(number), t)
	return t, nil
}

func trainExists(number codes.TrainNumber) error {
	return apperr.New(apperr.KindTrainAlreadyExists, "train %s already exists", number)
}

func duplicateWagons(dups []codes.WagonCode) error {
	return apperr.New(apperr.KindDuplicateWagons, "duplicate wagons: %s", strings.Join(codes.Strings(dups), ", ")).
		WithItems(codes.Strings(dups)...)
}
