package service

import (
	"context"
	"errors"

	"github.com/railcore/railcore/internal/apperr"
	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
	"github.com/railcore/railcore/internal/store"
	"github.com/rs/zerolog"
)

// StationService creates and looks up stations
type StationService struct {
	store StationStore
	cache *cache.Aside
	log   zerolog.Logger
}

func NewStationService(s StationStore, c *cache.Aside, log zerolog.Logger) *StationService {
	return &StationService{store: s, cache: c, log: log.With().Str("component", "stations").Logger()}
}

// Create registers a station. Name and code must both be unused.
func (s *StationService) Create(ctx context.Context, name string, code codes.StationCode) (*models.Station, error) {
	if err := codes.ValidateStationName(name); err != nil {
		return nil, err
	}
	if err := code.Validate(); err != nil {
		return nil, err
	}

	st, err := s.store.InsertStation(ctx, name, code)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.New(apperr.KindStationAlreadyExists,
			"station with name %q or code %d already exists", name, int(code))
	}
	if err != nil {
		return nil, unavailable(err)
	}

	s.cache.Invalidate(ctx, cache.StationsAllKey())
	s.log.Info().Int("code", int(code)).Str("name", name).Msg("station created")
	return st, nil
}

// List returns every station. An empty list is not an error.
func (s *StationService) List(ctx context.Context) ([]models.Station, error) {
	return cache.Read(ctx, s.cache, cache.StationsAllKey(), func(ctx context.Context) ([]models.Station, error) {
		stations, err := s.store.FindAllStations(ctx)
		if err != nil {
			return nil, unavailable(err)
		}
		return stations, nil
	})
}

// GetByCode returns one station
func (s *StationService) GetByCode(ctx context.Context, code codes.StationCode) (*models.Station, error) {
	if err := code.Validate(); err != nil {
		return nil, err
	}
	return cache.Read(ctx, s.cache, cache.StationKey(code), func(ctx context.Context) (*models.Station, error) {
		st, err := s.store.FindStationByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindStationNotFound, "station %d not found", int(code))
		}
		if err != nil {
			return nil, unavailable(err)
		}
		return st, nil
	})
}
