package service

import (
	"context"
	"errors"
	"time"

	"github.com/railcore/railcore/internal/apperr"
	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
	"github.com/railcore/railcore/internal/store"
	"github.com/rs/zerolog"
)

// TripService schedules trips and answers route searches. The train and
// stations named by a trip are not required to exist.
type TripService struct {
	store TripStore
	cache *cache.Aside
	log   zerolog.Logger
}

func NewTripService(s TripStore, c *cache.Aside, log zerolog.Logger) *TripService {
	return &TripService{store: s, cache: c, log: log.With().Str("component", "trips").Logger()}
}

// Create schedules a trip. The (train, departure, arrival, departure time)
// tuple must be unused.
func (s *TripService) Create(ctx context.Context, trip models.NewTrip) (*models.Trip, error) {
	if err := validateRoute(trip.DepartureStationCode, trip.ArrivalStationCode); err != nil {
		return nil, err
	}
	if !codes.ValidTrainNumber(trip.TrainNumber.String()) {
		return nil, apperr.New(apperr.KindMalformedIdentifier, "invalid train number %q", trip.TrainNumber).
			WithItems(trip.TrainNumber.String())
	}
	if !trip.ArrivalTime.After(trip.DepartureTime) {
		return nil, apperr.New(apperr.KindInvalidPayload, "arrival time must be after departure time")
	}

	exists, err := s.store.TripExists(ctx, trip.Key())
	if err != nil {
		return nil, unavailable(err)
	}
	if exists {
		return nil, duplicateTrip(trip)
	}

	created, err := s.store.InsertTrip(ctx, trip)
	if errors.Is(err, store.ErrConflict) {
		return nil, duplicateTrip(trip)
	}
	if err != nil {
		return nil, unavailable(err)
	}

	s.cache.Invalidate(ctx, searchKeysFor(trip)...)
	s.log.Info().
		Int64("id", created.ID).
		Str("train", trip.TrainNumber.String()).
		Int("from", int(trip.DepartureStationCode)).
		Int("to", int(trip.ArrivalStationCode)).
		Time("departure", trip.DepartureTime).
		Msg("trip created")
	return created, nil
}

// Search returns the trips on a route departing on the calendar day (UTC)
// named by date. date is YYYY-MM-DD or a timestamp and is also the cache key
// suffix, exactly as given.
func (s *TripService) Search(ctx context.Context, departure, arrival codes.StationCode, date string) ([]models.Trip, error) {
	if err := validateRoute(departure, arrival); err != nil {
		return nil, err
	}
	day, err := codes.ParseSearchDate(date)
	if err != nil {
		return nil, err
	}
	from, to := store.DayWindow(day)

	return cache.Read(ctx, s.cache, cache.TripSearchKey(departure, arrival, date), func(ctx context.Context) ([]models.Trip, error) {
		trips, err := s.store.SearchTrips(ctx, departure, arrival, from, to)
		if err != nil {
			return nil, unavailable(err)
		}
		if len(trips) == 0 {
			return nil, apperr.New(apperr.KindNoTripsFound,
				"no trips from %d to %d on %s", int(departure), int(arrival), from.Format(time.DateOnly))
		}
		return trips, nil
	})
}

func validateRoute(departure, arrival codes.StationCode) error {
	if departure == arrival {
		return apperr.New(apperr.KindSameStationRoute, "departure and arrival stations must differ").
			WithItems(departure.String())
	}
	if err := departure.Validate(); err != nil {
		return err
	}
	return arrival.Validate()
}

// searchKeysFor lists the search entries a new trip can make stale: the key
// built from the departure time as the client sent it, and the key for the
// departure's calendar day. Searches keyed by any other spelling of the same
// day are not invalidated and expire on their own.
func searchKeysFor(trip models.NewTrip) []string {
	raw := trip.RawDepartureTime
	if raw == "" {
		raw = trip.DepartureTime.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	day := trip.DepartureTime.UTC().Format(time.DateOnly)

	keys := []string{cache.TripSearchKey(trip.DepartureStationCode, trip.ArrivalStationCode, raw)}
	if day != raw {
		keys = append(keys, cache.TripSearchKey(trip.DepartureStationCode, trip.ArrivalStationCode, day))
	}
	return keys
}

func duplicateTrip(trip models.NewTrip) error {
	return apperr.New(apperr.KindDuplicateTrip,
		"train %s already has a trip from %d to %d departing at %s",
		trip.TrainNumber, int(trip.DepartureStationCode), int(trip.ArrivalStationCode),
		trip.DepartureTime.UTC().Format(time.RFC3339))
}
