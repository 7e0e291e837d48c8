// Package memory provides an in-process store with the same semantics as the
// SQL backends. It backs STORE_DRIVER=memory and the service and API tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
	"github.com/railcore/railcore/internal/store"
)

// Store keeps every entity in maps guarded by a single mutex.
// Each method is atomic; sequences of calls are not.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	stations map[codes.StationCode]models.Station
	trains   map[codes.TrainNumber]models.Train
	trips    []models.Trip
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		stations: make(map[codes.StationCode]models.Station),
		trains:   make(map[codes.TrainNumber]models.Train),
	}
}

// WithClock replaces the timestamp source (tests)
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *Store) Close() {}

// InsertStation stores a station; code and name must both be unused
func (s *Store) InsertStation(ctx context.Context, name string, code codes.StationCode) (*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stations[code]; ok {
		return nil, store.ErrConflict
	}
	for _, st := range s.stations {
		if st.Name == name {
			return nil, store.ErrConflict
		}
	}

	st := models.Station{ID: s.id(), Name: name, Code: code, CreatedAt: s.now()}
	s.stations[code] = st
	return &st, nil
}

// FindAllStations returns every station ordered by id
func (s *Store) FindAllStations(ctx context.Context) ([]models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindStationByCode returns store.ErrNotFound for unknown codes
func (s *Store) FindStationByCode(ctx context.Context, code codes.StationCode) (*models.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stations[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

// FindTrainByNumber returns store.ErrNotFound for unknown trains
func (s *Store) FindTrainByNumber(ctx context.Context, number codes.TrainNumber) (*models.Train, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trains[number]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.Wagons = slices.Clone(t.Wagons)
	return &t, nil
}

// InsertTrain stores a train with wagons in the given order
func (s *Store) InsertTrain(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) (*models.Train, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trains[number]; ok {
		return nil, store.ErrConflict
	}

	now := s.now()
	t := models.Train{
		ID:          s.id(),
		TrainNumber: number,
		Wagons:      slices.Clone(wagons),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.trains[number] = t
	t.Wagons = slices.Clone(t.Wagons)
	return &t, nil
}

// ReplaceTrainWagons overwrites the full wagon list of a train
func (s *Store) ReplaceTrainWagons(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trains[number]
	if !ok {
		return store.ErrNotFound
	}
	t.Wagons = slices.Clone(wagons)
	t.UpdatedAt = s.now()
	s.trains[number] = t
	return nil
}

// TripExists reports whether a trip with the same key is stored
func (s *Store) TripExists(ctx context.Context, key models.TripKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findTrip(key), nil
}

func (s *Store) findTrip(key models.TripKey) bool {
	for _, t := range s.trips {
		if t.TrainNumber == key.TrainNumber &&
			t.DepartureStationCode == key.DepartureStationCode &&
			t.ArrivalStationCode == key.ArrivalStationCode &&
			t.DepartureTime.Equal(key.DepartureTime) {
			return true
		}
	}
	return false
}

// InsertTrip stores a trip; the trip key must be unused
func (s *Store) InsertTrip(ctx context.Context, trip models.NewTrip) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findTrip(trip.Key()) {
		return nil, store.ErrConflict
	}

	now := s.now()
	t := models.Trip{
		ID:                   s.id(),
		TrainNumber:          trip.TrainNumber,
		DepartureStationCode: trip.DepartureStationCode,
		ArrivalStationCode:   trip.ArrivalStationCode,
		DepartureTime:        trip.DepartureTime.UTC(),
		ArrivalTime:          trip.ArrivalTime.UTC(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.trips = append(s.trips, t)
	return &t, nil
}

// SearchTrips returns trips on the route departing in [from, to), by departure time
func (s *Store) SearchTrips(ctx context.Context, departure, arrival codes.StationCode, from, to time.Time) ([]models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Trip
	for _, t := range s.trips {
		if t.DepartureStationCode != departure || t.ArrivalStationCode != arrival {
			continue
		}
		if t.DepartureTime.Before(from) || !t.DepartureTime.Before(to) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}
