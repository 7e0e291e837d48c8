// Package service holds the railway core: train composition, trip
// uniqueness and station administration. Every invariant is checked
// against the store before anything is written; the cache is consulted
// only for reads and is told about successful writes afterwards.
package service

import (
	"context"
	"time"

	"github.com/railcore/railcore/internal/apperr"
	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
)

// StationStore persists stations
type StationStore interface {
	InsertStation(ctx context.Context, name string, code codes.StationCode) (*models.Station, error)
	FindAllStations(ctx context.Context) ([]models.Station, error)
	FindStationByCode(ctx context.Context, code codes.StationCode) (*models.Station, error)
}

// TrainStore persists trains. ReplaceTrainWagons writes the full list atomically.
type TrainStore interface {
	FindTrainByNumber(ctx context.Context, number codes.TrainNumber) (*models.Train, error)
	InsertTrain(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) (*models.Train, error)
	ReplaceTrainWagons(ctx context.Context, number codes.TrainNumber, wagons []codes.WagonCode) error
}

// TripStore persists trips
type TripStore interface {
	TripExists(ctx context.Context, key models.TripKey) (bool, error)
	InsertTrip(ctx context.Context, trip models.NewTrip) (*models.Trip, error)
	SearchTrips(ctx context.Context, departure, arrival codes.StationCode, from, to time.Time) ([]models.Trip, error)
}

// Store is everything a backend provides
type Store interface {
	StationStore
	TrainStore
	TripStore
	Ping(ctx context.Context) error
	Close()
}

// unavailable classifies an unexpected store failure. The cause is kept for
// logging and never shown to clients.
func unavailable(err error) error {
	return apperr.Wrap(apperr.KindStoreUnavailable, err, "store unavailable")
}
