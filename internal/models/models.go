package models

import (
	"time"

	"github.com/railcore/railcore/internal/codes"
)

// Station represents a railway station
type Station struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Code      codes.StationCode `json:"code"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Train represents a train and its wagons in canonical order
type Train struct {
	ID          int64             `json:"id"`
	TrainNumber codes.TrainNumber `json:"trainNumber"`
	Wagons      []codes.WagonCode `json:"wagons"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Trip represents one scheduled run of a train between two stations
type Trip struct {
	ID                   int64             `json:"id"`
	TrainNumber          codes.TrainNumber `json:"trainNumber"`
	DepartureStationCode codes.StationCode `json:"departureStationCode"`
	ArrivalStationCode   codes.StationCode `json:"arrivalStationCode"`
	DepartureTime        time.Time         `json:"departureTime"`
	ArrivalTime          time.Time         `json:"arrivalTime"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// TripKey is the tuple that identifies a trip for uniqueness purposes
type TripKey struct {
	TrainNumber          codes.TrainNumber
	DepartureStationCode codes.StationCode
	ArrivalStationCode   codes.StationCode
	DepartureTime        time.Time
}

// NewTrip holds the fields needed to schedule a trip
type NewTrip struct {
	TrainNumber          codes.TrainNumber
	DepartureStationCode codes.StationCode
	ArrivalStationCode   codes.StationCode
	DepartureTime        time.Time
	ArrivalTime          time.Time
	// RawDepartureTime is the departure time exactly as the client sent it.
	// Search cache keys are built from client strings, so invalidation needs it.
	RawDepartureTime string
}

// Key returns the uniqueness tuple of the trip
func (t NewTrip) Key() TripKey {
	return TripKey{
		TrainNumber:          t.TrainNumber,
		DepartureStationCode: t.DepartureStationCode,
		ArrivalStationCode:   t.ArrivalStationCode,
		DepartureTime:        t.DepartureTime,
	}
}

// StationImport is one row of a station CSV import
type StationImport struct {
	Name string
	Code codes.StationCode
}
