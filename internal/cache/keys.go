package cache

import (
	"fmt"

	"github.com/railcore/railcore/internal/codes"
)

// StationsAllKey holds the full station list
func StationsAllKey() string {
	return "stations:all"
}

// StationKey holds one station looked up by code
func StationKey(code codes.StationCode) string {
	return fmt.Sprintf("station:code:%d", int(code))
}

// TrainKey holds one train with its wagons
func TrainKey(number codes.TrainNumber) string {
	return fmt.Sprintf("train:%s", number)
}

// TripSearchKey holds one search result. date is the client's raw string.
func TripSearchKey(departure, arrival codes.StationCode, date string) string {
	return fmt.Sprintf("trips:search:%d:%d:%s", int(departure), int(arrival), date)
}
