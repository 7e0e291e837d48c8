// Package store holds what every persistence backend shares: the sentinel
// errors services translate into domain kinds, and helpers for the trip
// search window.
package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by keyed lookups and updates that match no row
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a unique constraint
	ErrConflict = errors.New("store: unique constraint violated")
)

// DayWindow returns the UTC calendar day containing t as a half-open range
func DayWindow(t time.Time) (from, to time.Time) {
	u := t.UTC()
	from = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}
