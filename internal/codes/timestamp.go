package codes

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/railcore/railcore/internal/apperr"
)

var (
	timestampPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?Z?$`)
	stationNamePattern = regexp.MustCompile(`^[а-яА-ЯёЁіІїЇєЄ0-9\-']+$`)
)

const MinStationNameLength = 3

// ValidTimestamp reports whether s has the accepted timestamp shape:
// seconds precision, optional milliseconds, optional trailing Z.
func ValidTimestamp(s string) bool {
	return timestampPattern.MatchString(s)
}

// ParseTimestamp parses a trip timestamp. A missing zone designator means UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	if !ValidTimestamp(raw) {
		return time.Time{}, apperr.New(apperr.KindInvalidPayload,
			"invalid timestamp %q: expected YYYY-MM-DDTHH:MM:SS[.mmm][Z]", raw).WithItems(raw)
	}
	t, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(raw, "Z"))
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindInvalidPayload, err, "invalid timestamp "+raw).WithItems(raw)
	}
	return t.UTC(), nil
}

// ParseSearchDate parses a search date given either as YYYY-MM-DD or as a
// full timestamp and returns the start of that calendar day in UTC.
func ParseSearchDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	if t, err := ParseTimestamp(s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, apperr.New(apperr.KindInvalidPayload,
		"invalid date %q: expected YYYY-MM-DD or an ISO 8601 timestamp", raw).WithItems(raw)
}

// ValidateStationName checks the station name grammar: at least three
// characters, Cyrillic letters, digits, hyphens and apostrophes only.
func ValidateStationName(name string) error {
	if utf8.RuneCountInString(name) < MinStationNameLength {
		return apperr.New(apperr.KindInvalidPayload, "station name must be at least %d characters", MinStationNameLength).WithItems(name)
	}
	if !stationNamePattern.MatchString(name) {
		return apperr.New(apperr.KindInvalidPayload,
			"station name %q may contain only Cyrillic letters, digits, hyphens and apostrophes", name).WithItems(name)
	}
	return nil
}
