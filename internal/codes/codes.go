// Package codes parses and validates the textual identifiers used across the
// railway domain: station codes, train numbers and wagon codes.
package codes

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/railcore/railcore/internal/apperr"
)

const (
	MinStationCode StationCode = 2200000
	MaxStationCode StationCode = 2299999
)

var (
	trainNumberPattern = regexp.MustCompile(`^[0-9]{3}[А-Яа-яІіЄєЇїЁё]$`)
	wagonCodePattern   = regexp.MustCompile(`^[0-9]{2}[КПЛ]$`)
)

// StationCode is a 7-digit station identifier with the fixed "22" prefix
type StationCode int

// ParseStationCode parses a decimal station code
func ParseStationCode(raw string) (StationCode, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, malformed("station code", raw, "must be a 7-digit number starting with 22")
	}
	code := StationCode(n)
	if err := code.Validate(); err != nil {
		return 0, err
	}
	return code, nil
}

// Validate checks the code lies in [2200000, 2299999]
func (c StationCode) Validate() error {
	if c < MinStationCode || c > MaxStationCode {
		return malformed("station code", strconv.Itoa(int(c)), "must be a 7-digit number starting with 22")
	}
	return nil
}

func (c StationCode) String() string {
	return strconv.Itoa(int(c))
}

// TrainNumber is three digits followed by one Cyrillic letter, e.g. "001Л"
type TrainNumber string

// ParseTrainNumber trims raw and checks it against the train number grammar
func ParseTrainNumber(raw string) (TrainNumber, error) {
	s := strings.TrimSpace(raw)
	if !trainNumberPattern.MatchString(s) {
		return "", malformed("train number", raw, "must consist of three digits and a Cyrillic letter (e.g. \"001Л\")")
	}
	return TrainNumber(s), nil
}

func (n TrainNumber) String() string {
	return string(n)
}

// ValidTrainNumber reports whether s is a well-formed train number as is
func ValidTrainNumber(s string) bool {
	return trainNumberPattern.MatchString(s)
}

// ValidWagonCode reports whether s is a well-formed wagon code as is
func ValidWagonCode(s string) bool {
	return wagonCodePattern.MatchString(s)
}

func malformed(field, value, reason string) *apperr.Error {
	return apperr.New(apperr.KindMalformedIdentifier, "invalid %s %q: %s", field, value, reason).WithItems(value)
}
