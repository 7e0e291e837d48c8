package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can react without matching messages
type Kind string

const (
	KindMalformedIdentifier  Kind = "malformed_identifier"
	KindInvalidPayload       Kind = "invalid_payload"
	KindDuplicateWagons      Kind = "duplicate_wagons"
	KindUnknownWagons        Kind = "unknown_wagons"
	KindEmptyTrainRejected   Kind = "empty_train_rejected"
	KindTrainAlreadyExists   Kind = "train_already_exists"
	KindTrainNotFound        Kind = "train_not_found"
	KindStationAlreadyExists Kind = "station_already_exists"
	KindStationNotFound      Kind = "station_not_found"
	KindNoTripsFound         Kind = "no_trips_found"
	KindSameStationRoute     Kind = "same_station_route"
	KindDuplicateTrip        Kind = "duplicate_trip"
	KindStoreUnavailable     Kind = "store_unavailable"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrMalformedIdentifier  = &Error{Kind: KindMalformedIdentifier}
	ErrInvalidPayload       = &Error{Kind: KindInvalidPayload}
	ErrDuplicateWagons      = &Error{Kind: KindDuplicateWagons}
	ErrUnknownWagons        = &Error{Kind: KindUnknownWagons}
	ErrEmptyTrainRejected   = &Error{Kind: KindEmptyTrainRejected}
	ErrTrainAlreadyExists   = &Error{Kind: KindTrainAlreadyExists}
	ErrTrainNotFound        = &Error{Kind: KindTrainNotFound}
	ErrStationAlreadyExists = &Error{Kind: KindStationAlreadyExists}
	ErrStationNotFound      = &Error{Kind: KindStationNotFound}
	ErrNoTripsFound         = &Error{Kind: KindNoTripsFound}
	ErrSameStationRoute     = &Error{Kind: KindSameStationRoute}
	ErrDuplicateTrip        = &Error{Kind: KindDuplicateTrip}
	ErrStoreUnavailable     = &Error{Kind: KindStoreUnavailable}
)

// FieldError describes one rejected field of a request payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by the core for every classified failure
type Error struct {
	Kind    Kind
	Message string
	// Items lists the offending values (e.g. wagon codes) when there are any
	Items []string
	// Fields is set for payload validation failures
	Fields []FieldError
	// Err is the underlying cause, kept for logging only
	Err error
}

// New creates a classified error with a formatted message
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind. The message is what callers see;
// cause is only reachable through Unwrap.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithItems attaches the offending values to the error
func (e *Error) WithItems(items ...string) *Error {
	e.Items = append(e.Items, items...)
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindStoreUnavailable for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// Public returns the message that is safe to show to a client.
// Store failures never leak their cause.
func Public(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	if e.Message != "" {
		return e.Message
	}
	return strings.ReplaceAll(string(e.Kind), "_", " ")
}
