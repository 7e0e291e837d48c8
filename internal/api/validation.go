package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/railcore/railcore/internal/apperr"
	"github.com/railcore/railcore/internal/codes"
)

var validate = newValidator()

// identifierTags mark fields whose failures are malformed identifiers
// rather than generally invalid payloads
var identifierTags = map[string]bool{
	"stationcode": true,
	"trainnumber": true,
	"wagoncode":   true,
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	must(v.RegisterValidation("stationcode", func(fl validator.FieldLevel) bool {
		return codes.StationCode(fl.Field().Int()).Validate() == nil
	}))
	must(v.RegisterValidation("trainnumber", func(fl validator.FieldLevel) bool {
		_, err := codes.ParseTrainNumber(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("wagoncode", func(fl validator.FieldLevel) bool {
		_, err := codes.ParseWagonCode(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("isotime", func(fl validator.FieldLevel) bool {
		return codes.ValidTimestamp(fl.Field().String())
	}))

	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// CreateStationRequest is the body of POST /v1/stations
type CreateStationRequest struct {
	Name string `json:"name" validate:"required,min=3"`
	Code int    `json:"code" validate:"stationcode"`
}

func (r CreateStationRequest) Validate() error {
	return check(r)
}

// CreateTrainRequest is the body of POST /v1/trains. An empty wagon list
// is left to the core, which rejects it as an empty train.
type CreateTrainRequest struct {
	TrainNumber string   `json:"trainNumber" validate:"required,trainnumber"`
	Wagons      []string `json:"wagons" validate:"dive,wagoncode"`
}

func (r CreateTrainRequest) Validate() error {
	return check(r)
}

// WagonsRequest is the body of the add-wagons and remove-wagons routes
type WagonsRequest struct {
	Wagons []string `json:"wagons" validate:"required,min=1,dive,wagoncode"`
}

func (r WagonsRequest) Validate() error {
	return check(r)
}

// CreateTripRequest is the body of POST /v1/trips
type CreateTripRequest struct {
	TrainNumber          string `json:"trainNumber" validate:"required,trainnumber"`
	DepartureStationCode int    `json:"departureStationCode" validate:"stationcode"`
	ArrivalStationCode   int    `json:"arrivalStationCode" validate:"stationcode"`
	DepartureTime        string `json:"departureTime" validate:"required,isotime"`
	ArrivalTime          string `json:"arrivalTime" validate:"required,isotime"`
}

// Validate checks field grammar and that arrival follows departure.
// Equal stations are left to the core so they surface as their own kind.
func (r CreateTripRequest) Validate() error {
	if err := check(r); err != nil {
		return err
	}
	dep, err := codes.ParseTimestamp(r.DepartureTime)
	if err != nil {
		return err
	}
	arr, err := codes.ParseTimestamp(r.ArrivalTime)
	if err != nil {
		return err
	}
	if !arr.After(dep) {
		return &apperr.Error{
			Kind:    apperr.KindInvalidPayload,
			Message: "arrival time must be after departure time",
			Fields:  []apperr.FieldError{{Field: "arrivalTime", Message: "must be after departureTime"}},
		}
	}
	return nil
}

// SearchTripsQuery is the query string of GET /v1/trips/search
type SearchTripsQuery struct {
	DepartureStationCode int    `query:"departureStationCode" validate:"stationcode"`
	ArrivalStationCode   int    `query:"arrivalStationCode" validate:"stationcode"`
	Date                 string `query:"date" validate:"required"`
}

// Validate reports a same-station route before anything else
func (q SearchTripsQuery) Validate() error {
	if q.DepartureStationCode != 0 && q.DepartureStationCode == q.ArrivalStationCode {
		return apperr.New(apperr.KindSameStationRoute, "departure and arrival stations must differ")
	}
	return check(q)
}

// check runs the struct tags and converts failures into one classified error
func check(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Wrap(apperr.KindInvalidPayload, err, "invalid payload")
	}

	kind := apperr.KindInvalidPayload
	fields := make([]apperr.FieldError, 0, len(ve))
	names := make([]string, 0, len(ve))
	for _, fe := range ve {
		if identifierTags[fe.Tag()] {
			kind = apperr.KindMalformedIdentifier
		}
		field := fieldPath(fe)
		fields = append(fields, apperr.FieldError{Field: field, Message: describe(fe)})
		names = append(names, field)
	}

	return &apperr.Error{
		Kind:    kind,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Fields:  fields,
	}
}

// fieldPath drops the struct name from the namespace, e.g. "wagons[1]"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s elements", fe.Param())
	case "stationcode":
		return "must be a 7-digit number starting with 22"
	case "trainnumber":
		return "must consist of three digits and a Cyrillic letter (e.g. \"001Л\")"
	case "wagoncode":
		return "must look like \"01К\", \"02П\" or \"03Л\""
	case "isotime":
		return "must be a timestamp like 2024-12-25T10:30:00.000Z"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
