package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/railcore/railcore/internal/apperr"
	"github.com/railcore/railcore/internal/codes"
	"github.com/railcore/railcore/internal/models"
	"github.com/railcore/railcore/internal/service"
	"github.com/rs/zerolog"
)

// Pinger is anything the health check can probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the /v1 routes on top of the core services
type Handlers struct {
	Stations *service.StationService
	Trains   *service.TrainService
	Trips    *service.TripService

	Store Pinger
	Cache Pinger
	Log   zerolog.Logger
}

// CreateStation handles POST /v1/stations
func (h *Handlers) CreateStation(c *fiber.Ctx) error {
	var req CreateStationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	station, err := h.Stations.Create(c.UserContext(), req.Name, codes.StationCode(req.Code))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(station)
}

// ListStations handles GET /v1/stations
func (h *Handlers) ListStations(c *fiber.Ctx) error {
	stations, err := h.Stations.List(c.UserContext())
	if err != nil {
		return err
	}
	if stations == nil {
		stations = []models.Station{}
	}
	return c.JSON(stations)
}

// GetStation handles GET /v1/stations/:code
func (h *Handlers) GetStation(c *fiber.Ctx) error {
	code, err := codes.ParseStationCode(c.Params("code"))
	if err != nil {
		return err
	}

	station, err := h.Stations.GetByCode(c.UserContext(), code)
	if err != nil {
		return err
	}
	return c.JSON(station)
}

// CreateTrain handles POST /v1/trains
func (h *Handlers) CreateTrain(c *fiber.Ctx) error {
	var req CreateTrainRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	train, err := h.Trains.Create(c.UserContext(), req.TrainNumber, req.Wagons)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(train)
}

// GetTrain handles GET /v1/trains/:trainNumber
func (h *Handlers) GetTrain(c *fiber.Ctx) error {
	train, err := h.Trains.Get(c.UserContext(), c.Params("trainNumber"))
	if err != nil {
		return err
	}
	return c.JSON(train)
}

// AddWagons handles PATCH /v1/trains/:trainNumber/add-wagons
func (h *Handlers) AddWagons(c *fiber.Ctx) error {
	var req WagonsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	train, err := h.Trains.AddWagons(c.UserContext(), c.Params("trainNumber"), req.Wagons)
	if err != nil {
		return err
	}
	return c.JSON(train)
}

// RemoveWagons handles PATCH /v1/trains/:trainNumber/remove-wagons
func (h *Handlers) RemoveWagons(c *fiber.Ctx) error {
	var req WagonsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	train, err := h.Trains.RemoveWagons(c.UserContext(), c.Params("trainNumber"), req.Wagons)
	if err != nil {
		return err
	}
	return c.JSON(train)
}

// CreateTrip handles POST /v1/trips
func (h *Handlers) CreateTrip(c *fiber.Ctx) error {
	var req CreateTripRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	// Equal stations are reported before field checks
	if req.DepartureStationCode != 0 && req.DepartureStationCode == req.ArrivalStationCode {
		return apperr.New(apperr.KindSameStationRoute, "departure and arrival stations must differ")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	number, err := codes.ParseTrainNumber(req.TrainNumber)
	if err != nil {
		return err
	}
	departure, err := codes.ParseTimestamp(req.DepartureTime)
	if err != nil {
		return err
	}
	arrival, err := codes.ParseTimestamp(req.ArrivalTime)
	if err != nil {
		return err
	}

	trip, err := h.Trips.Create(c.UserContext(), models.NewTrip{
		TrainNumber:          number,
		DepartureStationCode: codes.StationCode(req.DepartureStationCode),
		ArrivalStationCode:   codes.StationCode(req.ArrivalStationCode),
		DepartureTime:        departure,
		ArrivalTime:          arrival,
		RawDepartureTime:     req.DepartureTime,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(trip)
}

// SearchTrips handles GET /v1/trips/search
func (h *Handlers) SearchTrips(c *fiber.Ctx) error {
	var q SearchTripsQuery
	if err := c.QueryParser(&q); err != nil {
		return apperr.Wrap(apperr.KindMalformedIdentifier, err, "station codes must be 7-digit numbers starting with 22")
	}
	if err := q.Validate(); err != nil {
		return err
	}

	trips, err := h.Trips.Search(c.UserContext(),
		codes.StationCode(q.DepartureStationCode),
		codes.StationCode(q.ArrivalStationCode),
		q.Date)
	if err != nil {
		return err
	}
	return c.JSON(trips)
}

// Health handles GET /health
func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	// Check store
	storeErr := h.Store.Ping(ctx)
	storeStatus := "ok"
	if storeErr != nil {
		storeStatus = storeErr.Error()
	}

	// Check cache
	cacheErr := h.Cache.Ping(ctx)
	cacheStatus := "ok"
	if cacheErr != nil {
		cacheStatus = cacheErr.Error()
	}

	// Overall status
	status := "healthy"
	httpStatus := fiber.StatusOK
	if storeErr != nil || cacheErr != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
		h.Log.Warn().
			AnErr("store", storeErr).
			AnErr("cache", cacheErr).
			Msg("health check failed")
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": storeStatus,
			"cache":    cacheStatus,
		},
	})
}

// parseBody decodes the JSON body into dst
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Wrap(apperr.KindInvalidPayload, err, "request body must be a JSON object")
	}
	return nil
}
