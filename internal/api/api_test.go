package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/railcore/railcore/internal/apperr"
	"github.com/railcore/railcore/internal/cache"
	"github.com/railcore/railcore/internal/middleware"
	"github.com/railcore/railcore/internal/service"
	"github.com/railcore/railcore/internal/store/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKey = "rk_test_0123456789abcdef"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	st := memory.NewStore()
	aside := cache.NewAside(cache.NewMemoryStore(100, time.Minute), time.Minute, zerolog.Nop())
	h := &Handlers{
		Stations: service.NewStationService(st, aside, zerolog.Nop()),
		Trains:   service.NewTrainService(st, aside, zerolog.Nop()),
		Trips:    service.NewTripService(st, aside, zerolog.Nop()),
		Store:    st,
		Cache:    aside,
		Log:      zerolog.Nop(),
	}
	return NewApp(h, Options{AdminKeyHash: middleware.HashKey(adminKey)})
}

// call performs a request and returns the status and raw body
func call(t *testing.T, app *fiber.App, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func trainPath(number string, suffix ...string) string {
	return "/v1/trains/" + url.PathEscape(number) + strings.Join(suffix, "")
}

type trainBody struct {
	TrainNumber string   `json:"trainNumber"`
	Wagons      []string `json:"wagons"`
}

func TestTrainRoutes(t *testing.T) {
	app := newTestApp(t)

	status, raw := call(t, app, http.MethodPost, "/v1/trains", fiber.Map{
		"trainNumber": "001Л",
		"wagons":      []string{"05К", "01П", "01К"},
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	created := decode[trainBody](t, raw)
	assert.Equal(t, "001Л", created.TrainNumber)
	assert.Equal(t, []string{"01К", "01П", "05К"}, created.Wagons)

	t.Run("Get by number", func(t *testing.T) {
		status, raw := call(t, app, http.MethodGet, trainPath("001Л"), nil)
		require.Equal(t, fiber.StatusOK, status, string(raw))
		assert.Equal(t, []string{"01К", "01П", "05К"}, decode[trainBody](t, raw).Wagons)
	})

	t.Run("Add wagons", func(t *testing.T) {
		status, raw := call(t, app, http.MethodPatch, trainPath("001Л", "/add-wagons"), fiber.Map{
			"wagons": []string{"03Л", "02К"},
		})
		require.Equal(t, fiber.StatusOK, status, string(raw))
		assert.Equal(t, []string{"01К", "01П", "02К", "03Л", "05К"}, decode[trainBody](t, raw).Wagons)
	})

	t.Run("Remove wagons", func(t *testing.T) {
		status, raw := call(t, app, http.MethodPatch, trainPath("001Л", "/remove-wagons"), fiber.Map{
			"wagons": []string{"03Л", "02К"},
		})
		require.Equal(t, fiber.StatusOK, status, string(raw))
		assert.Equal(t, []string{"01К", "01П", "05К"}, decode[trainBody](t, raw).Wagons)
	})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   apperr.Kind
		items  []string
	}{
		{
			name:   "Duplicate train",
			method: http.MethodPost, path: "/v1/trains",
			body:   fiber.Map{"trainNumber": "001Л", "wagons": []string{"01К"}},
			status: fiber.StatusConflict, kind: apperr.KindTrainAlreadyExists,
		},
		{
			name:   "Malformed train number",
			method: http.MethodPost, path: "/v1/trains",
			body:   fiber.Map{"trainNumber": "1Л", "wagons": []string{"01К"}},
			status: fiber.StatusBadRequest, kind: apperr.KindMalformedIdentifier,
		},
		{
			name:   "Malformed wagon code",
			method: http.MethodPost, path: "/v1/trains",
			body:   fiber.Map{"trainNumber": "002Л", "wagons": []string{"01К", "1X"}},
			status: fiber.StatusBadRequest, kind: apperr.KindMalformedIdentifier,
		},
		{
			name:   "Empty train",
			method: http.MethodPost, path: "/v1/trains",
			body:   fiber.Map{"trainNumber": "002Л", "wagons": []string{}},
			status: fiber.StatusBadRequest, kind: apperr.KindEmptyTrainRejected,
		},
		{
			name:   "Repeated wagons",
			method: http.MethodPost, path: "/v1/trains",
			body:   fiber.Map{"trainNumber": "002Л", "wagons": []string{"01К", "01К"}},
			status: fiber.StatusBadRequest, kind: apperr.KindDuplicateWagons, items: []string{"01К"},
		},
		{
			name:   "Unknown train",
			method: http.MethodGet, path: trainPath("999Л"),
			status: fiber.StatusNotFound, kind: apperr.KindTrainNotFound,
		},
		{
			name:   "Add wagons to unknown train",
			method: http.MethodPatch, path: trainPath("999Л", "/add-wagons"),
			body:   fiber.Map{"wagons": []string{"01К"}},
			status: fiber.StatusNotFound, kind: apperr.KindTrainNotFound,
		},
		{
			name:   "Add wagon already present",
			method: http.MethodPatch, path: trainPath("001Л", "/add-wagons"),
			body:   fiber.Map{"wagons": []string{"05К"}},
			status: fiber.StatusBadRequest, kind: apperr.KindDuplicateWagons, items: []string{"05К"},
		},
		{
			name:   "Add with empty list",
			method: http.MethodPatch, path: trainPath("001Л", "/add-wagons"),
			body:   fiber.Map{"wagons": []string{}},
			status: fiber.StatusBadRequest, kind: apperr.KindInvalidPayload,
		},
		{
			name:   "Remove wagon not on train",
			method: http.MethodPatch, path: trainPath("001Л", "/remove-wagons"),
			body:   fiber.Map{"wagons": []string{"09П"}},
			status: fiber.StatusBadRequest, kind: apperr.KindUnknownWagons, items: []string{"09П"},
		},
		{
			name:   "Remove every wagon",
			method: http.MethodPatch, path: trainPath("001Л", "/remove-wagons"),
			body:   fiber.Map{"wagons": []string{"01К", "01П", "05К"}},
			status: fiber.StatusBadRequest, kind: apperr.KindEmptyTrainRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := call(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(raw))

			resp := decode[ErrorResponse](t, raw)
			assert.Equal(t, string(tt.kind), resp.Error)
			assert.NotEmpty(t, resp.Message)
			if tt.items != nil {
				assert.Equal(t, tt.items, resp.Items)
			}
		})
	}

	t.Run("Failed changes leave the train intact", func(t *testing.T) {
		status, raw := call(t, app, http.MethodGet, trainPath("001Л"), nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, []string{"01К", "01П", "05К"}, decode[trainBody](t, raw).Wagons)
	})

	t.Run("Field errors name the offending element", func(t *testing.T) {
		_, raw := call(t, app, http.MethodPost, "/v1/trains", fiber.Map{
			"trainNumber": "002Л",
			"wagons":      []string{"01К", "1X"},
		})
		resp := decode[ErrorResponse](t, raw)
		require.Len(t, resp.Fields, 1)
		assert.Equal(t, "wagons[1]", resp.Fields[0].Field)
	})

	t.Run("Body that is not JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/trains", strings.NewReader("{"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

type tripBody struct {
	ID                   int64     `json:"id"`
	TrainNumber          string    `json:"trainNumber"`
	DepartureStationCode int       `json:"departureStationCode"`
	ArrivalStationCode   int       `json:"arrivalStationCode"`
	DepartureTime        time.Time `json:"departureTime"`
	ArrivalTime          time.Time `json:"arrivalTime"`
}

func TestTripRoutes(t *testing.T) {
	app := newTestApp(t)

	trip := fiber.Map{
		"trainNumber":          "001Л",
		"departureStationCode": 2200001,
		"arrivalStationCode":   2200002,
		"departureTime":        "2024-12-25T10:30:00.000Z",
		"arrivalTime":          "2024-12-25T18:00:00.000Z",
	}

	status, raw := call(t, app, http.MethodPost, "/v1/trips", trip)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	created := decode[tripBody](t, raw)
	assert.Equal(t, "001Л", created.TrainNumber)
	assert.Equal(t, time.Date(2024, 12, 25, 10, 30, 0, 0, time.UTC), created.DepartureTime.UTC())

	t.Run("Search by day", func(t *testing.T) {
		status, raw := call(t, app, http.MethodGet,
			"/v1/trips/search?departureStationCode=2200001&arrivalStationCode=2200002&date=2024-12-25", nil)
		require.Equal(t, fiber.StatusOK, status, string(raw))
		trips := decode[[]tripBody](t, raw)
		require.Len(t, trips, 1)
		assert.Equal(t, created.ID, trips[0].ID)
	})

	t.Run("Search sees a trip created after a cached search", func(t *testing.T) {
		status, _ := call(t, app, http.MethodGet,
			"/v1/trips/search?departureStationCode=2200001&arrivalStationCode=2200002&date=2024-12-25", nil)
		require.Equal(t, fiber.StatusOK, status)

		later := fiber.Map{
			"trainNumber":          "002К",
			"departureStationCode": 2200001,
			"arrivalStationCode":   2200002,
			"departureTime":        "2024-12-25T20:00:00.000Z",
			"arrivalTime":          "2024-12-26T04:00:00.000Z",
		}
		status, raw := call(t, app, http.MethodPost, "/v1/trips", later)
		require.Equal(t, fiber.StatusCreated, status, string(raw))

		status, raw = call(t, app, http.MethodGet,
			"/v1/trips/search?departureStationCode=2200001&arrivalStationCode=2200002&date=2024-12-25", nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, decode[[]tripBody](t, raw), 2)
	})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   apperr.Kind
	}{
		{
			name:   "Duplicate trip",
			method: http.MethodPost, path: "/v1/trips", body: trip,
			status: fiber.StatusConflict, kind: apperr.KindDuplicateTrip,
		},
		{
			name:   "Same station trip",
			method: http.MethodPost, path: "/v1/trips",
			body: fiber.Map{
				"trainNumber":          "001Л",
				"departureStationCode": 2200001,
				"arrivalStationCode":   2200001,
				"departureTime":        "bad",
				"arrivalTime":          "2024-12-25T18:00:00.000Z",
			},
			status: fiber.StatusBadRequest, kind: apperr.KindSameStationRoute,
		},
		{
			name:   "Malformed station code",
			method: http.MethodPost, path: "/v1/trips",
			body: fiber.Map{
				"trainNumber":          "001Л",
				"departureStationCode": 1234,
				"arrivalStationCode":   2200002,
				"departureTime":        "2024-12-26T10:30:00.000Z",
				"arrivalTime":          "2024-12-26T18:00:00.000Z",
			},
			status: fiber.StatusBadRequest, kind: apperr.KindMalformedIdentifier,
		},
		{
			name:   "Bad timestamp",
			method: http.MethodPost, path: "/v1/trips",
			body: fiber.Map{
				"trainNumber":          "001Л",
				"departureStationCode": 2200001,
				"arrivalStationCode":   2200002,
				"departureTime":        "25.12.2024 10:30",
				"arrivalTime":          "2024-12-26T18:00:00.000Z",
			},
			status: fiber.StatusBadRequest, kind: apperr.KindInvalidPayload,
		},
		{
			name:   "Arrival before departure",
			method: http.MethodPost, path: "/v1/trips",
			body: fiber.Map{
				"trainNumber":          "001Л",
				"departureStationCode": 2200001,
				"arrivalStationCode":   2200002,
				"departureTime":        "2024-12-26T18:00:00.000Z",
				"arrivalTime":          "2024-12-26T10:30:00.000Z",
			},
			status: fiber.StatusBadRequest, kind: apperr.KindInvalidPayload,
		},
		{
			name:   "No trips on that day",
			method: http.MethodGet,
			path:   "/v1/trips/search?departureStationCode=2200001&arrivalStationCode=2200002&date=2024-12-31",
			status: fiber.StatusNotFound, kind: apperr.KindNoTripsFound,
		},
		{
			name:   "Search same station with bad date",
			method: http.MethodGet,
			path:   "/v1/trips/search?departureStationCode=2200001&arrivalStationCode=2200001&date=nope",
			status: fiber.StatusBadRequest, kind: apperr.KindSameStationRoute,
		},
		{
			name:   "Search with malformed code",
			method: http.MethodGet,
			path:   "/v1/trips/search?departureStationCode=12&arrivalStationCode=2200001&date=2024-12-25",
			status: fiber.StatusBadRequest, kind: apperr.KindMalformedIdentifier,
		},
		{
			name:   "Search without date",
			method: http.MethodGet,
			path:   "/v1/trips/search?departureStationCode=2200001&arrivalStationCode=2200002",
			status: fiber.StatusBadRequest, kind: apperr.KindInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := call(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(raw))
			assert.Equal(t, string(tt.kind), decode[ErrorResponse](t, raw).Error)
		})
	}
}

type stationBody struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code int    `json:"code"`
}

func TestStationRoutes(t *testing.T) {
	app := newTestApp(t)
	auth := []string{fiber.HeaderAuthorization, "Bearer " + adminKey}

	t.Run("Create requires the admin key", func(t *testing.T) {
		status, _ := call(t, app, http.MethodPost, "/v1/stations", fiber.Map{"name": "Київ", "code": 2200001})
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})

	status, raw := call(t, app, http.MethodPost, "/v1/stations", fiber.Map{"name": "Київ", "code": 2200001}, auth...)
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	assert.Equal(t, "Київ", decode[stationBody](t, raw).Name)

	status, raw = call(t, app, http.MethodPost, "/v1/stations", fiber.Map{"name": "Львів", "code": 2200002}, auth...)
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	t.Run("List", func(t *testing.T) {
		status, raw := call(t, app, http.MethodGet, "/v1/stations", nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, decode[[]stationBody](t, raw), 2)
	})

	t.Run("Get by code", func(t *testing.T) {
		status, raw := call(t, app, http.MethodGet, "/v1/stations/2200002", nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "Львів", decode[stationBody](t, raw).Name)
	})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   apperr.Kind
	}{
		{
			name:   "Duplicate code",
			method: http.MethodPost, path: "/v1/stations",
			body:   fiber.Map{"name": "Одеса", "code": 2200001},
			status: fiber.StatusConflict, kind: apperr.KindStationAlreadyExists,
		},
		{
			name:   "Duplicate name",
			method: http.MethodPost, path: "/v1/stations",
			body:   fiber.Map{"name": "Київ", "code": 2200003},
			status: fiber.StatusConflict, kind: apperr.KindStationAlreadyExists,
		},
		{
			name:   "Latin name",
			method: http.MethodPost, path: "/v1/stations",
			body:   fiber.Map{"name": "Kyiv", "code": 2200003},
			status: fiber.StatusBadRequest, kind: apperr.KindInvalidPayload,
		},
		{
			name:   "Code outside the range",
			method: http.MethodPost, path: "/v1/stations",
			body:   fiber.Map{"name": "Одеса", "code": 3300003},
			status: fiber.StatusBadRequest, kind: apperr.KindMalformedIdentifier,
		},
		{
			name:   "Unknown code",
			method: http.MethodGet, path: "/v1/stations/2299999",
			status: fiber.StatusNotFound, kind: apperr.KindStationNotFound,
		},
		{
			name:   "Code that is not a number",
			method: http.MethodGet, path: "/v1/stations/abc",
			status: fiber.StatusBadRequest, kind: apperr.KindMalformedIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := call(t, app, tt.method, tt.path, tt.body, auth...)
			assert.Equal(t, tt.status, status, string(raw))
			assert.Equal(t, string(tt.kind), decode[ErrorResponse](t, raw).Error)
		})
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		app := newTestApp(t)
		status, raw := call(t, app, http.MethodGet, "/health", nil)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "healthy", decode[map[string]any](t, raw)["status"])
	})

	t.Run("Store down", func(t *testing.T) {
		h := &Handlers{Store: downPinger{}, Cache: cache.NewMemoryStore(10, time.Minute), Log: zerolog.Nop()}
		app := NewApp(h, Options{})

		status, raw := call(t, app, http.MethodGet, "/health", nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, status)

		body := decode[map[string]any](t, raw)
		assert.Equal(t, "unhealthy", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "connection refused", checks["database"])
		assert.Equal(t, "ok", checks["cache"])
	})
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zerolog.Nop())})
	app.Get("/store", func(c *fiber.Ctx) error {
		return apperr.Wrap(apperr.KindStoreUnavailable, errors.New("dial tcp 10.0.0.5:5432: connection refused"), "store unavailable")
	})
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("secret detail") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrMethodNotAllowed })

	for _, path := range []string{"/store", "/plain"} {
		t.Run(path, func(t *testing.T) {
			status, raw := call(t, app, http.MethodGet, path, nil)
			assert.Equal(t, fiber.StatusInternalServerError, status)
			assert.NotContains(t, string(raw), "10.0.0.5")
			assert.NotContains(t, string(raw), "secret")
			assert.Equal(t, "internal server error", decode[ErrorResponse](t, raw).Message)
		})
	}

	status, _ := call(t, app, http.MethodGet, "/fiber", nil)
	assert.Equal(t, fiber.StatusMethodNotAllowed, status)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, StatusFor(apperr.KindUnknownWagons))
	assert.Equal(t, fiber.StatusNotFound, StatusFor(apperr.KindNoTripsFound))
	assert.Equal(t, fiber.StatusConflict, StatusFor(apperr.KindDuplicateTrip))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor(apperr.KindStoreUnavailable))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor(apperr.Kind("something_else")))
}

func TestMetricsAndFallback(t *testing.T) {
	app := newTestApp(t)

	status, raw := call(t, app, http.MethodGet, "/metrics", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "go_goroutines")

	status, raw = call(t, app, http.MethodGet, "/v2/route-search", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", decode[map[string]any](t, raw)["error"])
}

func TestRequestIDHeader(t *testing.T) {
	app := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(fiber.HeaderXRequestID), 36)
}
