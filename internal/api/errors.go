package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/railcore/railcore/internal/apperr"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Items   []string            `json:"items,omitempty"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindMalformedIdentifier,
		apperr.KindInvalidPayload,
		apperr.KindDuplicateWagons,
		apperr.KindUnknownWagons,
		apperr.KindEmptyTrainRejected,
		apperr.KindSameStationRoute:
		return fiber.StatusBadRequest
	case apperr.KindTrainNotFound,
		apperr.KindStationNotFound,
		apperr.KindNoTripsFound:
		return fiber.StatusNotFound
	case apperr.KindTrainAlreadyExists,
		apperr.KindStationAlreadyExists,
		apperr.KindDuplicateTrip:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler turns handler errors into JSON responses. Server errors are
// logged with their cause and answered with a generic message.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(ErrorResponse{
					Error:   "http_error",
					Message: fe.Message,
				})
			}
		}

		code := StatusFor(apperr.KindOf(err))
		if code >= fiber.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")

			return c.Status(code).JSON(ErrorResponse{
				Error:   string(apperr.KindStoreUnavailable),
				Message: "internal server error",
			})
		}

		return c.Status(code).JSON(ErrorResponse{
			Error:   string(ae.Kind),
			Message: apperr.Public(err),
			Items:   ae.Items,
			Fields:  ae.Fields,
		})
	}
}
