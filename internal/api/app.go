// Package api exposes the railway core over HTTP with Fiber.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railcore/railcore/internal/middleware"
)

// Options configures the optional parts of the HTTP surface
type Options struct {
	// AdminKeyHash guards station creation when set
	AdminKeyHash string
	// RateLimiter is applied to mutation routes when set
	RateLimiter fiber.Handler
}

// NewApp builds the Fiber application with every route registered
func NewApp(h *Handlers, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "railcore",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		// Cyrillic train numbers arrive percent-encoded
		UnescapePath: true,
		ErrorHandler: ErrorHandler(h.Log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(middleware.RequestLogger(h.Log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	limit := opts.RateLimiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1")

	v1.Post("/stations", limit, middleware.AdminKey(opts.AdminKeyHash), h.CreateStation)
	v1.Get("/stations", h.ListStations)
	v1.Get("/stations/:code", h.GetStation)

	v1.Post("/trains", limit, h.CreateTrain)
	v1.Get("/trains/:trainNumber", h.GetTrain)
	v1.Patch("/trains/:trainNumber/add-wagons", limit, h.AddWagons)
	v1.Patch("/trains/:trainNumber/remove-wagons", limit, h.RemoveWagons)

	v1.Post("/trips", limit, h.CreateTrip)
	v1.Get("/trips/search", h.SearchTrips)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "The requested endpoint does not exist",
			"path":    c.Path(),
		})
	})

	return app
}
