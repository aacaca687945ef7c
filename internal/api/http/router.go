package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/revo-marketplace/waitlist/internal/api/http/handlers"
	"github.com/revo-marketplace/waitlist/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Waitlist        *handlers.WaitlistHandler
	Analytics       *handlers.AnalyticsHandler
	AdminMiddleware *auth.AdminMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	waitlist := api.Group("/waitlist")
	waitlist.Post("", cfg.Waitlist.Submit)
	waitlist.Get("/unsubscribe", cfg.Waitlist.Unsubscribe)

	admin := UseErrorFormat(ErrorFormatBare)
	waitlist.Get("", admin, cfg.AdminMiddleware.Handle, cfg.Waitlist.Analytics)
	waitlist.Get("/funnel", admin, cfg.AdminMiddleware.Handle, cfg.Analytics.Funnel)

	api.Post("/analytics/waitlist", cfg.Analytics.Track)
}
