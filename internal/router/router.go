package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/littlesprouts/admissions-api/internal/handler"
	"github.com/littlesprouts/admissions-api/internal/middleware"
	"github.com/littlesprouts/admissions-api/internal/observability"
)

// Config carries everything the route table needs.
type Config struct {
	Health *handler.HealthHandler
	Public *handler.ApplicationHandler
	Wizard *handler.WizardHandler
	Admin  *handler.AdminApplicationHandler

	JWTSecret        string
	SubmitRateLimit  int
	SubmitRateWindow time.Duration
}

// Register wires the route table. Public intake endpoints are rate
// limited per client IP; everything under /admin requires a staff token.
func Register(app *fiber.App, cfg Config) {
	api := app.Group("/api/v1")

	cfg.Health.Register(api)
	api.Get("/metrics", observability.MetricsHandler())

	public := api.Group("/", middleware.RateLimit("public_intake", cfg.SubmitRateLimit, cfg.SubmitRateWindow))
	cfg.Public.Register(public)
	cfg.Wizard.Register(public)

	admin := api.Group("/admin", middleware.JWTProtected(cfg.JWTSecret))
	cfg.Admin.Register(admin)
}
