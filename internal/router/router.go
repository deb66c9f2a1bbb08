package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/certdesk-go-api/internal/config"
	"github.com/noah-isme/certdesk-go-api/internal/handler"
	"github.com/noah-isme/certdesk-go-api/internal/middleware"
	"github.com/noah-isme/certdesk-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RecordHandler      *handler.RecordHandler
	CertificateHandler *handler.CertificateHandler
	Auth               middleware.AuthOptions
	// GenerateLimit caps certificate generations per user or IP per minute; zero uses 30.
	GenerateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	authenticate := middleware.Authenticate(deps.Auth)
	write := middleware.AuthorizeWrite(deps.Auth)

	if deps.RecordHandler != nil {
		deps.RecordHandler.Register(api.Group("/records", authenticate), write)
	}

	if deps.CertificateHandler != nil {
		limit := deps.GenerateLimit
		if limit <= 0 {
			limit = 30
		}
		certificates := api.Group("/certificates", authenticate)
		certificates.Post("", middleware.RateLimit("certificate_generate", limit, time.Minute))
		deps.CertificateHandler.Register(certificates, write)
	}
}
