package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bankcore/banking-api/internal/api/http/handlers"
	"github.com/bankcore/banking-api/internal/auth"
	"github.com/bankcore/banking-api/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Customers *handlers.CustomersHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/verify", cfg.Auth.Verify)
	authGroup.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)
	authGroup.Post("/password-reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password-reset/confirm", cfg.Auth.ConfirmPasswordReset)

	customers := app.Group("/api/customers", auth.RequireRole(domain.RoleAdmin))
	customers.Get("/search", cfg.Customers.Search)
}
