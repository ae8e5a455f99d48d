package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/trader-console/internal/api/http/handlers"
	"github.com/spec-kit/trader-console/internal/auth"
	"github.com/spec-kit/trader-console/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Session           *handlers.SessionHandler
	Views             *handlers.ViewsHandler
	Dashboard         *handlers.DashboardHandler
	Resources         *handlers.ResourcesHandler
	SessionMiddleware *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Use(cfg.SessionMiddleware.Handle)
	requireSession := cfg.SessionMiddleware.RequireSession
	adminOnly := auth.RequireRole(domain.RoleAdmin)

	sessionGroup := app.Group("/session")
	sessionGroup.Get("", cfg.Session.Current)
	sessionGroup.Post("/login", cfg.Session.Login)
	sessionGroup.Post("/register", cfg.Session.Register)
	sessionGroup.Post("/logout", cfg.Session.Logout)

	app.Get("/menu", cfg.Views.Menu)
	app.Get("/views/*", cfg.Views.View)

	app.Get("/dashboard", requireSession, cfg.Dashboard.Get)
	app.Post("/dashboard/reload", requireSession, cfg.Dashboard.Reload)

	app.Get("/settings", adminOnly, cfg.Resources.Settings)
	app.Put("/settings", adminOnly, cfg.Resources.UpdateSettings)
	app.Get("/logs", adminOnly, cfg.Resources.Logs)
	app.Get("/queue", requireSession, cfg.Resources.Queue)
	app.Get("/analytics", requireSession, cfg.Resources.Analytics)
}
