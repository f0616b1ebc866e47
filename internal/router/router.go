package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/action-ledger/internal/config"
	"github.com/noah-isme/action-ledger/internal/handler"
	"github.com/noah-isme/action-ledger/internal/middleware"
	"github.com/noah-isme/action-ledger/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActionHandler     *handler.ActionHandler
	HistoryHandler    *handler.HistoryHandler
	StatsHandler      *handler.StatsHandler
	AdminLogHandler   *handler.AdminLogHandler
	PlayerSyncHandler *handler.PlayerSyncHandler
	JWTMiddleware     fiber.Handler
	HealthProbes      []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ActionHandler != nil {
		deps.ActionHandler.Register(api.Group("/actions", jwtMiddleware))
		deps.ActionHandler.RegisterPcChecks(api.Group("/pc-checks", jwtMiddleware))
	}

	if deps.HistoryHandler != nil {
		searchLimiter := middleware.RateLimit("history-search", cfg.SearchRequestsPerMin, time.Minute)
		deps.HistoryHandler.Register(api.Group("/history", jwtMiddleware), searchLimiter)
		deps.HistoryHandler.RegisterWagerBlacklist(api.Group("/wager-blacklist", jwtMiddleware))
	}

	if deps.StatsHandler != nil {
		deps.StatsHandler.Register(api.Group("/stats", jwtMiddleware))
	}

	if deps.AdminLogHandler != nil {
		deps.AdminLogHandler.Register(api.Group("/admin-logs", jwtMiddleware))
	}

	// Game server pushes authenticate with a shared token instead of a JWT.
	if deps.PlayerSyncHandler != nil {
		deps.PlayerSyncHandler.Register(api.Group("/players"))
	}
}
