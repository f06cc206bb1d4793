package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Lifecycle   *handlers.LifecycleHandler
	Escalations *handlers.EscalationHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Lifecycle.CreateTicket)
	tickets.Post("/:id/status", cfg.Lifecycle.ChangeStatus)
	tickets.Post("/:id/assign", cfg.Lifecycle.Assign)
	tickets.Post("/:id/reopen", cfg.Lifecycle.Reopen)
	tickets.Get("/:id/sla", cfg.Escalations.TicketSla)

	escalations := app.Group("/escalations")
	escalations.Post("/tick", cfg.Escalations.RunTick)
	escalations.Post("/:id/acknowledge", cfg.Escalations.Acknowledge)
}
