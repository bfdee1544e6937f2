package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", auth.RequireRole(domain.UserRoleStoreReporter, domain.UserRoleModerator), cfg.Tickets.SubmitTicket)
	tickets.Get("", auth.RequireRole(domain.UserRoleStoreReporter, domain.UserRoleModerator), cfg.Tickets.ListStoreTickets)
	tickets.Get("/:id", auth.RequireRole(domain.UserRoleStoreReporter, domain.UserRoleServiceProvider, domain.UserRoleModerator), cfg.Tickets.GetTicket)
	tickets.Post("/:id/accept", auth.RequireRole(domain.UserRoleServiceProvider), cfg.Tickets.AcceptAssignment)
	tickets.Post("/:id/reject", auth.RequireRole(domain.UserRoleServiceProvider), cfg.Tickets.RejectAssignment)
	tickets.Post("/:id/complete", auth.RequireRole(domain.UserRoleServiceProvider), cfg.Tickets.CompleteAssignment)
	tickets.Post("/:id/approve-completion", auth.RequireRole(domain.UserRoleModerator), cfg.Tickets.ApproveCompletion)
	tickets.Post("/:id/remarks", auth.RequireRole(domain.UserRoleStoreReporter, domain.UserRoleServiceProvider, domain.UserRoleModerator), cfg.Tickets.AddRemark)

	provider := app.Group("/provider", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.UserRoleServiceProvider))
	provider.Get("/tickets", cfg.Tickets.ListAssignedTickets)
}
