package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/field-audit-service/internal/api/http/handlers"
	"github.com/spec-kit/field-audit-service/internal/auth"
	"github.com/spec-kit/field-audit-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Issues         *handlers.IssuesHandler
	Initiatives    *handlers.InitiativesHandler
	Reports        *handlers.ReportsHandler
	Admin          *handlers.AdminHandler
	Evidence       *handlers.EvidenceHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireIdentity())

	issues := protected.Group("/issues")
	issues.Get("/", cfg.Reports.ListIssues)
	issues.Get("/export", cfg.Reports.ExportIssues)
	issues.Post("/", cfg.Issues.CreateIssue)
	issues.Get("/:id", cfg.Issues.GetIssue)
	issues.Patch("/:id", cfg.Issues.UpdateIssue)
	issues.Post("/:id/cancel", cfg.Issues.ToggleCancel)
	issues.Delete("/:id", auth.RequireAdmin(), cfg.Issues.DeleteIssue)
	issues.Delete("/:id/evidence/:slot", cfg.Issues.DetachEvidence)

	initiatives := protected.Group("/initiatives")
	initiatives.Post("/", cfg.Initiatives.CreateInitiative)
	initiatives.Get("/:id", cfg.Initiatives.GetInitiative)
	initiatives.Patch("/:id", cfg.Initiatives.UpdateInitiative)
	initiatives.Delete("/:id", auth.RequireAdmin(), cfg.Initiatives.DeleteInitiative)

	protected.Get("/evidence/:slot/:name", cfg.Evidence.Download)

	admin := protected.Group("/admin", auth.RequireAdmin())
	admin.Post("/escalation/run", cfg.Admin.RunEscalation)
	admin.Get("/escalation/status", cfg.Admin.EscalationStatus)
}
