package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-maintenance/internal/api/http/handlers"
	"github.com/spec-kit/fleet-maintenance/internal/auth"
	"github.com/spec-kit/fleet-maintenance/internal/permission"
	"github.com/spec-kit/fleet-maintenance/internal/policy"
)

// APIBasePath prefixes every authenticated route. The route permission
// table is keyed by paths relative to it.
const APIBasePath = "/api/v1"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Incidents      *handlers.IncidentsHandler
	Equipment      *handlers.EquipmentHandler
	Kernel         *handlers.KernelHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
	Rules          *policy.Kernel
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Prometheus)

	api := app.Group(APIBasePath, cfg.AuthMiddleware.Handle,
		auth.RequireRoute(cfg.Rules.Permissions, cfg.Rules.Routes, APIBasePath))
	writable := auth.RequireWritable()

	incidents := api.Group("/incidencias")
	incidents.Get("/", cfg.Incidents.List)
	incidents.Post("/", writable, cfg.Incidents.Create)
	incidents.Get("/:id", cfg.Incidents.Get)
	incidents.Get("/:id/transiciones", cfg.Incidents.NextStates)
	incidents.Get("/:id/sla", cfg.Incidents.SLA)
	incidents.Post("/:id/estado", writable, cfg.Incidents.ChangeState)
	incidents.Post("/:id/asignacion", writable, cfg.Incidents.Assign)
	incidents.Post("/:id/tomar", writable, cfg.Incidents.SelfAssign)

	inventory := api.Group("/inventario")
	inventory.Post("/", writable, cfg.Equipment.CreateItem)
	inventory.Get("/:id", cfg.Equipment.GetItem)
	inventory.Post("/:id/estado", writable, cfg.Equipment.ChangeItemState)
	inventory.Post("/:id/movimientos", writable, cfg.Equipment.MoveItem)

	assets := api.Group("/autobuses")
	assets.Post("/", writable, cfg.Equipment.CreateAsset)
	assets.Get("/:id", cfg.Equipment.GetAsset)
	assets.Post("/:id/estado", writable, cfg.Equipment.ChangeAssetState)
	assets.Get("/:id/fuera-de-servicio", cfg.Equipment.OutOfService)

	kernel := api.Group("/kernel")
	kernel.Post("/sla", cfg.Kernel.EvaluateSLA)
	kernel.Post("/calendario/minutos", cfg.Kernel.WorkingMinutes)
	kernel.Post("/calendario/sumar", cfg.Kernel.AddWorkingMinutes)
	kernel.Post("/transiciones", cfg.Kernel.EvaluateTransition)
	kernel.Post("/movimientos", cfg.Kernel.EvaluateMove)
	kernel.Post("/permisos", cfg.Kernel.CheckPermission)
	kernel.Get("/roles/:role", cfg.Kernel.Capabilities)
	kernel.Get("/rutas", cfg.Kernel.RouteAccess)
	kernel.Post("/codigos", cfg.Kernel.FormatCode)
	kernel.Post("/codigos/siguiente", cfg.Kernel.NextCode)
	kernel.Get("/codigos/:code", cfg.Kernel.ParseCode)
	kernel.Post("/fuera-de-servicio", cfg.Kernel.OutOfService)

	api.Get("/admin/metricas",
		auth.RequirePermission(cfg.Rules.Permissions, permission.P(permission.ResourceSistema, permission.ActionConfigurar)),
		cfg.Metrics.Snapshot)
}
