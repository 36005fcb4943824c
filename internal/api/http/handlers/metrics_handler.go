package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/fleet-maintenance/internal/observability"
)

// MetricsHandler exposes the service counters.
type MetricsHandler struct {
	metrics    *observability.Metrics
	prometheus fiber.Handler
}

func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, prometheus: adaptor.HTTPHandler(metrics.Handler())}
}

// Snapshot GET /admin/metricas.
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

// Prometheus GET /metrics, for scrapers.
func (h *MetricsHandler) Prometheus(c *fiber.Ctx) error {
	return h.prometheus(c)
}
