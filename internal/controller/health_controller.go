package controller

import (
	"metabolic-model-be/internal/pkg/metrics"
	"metabolic-model-be/internal/pkg/serverutils"
	"metabolic-model-be/pkg/warehouse"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	registry *warehouse.Registry
}

func NewHealthController(registry *warehouse.Registry) IHealthController {
	return &healthController{registry: registry}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/healthz", c.Health)
	r.Get("/metrics", metrics.Handler())
}

// Health reports 503 until the configured models are preloaded.
func (c *healthController) Health(ctx *fiber.Ctx) error {
	if !c.registry.Ready() {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.ErrorResponse(fiber.StatusServiceUnavailable, "Models are still loading"))
	}
	metrics.SetLoadedModels(c.registry.Loaded())
	return ctx.JSON(serverutils.SuccessResponse("OK", fiber.Map{"models": c.registry.Loaded()}))
}
