package controller

import (
	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/serverutils"
	"metabolic-model-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISimulationController interface {
	RegisterRoutes(r fiber.Router)
	Simulate(ctx *fiber.Ctx) error
}

type simulationController struct {
	service service.ISimulationService
}

func NewSimulationController(service service.ISimulationService) ISimulationController {
	return &simulationController{service: service}
}

func (c *simulationController) RegisterRoutes(r fiber.Router) {
	r.Post("/simulate", c.Simulate)
}

func (c *simulationController) Simulate(ctx *fiber.Ctx) error {
	var req dto.SimulateRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Simulate(ctx.UserContext(), serverutils.CallerFrom(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}
