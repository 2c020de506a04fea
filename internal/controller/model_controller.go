package controller

import (
	"errors"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/serverutils"
	"metabolic-model-be/internal/service"
	"metabolic-model-be/pkg/operations"

	"github.com/gofiber/fiber/v2"
)

type IModelController interface {
	RegisterRoutes(r fiber.Router)
	Modify(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ShowModified(ctx *fiber.Ctx) error
	Info(ctx *fiber.Ctx) error
	Simulate(ctx *fiber.Ctx) error
}

type modelController struct {
	models       service.IModelService
	modification service.IModificationService
}

func NewModelController(models service.IModelService, modification service.IModificationService) IModelController {
	return &modelController{models: models, modification: modification}
}

func (c *modelController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/models")
	h.Get(":model_id", c.Show)
	h.Post(":model_id", c.ShowModified)
	h.Post(":model_id/modify", c.Modify)
	h.Post(":model_id/simulate", c.Simulate)

	r.Get("/model-info/:model_id", c.Info)
}

func (c *modelController) Modify(ctx *fiber.Ctx) error {
	var req dto.ModifyRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.modification.Modify(ctx.UserContext(), ctx.Params("model_id"), serverutils.CallerFrom(ctx), &req)
	if err != nil {
		var failed *service.ModificationFailedError
		if errors.As(err, &failed) {
			return ctx.Status(fiber.StatusBadRequest).JSON(dto.ModifyErrorResponse{Errors: failed.Errors})
		}
		return err
	}
	return ctx.JSON(res)
}

func (c *modelController) Show(ctx *fiber.Ctx) error {
	doc, err := c.models.Get(ctx.UserContext(), ctx.Params("model_id"), serverutils.CallerFrom(ctx))
	if err != nil {
		return err
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(doc)
}

func (c *modelController) ShowModified(ctx *fiber.Ctx) error {
	var ops []operations.Operation
	if err := parseBody(ctx, &ops); err != nil {
		return err
	}

	doc, err := c.models.GetModified(ctx.UserContext(), ctx.Params("model_id"), serverutils.CallerFrom(ctx), ops)
	if err != nil {
		return err
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(doc)
}

func (c *modelController) Info(ctx *fiber.Ctx) error {
	res, err := c.models.Info(ctx.UserContext(), ctx.Params("model_id"), serverutils.CallerFrom(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

// Simulate modifies, simulates and reports on the model in one request.
// ?diff=true reports the model as a JSON patch against the wild type.
func (c *modelController) Simulate(ctx *fiber.Ctx) error {
	var req dto.ModelRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.models.Respond(ctx.UserContext(), ctx.Params("model_id"), serverutils.CallerFrom(ctx), req.Message, ctx.QueryBool("diff"))
	if err != nil {
		var failed *service.ModificationFailedError
		if errors.As(err, &failed) {
			return ctx.Status(fiber.StatusBadRequest).JSON(dto.ModifyErrorResponse{Errors: failed.Errors})
		}
		return err
	}
	return ctx.JSON(res)
}

// parseBody decodes a JSON body; a malformed one is the client's fault.
func parseBody(ctx *fiber.Ctx, out interface{}) error {
	if len(ctx.Body()) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Request body is required")
	}
	if err := ctx.App().Config().JSONDecoder(ctx.Body(), out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return nil
}
