package serverutils

import (
	"errors"

	"metabolic-model-be/pkg/adapter"
	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/logging"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/reconcile"
	"metabolic-model-be/pkg/response"
	"metabolic-model-be/pkg/warehouse"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps domain errors to HTTP status codes. Configuration errors
// are the caller's fault; anything unknown is a 500.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, warehouse.ErrModelNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, warehouse.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, warehouse.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, reconcile.ErrMissingGrowthRate),
		errors.Is(err, flux.ErrUnsupportedMethod),
		errors.Is(err, adapter.ErrUnsupportedMeasurement),
		errors.Is(err, operations.ErrUnsupportedOperation),
		errors.Is(err, response.ErrUnknownKey),
		errors.Is(err, metabolic.ErrReactionNotFound),
		errors.Is(err, metabolic.ErrGeneNotFound),
		errors.Is(err, metabolic.ErrInvalidBounds):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware renders errors returned by later handlers as
// ErrorResponse bodies.
func ErrorHandlerMiddleware(logger logging.Logger) fiber.Handler {
	logger = logging.OrNop(logger)
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code := StatusFor(err)
		message := err.Error()
		if code == fiber.StatusInternalServerError {
			message = "Internal server error"
			logger.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
