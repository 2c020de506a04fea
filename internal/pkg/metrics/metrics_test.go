package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/models/:id", func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusNoContent) })
	app.Get("/metrics", Handler())

	for _, id := range []string{"a", "b"} {
		_, err := app.Test(httptest.NewRequest("GET", "/models/"+id, nil), -1)
		require.NoError(t, err)
	}
	ObserveSimulation("fba", "optimal", 20*time.Millisecond)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `model_http_requests_total{method="GET",route="/models/:id",status="204"} 2`)
	assert.Contains(t, string(body), `model_simulations_total{method="fba",status="optimal"} 1`)
}
