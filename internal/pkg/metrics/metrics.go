package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})

	simulations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_simulations_total",
		Help: "Simulations by method and solver status",
	}, []string{"method", "status"})

	simulationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_simulation_duration_seconds",
		Help:    "Time spent solving, excluding the wait for a solver slot",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	}, []string{"method"})

	deltaLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_delta_lookups_total",
		Help: "Operation log lookups by result (hit, miss, error)",
	}, []string{"result"})

	applierMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_applier_messages_total",
		Help: "Warnings and errors reported by the perturbation appliers",
	}, []string{"kind"})

	loadedModels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "model_warehouse_loaded_models",
		Help: "Base models held in memory",
	})

	wsSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "model_websocket_sessions",
		Help: "Open WebSocket simulation sessions",
	})
)

func ObserveSimulation(method, status string, elapsed time.Duration) {
	simulations.WithLabelValues(method, status).Inc()
	simulationLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func DeltaLookup(result string) {
	deltaLookups.WithLabelValues(result).Inc()
}

func ApplierMessages(warnings, errors int) {
	applierMessages.WithLabelValues("warning").Add(float64(warnings))
	applierMessages.WithLabelValues("error").Add(float64(errors))
}

func SetLoadedModels(n int) {
	loadedModels.Set(float64(n))
}

func SessionOpened() { wsSessions.Inc() }
func SessionClosed() { wsSessions.Dec() }

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := ctx.Route().Path
		httpRequests.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
		httpLatency.WithLabelValues(ctx.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus text exposition.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
