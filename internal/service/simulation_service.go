package service

import (
	"context"
	"fmt"
	"time"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/pkg/metrics"
	"metabolic-model-be/pkg/events"
	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/warehouse"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/semaphore"
)

type ISimulationService interface {
	// Run simulates m, waiting for a free solver slot first.
	Run(ctx context.Context, m *metabolic.Model, entry *warehouse.Entry, req flux.Request) (*flux.Result, error)
	Simulate(ctx context.Context, caller warehouse.Caller, req *dto.SimulateRequest) (*dto.SimulateResponse, error)
}

type simulationService struct {
	registry  *warehouse.Registry
	engine    *flux.Engine
	slots     *semaphore.Weighted
	publisher events.Publisher
	logger    logger.ILogger
}

// NewSimulationService bounds the number of solves running at once to
// concurrency; zero or less means one.
func NewSimulationService(
	registry *warehouse.Registry,
	engine *flux.Engine,
	concurrency int,
	publisher events.Publisher,
	logger logger.ILogger,
) ISimulationService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &simulationService{
		registry:  registry,
		engine:    engine,
		slots:     semaphore.NewWeighted(int64(concurrency)),
		publisher: publisher,
		logger:    logger,
	}
}

func (s *simulationService) Run(ctx context.Context, m *metabolic.Model, entry *warehouse.Entry, req flux.Request) (*flux.Result, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.slots.Release(1)

	if momaLike(req.Method) && req.Reference == nil {
		reference, err := s.reference(ctx, m, entry, req.BiomassID)
		if err != nil {
			return nil, err
		}
		req.Reference = reference
	}

	start := time.Now()
	result, err := s.engine.Simulate(ctx, m, req)
	if err != nil {
		metrics.ObserveSimulation(string(req.Method), "error", time.Since(start))
		return nil, err
	}
	metrics.ObserveSimulation(string(result.Method), string(result.Status), time.Since(start))

	event := events.NewModelSimulated(m.ID, string(result.Method), string(result.Status), result.GrowthRate)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("SIMULATE", "Failed to publish event", map[string]interface{}{"model_id": m.ID, "error": err.Error()})
	}
	return result, nil
}

func momaLike(m flux.Method) bool { return m == flux.MOMA || m == flux.LMOMA }

// reference is the parsimonious wild-type distribution. It is cached on the
// entry; without one it is computed on a copy of m as it is now.
func (s *simulationService) reference(ctx context.Context, m *metabolic.Model, entry *warehouse.Entry, biomassID string) (map[string]float64, error) {
	compute := func(wt *metabolic.Model) (map[string]float64, error) {
		res, err := s.engine.Simulate(ctx, wt, flux.Request{BiomassID: biomassID, Method: flux.PFBA})
		if err != nil {
			return nil, err
		}
		return res.Fluxes, nil
	}
	if entry != nil {
		return entry.Reference(compute)
	}
	return compute(m.Copy())
}

func (s *simulationService) Simulate(ctx context.Context, caller warehouse.Caller, req *dto.SimulateRequest) (*dto.SimulateResponse, error) {
	method, err := flux.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	var (
		m         *metabolic.Model
		entry     *warehouse.Entry
		biomassID string
	)
	switch {
	case req.ModelID != "":
		lease, err := s.registry.Lease(ctx, string(req.ModelID), caller)
		if err != nil {
			return nil, err
		}
		defer lease.Release()
		m, entry, biomassID = lease.Model, lease.Entry, lease.Entry.BiomassID()
	case len(req.Model) > 0:
		if req.BiomassReaction == "" {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Missing field 'biomass_reaction'")
		}
		m, err = metabolic.Unmarshal(req.Model)
		if err != nil {
			s.logger.Warn("SIMULATE", "Rejected ad-hoc model", map[string]interface{}{"error": err.Error()})
			return nil, fiber.NewError(fiber.StatusBadRequest, "The provided model is not deserializable")
		}
		if _, ok := m.Reaction(req.BiomassReaction); !ok {
			return nil, fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("There is no biomass reaction with id '%s' in the model", req.BiomassReaction))
		}
		biomassID = req.BiomassReaction
	default:
		return nil, fiber.NewError(fiber.StatusBadRequest, "Missing field 'model' or 'model_id'")
	}

	var reference map[string]float64
	if entry == nil && momaLike(method) {
		if reference, err = s.reference(ctx, m, nil, biomassID); err != nil {
			return nil, err
		}
	}

	if len(req.Operations) > 0 {
		scope := m.Begin()
		defer scope.Close()
		if err := operations.Apply(m, req.Operations); err != nil {
			return nil, err
		}
	}

	result, err := s.Run(ctx, m, entry, flux.Request{
		BiomassID:          biomassID,
		Method:             method,
		ObjectiveID:        req.ObjectiveID,
		ObjectiveDirection: metabolic.Direction(req.ObjectiveDirection),
		Reference:          reference,
		MeasuredReactions:  operations.Measured(req.Operations),
	})
	if err != nil {
		return nil, err
	}

	return &dto.SimulateResponse{
		FluxDistribution: result.FluxDistribution(),
		GrowthRate:       result.GrowthRate,
		Status:           string(result.Status),
	}, nil
}
