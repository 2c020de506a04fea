package service

import (
	"context"
	"sort"
	"sync"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/pkg/metrics"
	"metabolic-model-be/pkg/deltas"
	"metabolic-model-be/pkg/flux"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/operations"
	"metabolic-model-be/pkg/response"
	"metabolic-model-be/pkg/warehouse"

	"go.opentelemetry.io/otel/attribute"
)

type IModelService interface {
	Get(ctx context.Context, modelID string, caller warehouse.Caller) ([]byte, error)
	// GetModified replays ops on a working copy and serializes the result.
	GetModified(ctx context.Context, modelID string, caller warehouse.Caller, ops []operations.Operation) ([]byte, error)
	Info(ctx context.Context, modelID string, caller warehouse.Caller) (*dto.ModelInfoResponse, error)
	Respond(ctx context.Context, modelID string, caller warehouse.Caller, msg *dto.ModelMessage, diff bool) (map[string]interface{}, error)
	OpenSession(ctx context.Context, modelID string, caller warehouse.Caller) (*Session, error)
}

type modelService struct {
	registry     *warehouse.Registry
	modification IModificationService
	simulation   ISimulationService
	deltas       IDeltaService
	assembler    *response.Assembler
	logger       logger.ILogger
}

func NewModelService(
	registry *warehouse.Registry,
	modification IModificationService,
	simulation ISimulationService,
	deltas IDeltaService,
	assembler *response.Assembler,
	logger logger.ILogger,
) IModelService {
	return &modelService{
		registry:     registry,
		modification: modification,
		simulation:   simulation,
		deltas:       deltas,
		assembler:    assembler,
		logger:       logger,
	}
}

func (s *modelService) Get(ctx context.Context, modelID string, caller warehouse.Caller) ([]byte, error) {
	entry, err := s.registry.Get(ctx, modelID, caller)
	if err != nil {
		return nil, err
	}
	metrics.SetLoadedModels(s.registry.Loaded())
	return entry.Document()
}

func (s *modelService) GetModified(ctx context.Context, modelID string, caller warehouse.Caller, ops []operations.Operation) ([]byte, error) {
	lease, err := s.registry.Lease(ctx, modelID, caller)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	if err := operations.Apply(lease.Model, ops); err != nil {
		return nil, err
	}
	return lease.Model.MarshalJSON()
}

func (s *modelService) Info(ctx context.Context, modelID string, caller warehouse.Caller) (*dto.ModelInfoResponse, error) {
	entry, err := s.registry.Get(ctx, modelID, caller)
	if err != nil {
		return nil, err
	}

	medium := entry.Model.Medium()
	ids := make([]string, 0, len(medium))
	for id := range medium {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]dto.MediumEntry, 0, len(ids))
	for _, id := range ids {
		name := id
		if rxn, ok := entry.Model.Reaction(id); ok && rxn.Name != "" {
			name = rxn.Name
		}
		entries = append(entries, dto.MediumEntry{ID: id, Name: name, Bound: medium[id]})
	}

	return &dto.ModelInfoResponse{
		Medium:          entries,
		Organism:        string(entry.Record.OrganismID),
		BiomassReaction: entry.BiomassID(),
	}, nil
}

func (s *modelService) Respond(ctx context.Context, modelID string, caller warehouse.Caller, msg *dto.ModelMessage, diff bool) (map[string]interface{}, error) {
	lease, err := s.registry.Lease(ctx, modelID, caller)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	metrics.SetLoadedModels(s.registry.Loaded())
	return s.respond(ctx, modelID, lease, msg, diff)
}

// respond modifies lease.Model in place; the caller reverts it.
func (s *modelService) respond(ctx context.Context, modelID string, lease *warehouse.Lease, msg *dto.ModelMessage, diff bool) (map[string]interface{}, error) {
	ctx, span := tracer.Start(ctx, "model.respond")
	defer span.End()
	span.SetAttributes(attribute.String("model.id", modelID), attribute.Bool("response.diff", diff))

	if err := response.ValidateKeys(msg.ToReturn); err != nil {
		return nil, err
	}
	method, err := flux.ParseMethod(msg.Method)
	if err != nil {
		return nil, err
	}

	m := lease.Model
	biomassID := lease.Entry.BiomassID()

	ops, err := s.modify(ctx, modelID, m, biomassID, &msg.ModifyRequest)
	if err != nil {
		return nil, err
	}
	measured, missing := s.modification.Measured(ctx, m, biomassID, &msg.ModifyRequest)

	result, err := s.simulation.Run(ctx, m, lease.Entry, flux.Request{
		BiomassID:          biomassID,
		Method:             method,
		ObjectiveID:        msg.ObjectiveReaction(),
		ObjectiveDirection: metabolic.Direction(msg.ObjectiveDirection),
		MeasuredReactions:  measured,
	})
	if err != nil {
		return nil, err
	}

	in := response.Input{
		Model:           m,
		Diff:            diff,
		Simulation:      result,
		Operations:      ops,
		Measured:        measured,
		MissingMeasured: missing,
		Objectives:      msg.Objectives,
		ToReturn:        msg.ToReturn,
		RequestID:       msg.RequestID,
		ModelID:         modelID,
	}
	if diff {
		in.WildType = lease.Entry.Model
	}
	return s.assembler.Assemble(ctx, in)
}

// modify replays the stored operation log for the request conditions, or
// runs the appliers and stores the log they produce.
func (s *modelService) modify(ctx context.Context, modelID string, m *metabolic.Model, biomassID string, req *dto.ModifyRequest) ([]operations.Operation, error) {
	if req.Empty() {
		return nil, nil
	}

	key, err := deltas.Key(modelID, req.Conditions())
	if err != nil {
		return nil, err
	}
	if ops, ok := s.deltas.Lookup(ctx, key); ok {
		replay := m.Begin()
		if err := operations.Apply(m, ops); err == nil {
			return ops, nil
		}
		replay.Close()
		s.logger.Warn("MODEL", "Stored operation log does not replay, recomputing", map[string]interface{}{
			"model_id": modelID,
			"key":      key,
		})
	}

	result, err := s.modification.Apply(ctx, m, biomassID, req)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return nil, &ModificationFailedError{Errors: result.Errors}
	}
	if err := s.deltas.Store(ctx, modelID, key, result.Operations); err != nil {
		s.logger.Warn("MODEL", "Failed to queue operation log", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return result.Operations, nil
}

func (s *modelService) OpenSession(ctx context.Context, modelID string, caller warehouse.Caller) (*Session, error) {
	lease, err := s.registry.Lease(ctx, modelID, caller)
	if err != nil {
		return nil, err
	}
	metrics.SetLoadedModels(s.registry.Loaded())
	return &Session{service: s, modelID: modelID, lease: lease}, nil
}

// Session serves the messages of one WebSocket connection from a single
// lease. Each message runs in its own nested scope, so messages do not see
// each other's modifications.
type Session struct {
	service *modelService
	modelID string
	lease   *warehouse.Lease
	mu      sync.Mutex
}

func (s *Session) ModelID() string { return s.modelID }

func (s *Session) Handle(ctx context.Context, msg *dto.ModelMessage) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := s.lease.Model.Begin()
	defer scope.Close()
	return s.service.respond(ctx, s.modelID, s.lease, msg, false)
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lease.Release()
}
