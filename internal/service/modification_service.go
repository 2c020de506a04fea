package service

import (
	"context"
	"fmt"
	"strings"

	"metabolic-model-be/internal/dto"
	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/pkg/metrics"
	"metabolic-model-be/pkg/adapter"
	"metabolic-model-be/pkg/deltas"
	"metabolic-model-be/pkg/events"
	"metabolic-model-be/pkg/genotype"
	"metabolic-model-be/pkg/metabolic"
	"metabolic-model-be/pkg/warehouse"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("metabolic-model-be/service")

// ModificationFailedError carries the applier errors of a rejected
// modification request.
type ModificationFailedError struct {
	Errors []string
}

func (e *ModificationFailedError) Error() string {
	return "modification failed: " + strings.Join(e.Errors, "; ")
}

type IModificationService interface {
	Modify(ctx context.Context, modelID string, caller warehouse.Caller, req *dto.ModifyRequest) (*dto.ModifyResponse, error)
	// Apply runs the medium, genotype and measurement appliers in that order
	// on m. The caller owns the scope m is modified in.
	Apply(ctx context.Context, m *metabolic.Model, biomassID string, req *dto.ModifyRequest) (adapter.Result, error)
	// Measured resolves the measured reactions of req without modifying m.
	Measured(ctx context.Context, m *metabolic.Model, biomassID string, req *dto.ModifyRequest) (measured, missing []string)
}

type modificationService struct {
	registry  *warehouse.Registry
	adapter   *adapter.Adapter
	publisher events.Publisher
	logger    logger.ILogger
}

func NewModificationService(
	registry *warehouse.Registry,
	applier *adapter.Adapter,
	publisher events.Publisher,
	logger logger.ILogger,
) IModificationService {
	return &modificationService{
		registry:  registry,
		adapter:   applier,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *modificationService) Modify(ctx context.Context, modelID string, caller warehouse.Caller, req *dto.ModifyRequest) (*dto.ModifyResponse, error) {
	lease, err := s.registry.Lease(ctx, modelID, caller)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	result, err := s.Apply(ctx, lease.Model, lease.Entry.BiomassID(), req)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return nil, &ModificationFailedError{Errors: result.Errors}
	}

	if key, err := deltas.Key(modelID, req.Conditions()); err == nil {
		event := events.NewModelModified(modelID, key, len(result.Operations), len(result.Warnings))
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("MODIFY", "Failed to publish event", map[string]interface{}{"model_id": modelID, "error": err.Error()})
		}
	}

	return &dto.ModifyResponse{
		Operations: result.Operations,
		Warnings:   nonNil(result.Warnings),
	}, nil
}

func (s *modificationService) Apply(ctx context.Context, m *metabolic.Model, biomassID string, req *dto.ModifyRequest) (adapter.Result, error) {
	ctx, span := tracer.Start(ctx, "modification.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("model.id", m.ID),
		attribute.Int("medium.size", len(req.Medium)),
		attribute.Int("measurements.size", len(req.Measurements)),
	)

	var result adapter.Result
	if len(req.Medium) > 0 {
		result.Merge(s.adapter.ApplyMedium(ctx, m, req.Compounds()))
	}

	if len(req.Genotype) > 0 {
		g, err := genotype.Parse(req.Genotype...)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid genotype: %s", err))
		} else {
			result.Merge(s.adapter.ApplyGenotype(ctx, m, g))
		}
	}

	if req.GrowthRate != nil || len(req.Measurements) > 0 {
		measured, err := s.adapter.ApplyMeasurements(ctx, m, biomassID, req.AdapterGrowthRate(), req.AdapterMeasurements())
		if err != nil {
			return result, err
		}
		result.Merge(measured)
	}

	metrics.ApplierMessages(len(result.Warnings), len(result.Errors))
	s.logger.Info("MODIFY", "Applied modifications", map[string]interface{}{
		"model_id":   m.ID,
		"operations": len(result.Operations),
		"warnings":   len(result.Warnings),
		"errors":     len(result.Errors),
	})
	return result, nil
}

func (s *modificationService) Measured(ctx context.Context, m *metabolic.Model, biomassID string, req *dto.ModifyRequest) ([]string, []string) {
	return s.adapter.MeasuredReactions(ctx, m, biomassID, req.AdapterGrowthRate(), req.AdapterMeasurements())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
