package implementation

import (
	"context"
	"fmt"
	"strconv"

	"metabolic-model-be/internal/mapper"
	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/internal/repository/specification"
	"metabolic-model-be/pkg/warehouse"
)

// WarehouseSource serves registry loads from the models table.
type WarehouseSource struct {
	repo   contract.IMetabolicModelRepository
	mapper *mapper.MetabolicModelMapper
}

func NewWarehouseSource(repo contract.IMetabolicModelRepository) *WarehouseSource {
	return &WarehouseSource{repo: repo, mapper: mapper.NewMetabolicModelMapper()}
}

func (s *WarehouseSource) Fetch(ctx context.Context, modelID string, caller warehouse.Caller) (*warehouse.Record, error) {
	id, err := strconv.ParseInt(modelID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", modelID, warehouse.ErrModelNotFound)
	}
	m, err := s.repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, fmt.Errorf("query model %d: %w", id, err)
	}
	if m == nil {
		return nil, fmt.Errorf("model %d: %w", id, warehouse.ErrModelNotFound)
	}
	return s.mapper.ToRecord(m), nil
}
