package contract

import (
	"context"

	"metabolic-model-be/internal/entity"
	"metabolic-model-be/internal/repository/specification"
)

type IMetabolicModelRepository interface {
	Create(ctx context.Context, m *entity.MetabolicModel) error
	Update(ctx context.Context, m *entity.MetabolicModel) error
	// FindOne returns nil without an error when nothing matches.
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MetabolicModel, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MetabolicModel, error)
}
