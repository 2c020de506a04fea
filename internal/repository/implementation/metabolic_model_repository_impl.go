package implementation

import (
	"context"
	"errors"

	"metabolic-model-be/internal/entity"
	"metabolic-model-be/internal/mapper"
	"metabolic-model-be/internal/model"
	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/internal/repository/specification"

	"gorm.io/gorm"
)

type MetabolicModelRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MetabolicModelMapper
}

func NewMetabolicModelRepository(db *gorm.DB) contract.IMetabolicModelRepository {
	return &MetabolicModelRepositoryImpl{
		db:     db,
		mapper: mapper.NewMetabolicModelMapper(),
	}
}

func (r *MetabolicModelRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MetabolicModelRepositoryImpl) Create(ctx context.Context, m *entity.MetabolicModel) error {
	row := r.mapper.ToModel(m)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*m = *r.mapper.ToEntity(row)
	return nil
}

func (r *MetabolicModelRepositoryImpl) Update(ctx context.Context, m *entity.MetabolicModel) error {
	row := r.mapper.ToModel(m)
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return err
	}
	*m = *r.mapper.ToEntity(row)
	return nil
}

func (r *MetabolicModelRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MetabolicModel, error) {
	var row model.MetabolicModel
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&row), nil
}

func (r *MetabolicModelRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MetabolicModel, error) {
	var rows []*model.MetabolicModel
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(rows), nil
}
