package implementation

import (
	"context"
	"errors"
	"testing"

	"metabolic-model-be/internal/entity"
	"metabolic-model-be/internal/repository/specification"
	"metabolic-model-be/pkg/warehouse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModelRepository struct {
	models map[int64]*entity.MetabolicModel
	err    error
}

func (f *fakeModelRepository) Create(ctx context.Context, m *entity.MetabolicModel) error {
	f.models[m.ID] = m
	return nil
}

func (f *fakeModelRepository) Update(ctx context.Context, m *entity.MetabolicModel) error {
	return f.Create(ctx, m)
}

func (f *fakeModelRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MetabolicModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			return f.models[byID.ID], nil
		}
	}
	return nil, nil
}

func (f *fakeModelRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MetabolicModel, error) {
	var out []*entity.MetabolicModel
	for _, m := range f.models {
		out = append(out, m)
	}
	return out, nil
}

func TestWarehouseSource(t *testing.T) {
	repo := &fakeModelRepository{models: map[int64]*entity.MetabolicModel{
		11: {ID: 11, Name: "e_coli_core", OrganismID: 2, BiomassReaction: "BIOMASS", Serialized: []byte(`{}`)},
	}}
	src := NewWarehouseSource(repo)
	ctx := context.Background()

	rec, err := src.Fetch(ctx, "11", warehouse.Caller{})
	require.NoError(t, err)
	assert.Equal(t, warehouse.ID("11"), rec.ID)
	assert.Equal(t, "BIOMASS", rec.BiomassReaction)

	_, err = src.Fetch(ctx, "12", warehouse.Caller{})
	assert.ErrorIs(t, err, warehouse.ErrModelNotFound)
	_, err = src.Fetch(ctx, "iJO1366", warehouse.Caller{})
	assert.ErrorIs(t, err, warehouse.ErrModelNotFound)

	repo.err = errors.New("connection refused")
	_, err = src.Fetch(ctx, "11", warehouse.Caller{})
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, warehouse.ErrModelNotFound)
}
