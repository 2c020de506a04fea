package mapper

import (
	"encoding/json"
	"strconv"

	"metabolic-model-be/internal/entity"
	"metabolic-model-be/internal/model"
	"metabolic-model-be/pkg/warehouse"

	"gorm.io/datatypes"
)

type MetabolicModelMapper struct{}

func NewMetabolicModelMapper() *MetabolicModelMapper {
	return &MetabolicModelMapper{}
}

func (m *MetabolicModelMapper) ToEntity(row *model.MetabolicModel) *entity.MetabolicModel {
	if row == nil {
		return nil
	}
	return &entity.MetabolicModel{
		ID:              row.ID,
		Name:            row.Name,
		OrganismID:      row.OrganismID,
		ProjectID:       row.ProjectID,
		BiomassReaction: row.DefaultBiomassReaction,
		Serialized:      []byte(row.ModelSerialized),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func (m *MetabolicModelMapper) ToModel(e *entity.MetabolicModel) *model.MetabolicModel {
	if e == nil {
		return nil
	}
	return &model.MetabolicModel{
		ID:                     e.ID,
		Name:                   e.Name,
		OrganismID:             e.OrganismID,
		ProjectID:              e.ProjectID,
		DefaultBiomassReaction: e.BiomassReaction,
		ModelSerialized:        datatypes.JSON(e.Serialized),
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

func (m *MetabolicModelMapper) ToEntities(rows []*model.MetabolicModel) []*entity.MetabolicModel {
	out := make([]*entity.MetabolicModel, len(rows))
	for i, row := range rows {
		out[i] = m.ToEntity(row)
	}
	return out
}

// ToRecord converts a stored model to the warehouse record the registry
// loads.
func (m *MetabolicModelMapper) ToRecord(e *entity.MetabolicModel) *warehouse.Record {
	return &warehouse.Record{
		ID:              warehouse.ID(strconv.FormatInt(e.ID, 10)),
		Name:            e.Name,
		OrganismID:      warehouse.ID(strconv.FormatInt(e.OrganismID, 10)),
		ProjectID:       e.ProjectID,
		BiomassReaction: e.BiomassReaction,
		Serialized:      json.RawMessage(e.Serialized),
	}
}
