package model

import (
	"time"

	"gorm.io/datatypes"
)

// MetabolicModel is a row of the warehouse "models" table.
type MetabolicModel struct {
	ID                     int64          `gorm:"primaryKey"`
	Name                   string         `gorm:"type:varchar(255);not null"`
	OrganismID             int64          `gorm:"index"`
	ProjectID              *int64         `gorm:"index"`
	DefaultBiomassReaction string         `gorm:"type:varchar(255)"`
	ModelSerialized        datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (MetabolicModel) TableName() string {
	return "models"
}
