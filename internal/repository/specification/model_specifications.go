package specification

import "gorm.io/gorm"

// VisibleTo keeps public models and those of the given projects.
type VisibleTo struct {
	Projects []int64
}

func (s VisibleTo) Apply(db *gorm.DB) *gorm.DB {
	if len(s.Projects) == 0 {
		return db.Where("project_id IS NULL")
	}
	return db.Where("project_id IS NULL OR project_id IN ?", s.Projects)
}

type ByOrganism struct {
	OrganismID int64
}

func (s ByOrganism) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("organism_id = ?", s.OrganismID)
}

// WithoutDocument skips the serialized model column, for listings.
type WithoutDocument struct{}

func (WithoutDocument) Apply(db *gorm.DB) *gorm.DB {
	return db.Omit("model_serialized")
}
