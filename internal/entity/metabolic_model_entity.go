package entity

import "time"

type MetabolicModel struct {
	ID              int64
	Name            string
	OrganismID      int64
	ProjectID       *int64
	BiomassReaction string
	// Serialized is the cobrapy JSON document. It is left empty by
	// listings.
	Serialized []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Public reports whether the model belongs to no project.
func (m *MetabolicModel) Public() bool {
	return m.ProjectID == nil
}
