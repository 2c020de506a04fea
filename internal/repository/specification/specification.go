// Package specification holds the query filters the model warehouse
// repository composes.
package specification

import "gorm.io/gorm"

type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
