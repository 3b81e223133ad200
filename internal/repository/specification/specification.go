package specification

import "gorm.io/gorm"

// Specification narrows or shapes a gorm query.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// All applies specs in order.
type All []Specification

func (s All) Apply(db *gorm.DB) *gorm.DB {
	for _, spec := range s {
		db = spec.Apply(db)
	}
	return db
}
