package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate takes a row lock on PostgreSQL; SQLite drops the clause and
// relies on its single writer instead.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ErrStaleRemaining means a conditional decrement found less remaining
// quantity than the caller had read.
var ErrStaleRemaining = errors.New("specification remaining changed concurrently")
