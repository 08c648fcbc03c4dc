package model

import "github.com/google/uuid"

// Principal is the caller on whose behalf budgets, contracts and vehicles
// are owned.
type Principal struct {
	UserID uuid.UUID
	Name   string
}
