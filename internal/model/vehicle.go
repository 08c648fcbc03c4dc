package model

import (
	"time"

	"github.com/google/uuid"
)

const VehicleStatusInService = "В експлуатації"

type Vehicle struct {
	ID             uuid.UUID `gorm:"column:id;primaryKey" json:"id"`
	OwnerID        uuid.UUID `gorm:"column:owner_id" json:"owner_id"`
	Model          string    `gorm:"column:model" json:"model"`
	MilitaryNumber string    `gorm:"column:military_number" json:"military_number"`
	VIN            string    `gorm:"column:vin" json:"vin"`
	Location       string    `gorm:"column:location" json:"location"`
	Year           int       `gorm:"column:year" json:"year"`
	Status         string    `gorm:"column:status" json:"status"`
	Notes          string    `gorm:"column:notes" json:"notes"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`

	Contracts []Contract `gorm:"many2many:vehicle_contracts;joinForeignKey:VehicleID;joinReferences:ContractID" json:"contracts,omitempty"`
}

func (Vehicle) TableName() string { return "vehicles" }
