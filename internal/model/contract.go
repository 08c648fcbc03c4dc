package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "ACTIVE"
	ContractStatusCompleted ContractStatus = "COMPLETED"
	ContractStatusDraft     ContractStatus = "DRAFT"
	ContractStatusCancelled ContractStatus = "CANCELLED"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusActive, ContractStatusCompleted, ContractStatusDraft, ContractStatusCancelled:
		return true
	default:
		return false
	}
}

type Contract struct {
	ID         uuid.UUID       `gorm:"column:id;primaryKey" json:"id"`
	OwnerID    uuid.UUID       `gorm:"column:owner_id" json:"owner_id"`
	BudgetID   uuid.UUID       `gorm:"column:budget_id" json:"budget_id"`
	KEKVID     uuid.UUID       `gorm:"column:kekv_id" json:"kekv_id"`
	Number     string          `gorm:"column:number" json:"number"`
	Name       string          `gorm:"column:name" json:"name"`
	DKCode     string          `gorm:"column:dk_code" json:"dk_code"`
	DKName     string          `gorm:"column:dk_name" json:"dk_name"`
	Contractor string          `gorm:"column:contractor" json:"contractor"`
	Amount     decimal.Decimal `gorm:"column:amount" json:"amount"`
	StartDate  time.Time       `gorm:"column:start_date" json:"start_date"`
	EndDate    time.Time       `gorm:"column:end_date" json:"end_date"`
	Status     ContractStatus  `gorm:"column:status" json:"status"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"updated_at"`

	Budget         *Budget         `gorm:"foreignKey:BudgetID" json:"budget,omitempty"`
	KEKV           *KEKV           `gorm:"foreignKey:KEKVID" json:"kekv,omitempty"`
	Specifications []Specification `gorm:"foreignKey:ContractID" json:"specifications,omitempty"`
}

func (Contract) TableName() string { return "contracts" }

// SpecificationsTotal sums the amounts of the loaded specifications.
func (c Contract) SpecificationsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, spec := range c.Specifications {
		total = total.Add(spec.Amount)
	}
	return total
}
