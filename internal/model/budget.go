package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget is a кошторис: a yearly allocation split into KEKV categories.
// UsedAmount is only ever moved by contract creation and deletion.
type Budget struct {
	ID          uuid.UUID       `gorm:"column:id;primaryKey" json:"id"`
	OwnerID     uuid.UUID       `gorm:"column:owner_id" json:"owner_id"`
	Name        string          `gorm:"column:name" json:"name"`
	Type        string          `gorm:"column:type" json:"type"`
	Year        int             `gorm:"column:year" json:"year"`
	Date        time.Time       `gorm:"column:date" json:"date"`
	Description string          `gorm:"column:description" json:"description"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount" json:"total_amount"`
	UsedAmount  decimal.Decimal `gorm:"column:used_amount" json:"used_amount"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`

	KEKVs []KEKV `gorm:"foreignKey:BudgetID" json:"kekv,omitempty"`
}

func (Budget) TableName() string { return "budgets" }

// Available is the capacity still free for new contracts.
func (b Budget) Available() decimal.Decimal {
	return b.TotalAmount.Sub(b.UsedAmount)
}

// KEKV is an expenditure category (economic classification code) of a budget.
type KEKV struct {
	ID            uuid.UUID       `gorm:"column:id;primaryKey" json:"id"`
	BudgetID      uuid.UUID       `gorm:"column:budget_id" json:"budget_id"`
	Code          string          `gorm:"column:code" json:"code"`
	Name          string          `gorm:"column:name" json:"name"`
	PlannedAmount decimal.Decimal `gorm:"column:planned_amount" json:"planned_amount"`
	UsedAmount    decimal.Decimal `gorm:"column:used_amount" json:"used_amount"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (KEKV) TableName() string { return "kekv" }

func (k KEKV) Available() decimal.Decimal {
	return k.PlannedAmount.Sub(k.UsedAmount)
}

const (
	KEKVSupplies  = "2210"
	KEKVServices  = "2240"
	KEKVEquipment = "3110"
)

var kekvCatalog = map[string]string{
	KEKVSupplies:  "Предмети, матеріали, обладнання та інвентар",
	KEKVServices:  "Оплата послуг (крім комунальних)",
	KEKVEquipment: "Придбання обладнання і предметів довгострокового користування",
}

// KEKVName resolves the official title of a code, empty when unknown.
func KEKVName(code string) string {
	return kekvCatalog[code]
}

// TracksSections reports whether specifications under the code are split
// into services and used parts.
func TracksSections(code string) bool {
	return code == KEKVServices
}
