package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Section groups line items of categories that track services and parts
// separately.
type Section string

const (
	SectionNone    Section = ""
	SectionService Section = "SERVICE"
	SectionPart    Section = "PART"
	SectionOther   Section = "OTHER"
)

func (s Section) Valid() bool {
	switch s {
	case SectionNone, SectionService, SectionPart, SectionOther:
		return true
	default:
		return false
	}
}

// Title is the label used in spreadsheets and printouts.
func (s Section) Title() string {
	switch s {
	case SectionService:
		return "Послуги"
	case SectionPart:
		return "Використані запчастини"
	case SectionOther:
		return "Товари"
	default:
		return ""
	}
}

type Specification struct {
	ID           uuid.UUID       `gorm:"column:id;primaryKey" json:"id"`
	ContractID   uuid.UUID       `gorm:"column:contract_id" json:"contract_id"`
	Name         string          `gorm:"column:name" json:"name"`
	Code         string          `gorm:"column:code" json:"code"`
	Unit         string          `gorm:"column:unit" json:"unit"`
	Quantity     decimal.Decimal `gorm:"column:quantity" json:"quantity"`
	Price        decimal.Decimal `gorm:"column:price" json:"price"`
	Amount       decimal.Decimal `gorm:"column:amount" json:"amount"`
	Remaining    decimal.Decimal `gorm:"column:remaining" json:"remaining"`
	Section      Section         `gorm:"column:section" json:"section,omitempty"`
	ServiceCount *int            `gorm:"column:service_count" json:"service_count,omitempty"`
	Position     int             `gorm:"column:position" json:"position"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`

	UsageHistory []UsageRecord `gorm:"foreignKey:SpecificationID" json:"usage_history,omitempty"`
}

func (Specification) TableName() string { return "specifications" }

// Consumed is the quantity already used up.
func (s Specification) Consumed() decimal.Decimal {
	return s.Quantity.Sub(s.Remaining)
}

// Multiplier is the service count, 1 when unset.
func (s Specification) Multiplier() int {
	if s.ServiceCount == nil || *s.ServiceCount == 0 {
		return 1
	}
	return *s.ServiceCount
}

// UsageRecord is an append-only consumption entry against a specification.
type UsageRecord struct {
	ID              uuid.UUID       `gorm:"column:id;primaryKey" json:"id"`
	SpecificationID uuid.UUID       `gorm:"column:specification_id" json:"specification_id"`
	QuantityUsed    decimal.Decimal `gorm:"column:quantity_used" json:"quantity_used"`
	Description     string          `gorm:"column:description" json:"description"`
	DocumentNumber  string          `gorm:"column:document_number" json:"document_number"`
	Date            time.Time       `gorm:"column:date" json:"date"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// LineItem is a specification row before it belongs to a contract, as
// produced by the import adapter or submitted with a new contract.
type LineItem struct {
	Section      Section         `json:"section,omitempty"`
	Number       string          `json:"number,omitempty"`
	Name         string          `json:"name"`
	Code         string          `json:"code"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	ServiceCount *int            `json:"service_count,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}
