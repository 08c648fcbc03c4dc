package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SectionSubtotal is the amount of one section of an imported
// specification.
type SectionSubtotal struct {
	Section Section         `json:"section"`
	Title   string          `json:"title"`
	Count   int             `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
}

// ImportResult is the normalised content of a specification spreadsheet.
type ImportResult struct {
	KEKVCode  string            `json:"kekv_code"`
	Items     []LineItem        `json:"items"`
	Subtotals []SectionSubtotal `json:"subtotals"`
	Total     decimal.Decimal   `json:"total"`
}

// BudgetReport is the data behind the budget spreadsheet export.
type BudgetReport struct {
	Budget      Budget
	Contracts   []Contract
	GeneratedAt time.Time
}
