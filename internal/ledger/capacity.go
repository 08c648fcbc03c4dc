package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/model"
)

// CheckCapacity verifies the budget, then the KEKV, can absorb amount.
// The first failing scope is reported.
func (l *Ledger) CheckCapacity(budget model.Budget, kekv model.KEKV, amount decimal.Decimal) error {
	if available := budget.Available(); amount.GreaterThan(available) {
		return &CapacityExceededError{Scope: ScopeBudget, Available: available, Requested: amount}
	}
	if available := kekv.Available(); amount.GreaterThan(available) {
		return &CapacityExceededError{Scope: ScopeKEKV, Available: available, Requested: amount}
	}
	return nil
}
