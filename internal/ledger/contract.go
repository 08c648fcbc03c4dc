package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
)

// NewSpecification validates a line item and turns it into a specification
// of the contract with its full quantity remaining.
func (l *Ledger) NewSpecification(contractID uuid.UUID, item model.LineItem) (model.Specification, error) {
	name := strings.TrimSpace(item.Name)
	unit := strings.TrimSpace(item.Unit)
	if name == "" || unit == "" {
		return model.Specification{}, fmt.Errorf("%w: name and unit are required", ErrInvalidItem)
	}
	if !item.Quantity.IsPositive() {
		return model.Specification{}, fmt.Errorf("%w: quantity of %q must be positive", ErrInvalidItem, name)
	}
	if !money.FitsPlaces(item.Quantity, money.QuantityPlaces) {
		return model.Specification{}, fmt.Errorf("%w: quantity of %q has more than %d decimal places", ErrInvalidQuantity, name, money.QuantityPlaces)
	}
	if !item.Price.IsPositive() {
		return model.Specification{}, fmt.Errorf("%w: price of %q must be positive", ErrInvalidItem, name)
	}
	if !money.FitsPlaces(item.Price, money.PricePlaces) {
		return model.Specification{}, fmt.Errorf("%w: price of %q has more than %d decimal places", ErrInvalidItem, name, money.PricePlaces)
	}
	if !item.Section.Valid() {
		return model.Specification{}, fmt.Errorf("%w: unknown section %q", ErrInvalidItem, item.Section)
	}
	serviceCount := 0
	if item.ServiceCount != nil {
		if *item.ServiceCount < 1 {
			return model.Specification{}, fmt.Errorf("%w: service count of %q must be at least 1", ErrInvalidItem, name)
		}
		serviceCount = *item.ServiceCount
	}

	amount, err := money.LineAmount(item.Quantity, item.Price, serviceCount)
	if err != nil {
		return model.Specification{}, err
	}

	return model.Specification{
		ID:           uuid.New(),
		ContractID:   contractID,
		Name:         name,
		Code:         strings.TrimSpace(item.Code),
		Unit:         unit,
		Quantity:     item.Quantity,
		Price:        item.Price,
		Amount:       amount,
		Remaining:    item.Quantity,
		Section:      item.Section,
		ServiceCount: item.ServiceCount,
	}, nil
}

// PrepareContract builds the specifications of a new contract and checks
// that they add up to the declared amount.
func (l *Ledger) PrepareContract(contractID uuid.UUID, declared decimal.Decimal, items []model.LineItem) ([]model.Specification, error) {
	if !declared.IsPositive() {
		return nil, fmt.Errorf("%w: contract amount must be positive", money.ErrInvalidAmount)
	}
	if !money.FitsPlaces(declared, money.AmountPlaces) {
		return nil, fmt.Errorf("%w: contract amount has more than %d decimal places", money.ErrInvalidAmount, money.AmountPlaces)
	}

	specs := make([]model.Specification, 0, len(items))
	total := decimal.Zero
	for i, item := range items {
		spec, err := l.NewSpecification(contractID, item)
		if err != nil {
			return nil, err
		}
		spec.Position = i + 1
		total = total.Add(spec.Amount)
		specs = append(specs, spec)
	}

	if !money.EqualWithinEpsilon(total, declared, l.epsilon) {
		return nil, &AmountMismatchError{Declared: declared, Computed: total}
	}
	return specs, nil
}

// CheckContractCeiling verifies that adding amount to the existing
// specifications keeps them within the contract amount. Specifications
// allocate inside a fixed contract; they never grow it.
func (l *Ledger) CheckContractCeiling(contractAmount decimal.Decimal, existing []model.Specification, amount decimal.Decimal) (decimal.Decimal, error) {
	total := amount
	for _, spec := range existing {
		total = total.Add(spec.Amount)
	}
	if money.Exceeds(total, contractAmount, l.epsilon) {
		return total, &ContractAmountExceededError{ContractAmount: contractAmount, NewTotal: total}
	}
	return total, nil
}
