package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
)

type UsageInput struct {
	QuantityUsed   decimal.Decimal
	Description    string
	DocumentNumber string
}

// RecordUsage consumes quantity from spec and appends the history entry.
// Budget, KEKV and contract totals are untouched: usage tracks physical
// consumption of an already committed quantity. On error spec is unchanged.
func (l *Ledger) RecordUsage(spec *model.Specification, input UsageInput) (model.UsageRecord, error) {
	if !input.QuantityUsed.IsPositive() {
		return model.UsageRecord{}, fmt.Errorf("%w: quantity used must be positive", ErrInvalidQuantity)
	}
	if !money.FitsPlaces(input.QuantityUsed, money.QuantityPlaces) {
		return model.UsageRecord{}, fmt.Errorf("%w: quantity used has more than %d decimal places", ErrInvalidQuantity, money.QuantityPlaces)
	}
	if input.QuantityUsed.GreaterThan(spec.Remaining) {
		return model.UsageRecord{}, &InsufficientRemainingError{Remaining: spec.Remaining, Requested: input.QuantityUsed}
	}

	record := model.UsageRecord{
		ID:              uuid.New(),
		SpecificationID: spec.ID,
		QuantityUsed:    input.QuantityUsed,
		Description:     strings.TrimSpace(input.Description),
		DocumentNumber:  strings.TrimSpace(input.DocumentNumber),
		Date:            l.now(),
	}
	spec.Remaining = spec.Remaining.Sub(input.QuantityUsed)
	spec.UsageHistory = append(spec.UsageHistory, record)
	return record, nil
}

// SpecificationEdit carries the fields to replace; nil means keep. A
// ServiceCount of zero clears the count, and so does moving a service line
// to another section.
type SpecificationEdit struct {
	Name         *string
	Code         *string
	Unit         *string
	Quantity     *decimal.Decimal
	Price        *decimal.Decimal
	ServiceCount *int
	Section      *model.Section
}

// EditSpecification applies edit to spec. The consumed quantity is held
// constant, so remaining becomes the new quantity minus what was already
// used; a quantity below that is rejected.
func (l *Ledger) EditSpecification(spec *model.Specification, edit SpecificationEdit) error {
	next := *spec

	if edit.Name != nil {
		next.Name = strings.TrimSpace(*edit.Name)
	}
	if edit.Code != nil {
		next.Code = strings.TrimSpace(*edit.Code)
	}
	if edit.Unit != nil {
		next.Unit = strings.TrimSpace(*edit.Unit)
	}
	if edit.Quantity != nil {
		next.Quantity = *edit.Quantity
	}
	if edit.Price != nil {
		next.Price = *edit.Price
	}
	if edit.ServiceCount != nil {
		count := *edit.ServiceCount
		next.ServiceCount = &count
		if count == 0 {
			next.ServiceCount = nil
		}
	}
	if edit.Section != nil {
		next.Section = *edit.Section
		if spec.Section == model.SectionService && next.Section != model.SectionService && edit.ServiceCount == nil {
			next.ServiceCount = nil
		}
	}

	if next.Name == "" || next.Unit == "" {
		return fmt.Errorf("%w: name and unit are required", ErrInvalidItem)
	}
	if !next.Section.Valid() {
		return fmt.Errorf("%w: unknown section %q", ErrInvalidItem, next.Section)
	}
	if !next.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidQuantity)
	}
	if !money.FitsPlaces(next.Quantity, money.QuantityPlaces) {
		return fmt.Errorf("%w: quantity has more than %d decimal places", ErrInvalidQuantity, money.QuantityPlaces)
	}
	if !next.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidItem)
	}
	if !money.FitsPlaces(next.Price, money.PricePlaces) {
		return fmt.Errorf("%w: price has more than %d decimal places", ErrInvalidItem, money.PricePlaces)
	}
	if next.ServiceCount != nil && *next.ServiceCount < 1 {
		return fmt.Errorf("%w: service count must be at least 1", ErrInvalidItem)
	}

	consumed := spec.Consumed()
	if next.Quantity.LessThan(consumed) {
		return &InvalidEditError{Consumed: consumed, Quantity: next.Quantity}
	}

	amount, err := money.LineAmount(next.Quantity, next.Price, next.Multiplier())
	if err != nil {
		return err
	}
	next.Amount = amount
	next.Remaining = next.Quantity.Sub(consumed)

	*spec = next
	return nil
}

// CheckDeletable refuses to drop a specification that has been consumed;
// its usage is an audit trail.
func (l *Ledger) CheckDeletable(spec model.Specification, usageCount int) error {
	if usageCount > 0 || len(spec.UsageHistory) > 0 {
		return ErrHasUsageHistory
	}
	return nil
}

// HistoryConsistent reports whether the recorded usage accounts exactly for
// the consumed quantity.
func HistoryConsistent(spec model.Specification) bool {
	used := decimal.Zero
	for _, record := range spec.UsageHistory {
		used = used.Add(record.QuantityUsed)
	}
	return used.Equal(spec.Consumed()) &&
		!spec.Remaining.IsNegative() &&
		spec.Remaining.LessThanOrEqual(spec.Quantity)
}
