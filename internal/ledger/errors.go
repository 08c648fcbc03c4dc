package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountMismatch         = errors.New("specifications total does not match contract amount")
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrContractAmountExceeded = errors.New("specifications total exceeds contract amount")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientRemaining  = errors.New("insufficient remaining quantity")
	ErrHasUsageHistory        = errors.New("specification has usage history")
	ErrInvalidEdit            = errors.New("invalid specification edit")
	ErrInvalidItem            = errors.New("invalid specification item")
)

// Scope names the counter a capacity check failed against.
type Scope string

const (
	ScopeBudget Scope = "budget"
	ScopeKEKV   Scope = "kekv"
)

type AmountMismatchError struct {
	Declared decimal.Decimal
	Computed decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("%s: declared %s, specifications sum to %s", ErrAmountMismatch, e.Declared, e.Computed)
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

type CapacityExceededError struct {
	Scope     Scope
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s: %s has %s available, requested %s", ErrCapacityExceeded, e.Scope, e.Available, e.Requested)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

type ContractAmountExceededError struct {
	ContractAmount decimal.Decimal
	NewTotal       decimal.Decimal
}

func (e *ContractAmountExceededError) Error() string {
	return fmt.Sprintf("%s: contract amount %s, specifications would total %s", ErrContractAmountExceeded, e.ContractAmount, e.NewTotal)
}

func (e *ContractAmountExceededError) Unwrap() error { return ErrContractAmountExceeded }

type InsufficientRemainingError struct {
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientRemainingError) Error() string {
	return fmt.Sprintf("%s: %s remaining, requested %s", ErrInsufficientRemaining, e.Remaining, e.Requested)
}

func (e *InsufficientRemainingError) Unwrap() error { return ErrInsufficientRemaining }

type InvalidEditError struct {
	Consumed decimal.Decimal
	Quantity decimal.Decimal
}

func (e *InvalidEditError) Error() string {
	return fmt.Sprintf("%s: quantity %s is below consumed %s", ErrInvalidEdit, e.Quantity, e.Consumed)
}

func (e *InvalidEditError) Unwrap() error { return ErrInvalidEdit }
