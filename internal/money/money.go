// Package money holds the decimal arithmetic shared by the ledger and the
// import adapter. Totals computed independently (declared contract amount
// versus the sum of its lines) are compared with a tolerance rather than
// exact equality.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// DefaultEpsilon is one kopiyka.
var DefaultEpsilon = decimal.New(1, -2)

// Decimal places kept by storage. Unit prices and line amounts carry
// fractions of a kopiyka.
const (
	AmountPlaces   int32 = 2
	PricePlaces    int32 = 4
	QuantityPlaces int32 = 3
)

// FitsPlaces reports whether value has no significant digits past places.
func FitsPlaces(value decimal.Decimal, places int32) bool {
	return value.Equal(value.Truncate(places))
}

// EqualWithinEpsilon reports whether |a-b| <= epsilon.
func EqualWithinEpsilon(a, b, epsilon decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(epsilon)
}

// Exceeds reports whether value is above limit by more than epsilon.
func Exceeds(value, limit, epsilon decimal.Decimal) bool {
	return value.GreaterThan(limit.Add(epsilon))
}

// LineAmount is quantity * price * serviceCount rounded to PricePlaces. A
// zero service count means the line is not a service and counts once.
func LineAmount(quantity, price decimal.Decimal, serviceCount int) (decimal.Decimal, error) {
	if serviceCount == 0 {
		serviceCount = 1
	}
	amount := quantity.Mul(price).Mul(decimal.NewFromInt(int64(serviceCount)))
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s * %s * %d is negative", ErrInvalidAmount, quantity, price, serviceCount)
	}
	return amount.Round(PricePlaces), nil
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FromFloat converts spreadsheet numerics, rejecting NaN and infinities.
func FromFloat(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, value)
	}
	return decimal.NewFromFloat(value), nil
}

// Parse reads a user supplied number. Spaces (including the narrow no-break
// space used as a thousands separator) are dropped and a decimal comma is
// accepted.
func Parse(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		case ',':
			return '.'
		default:
			return r
		}
	}, strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return value, nil
}

// Format renders an amount with two decimals for documents.
func Format(value decimal.Decimal) string {
	return value.StringFixed(2)
}
