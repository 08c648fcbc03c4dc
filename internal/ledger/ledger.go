// Package ledger keeps budget, KEKV, contract and specification totals
// consistent. It performs no I/O: callers load the entities, ask the ledger
// to validate and mutate them, and persist the result atomically.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/koshtorys/internal/money"
)

type Ledger struct {
	epsilon decimal.Decimal
	now     func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the time stamped on usage records.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(epsilon decimal.Decimal, opts ...Option) *Ledger {
	if epsilon.IsNegative() {
		epsilon = money.DefaultEpsilon
	}
	l := &Ledger{
		epsilon: epsilon,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Epsilon() decimal.Decimal {
	return l.epsilon
}
