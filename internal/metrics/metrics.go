package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nurpe/koshtorys/internal/db"
	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/money"
)

const (
	ResultOK        = "ok"
	ResultRejected  = "rejected"
	ResultNotFound  = "not_found"
	ResultInvalid   = "invalid"
	ResultStorage   = "storage_unavailable"
	ResultCancelled = "cancelled"
	ResultError     = "error"
)

const (
	OpCreateBudget        = "create_budget"
	OpCreateContract      = "create_contract"
	OpDeleteContract      = "delete_contract"
	OpAddSpecification    = "add_specification"
	OpEditSpecification   = "edit_specification"
	OpDeleteSpecification = "delete_specification"
	OpRecordUsage         = "record_usage"
	OpImport              = "import_specifications"
	OpImportVehicles      = "import_vehicles"
)

// LedgerMetrics counts ledger operations by outcome.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	committed  *prometheus.CounterVec
}

// NotFoundChecker lets callers classify their own not-found sentinel
// without this package importing the service layer.
type NotFoundChecker func(error) bool

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "koshtorys",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "koshtorys",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency including the store transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "koshtorys",
			Subsystem: "ledger",
			Name:      "committed_amount_total",
			Help:      "Contract amounts committed to and released from budgets.",
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.committed)
	}
	return m
}

// Observe records one finished operation.
func (m *LedgerMetrics) Observe(operation string, started time.Time, err error, notFound NotFoundChecker) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Classify(err, notFound)).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Committed tracks money moved into (positive) or out of (negative)
// budget usage.
func (m *LedgerMetrics) Committed(amount float64) {
	if m == nil || amount == 0 {
		return
	}
	if amount > 0 {
		m.committed.WithLabelValues("commit").Add(amount)
		return
	}
	m.committed.WithLabelValues("release").Add(-amount)
}

func Classify(err error, notFound NotFoundChecker) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCancelled
	case errors.Is(err, db.ErrStorageUnavailable):
		return ResultStorage
	case notFound != nil && notFound(err):
		return ResultNotFound
	case errors.Is(err, ledger.ErrAmountMismatch),
		errors.Is(err, ledger.ErrCapacityExceeded),
		errors.Is(err, ledger.ErrContractAmountExceeded),
		errors.Is(err, ledger.ErrInsufficientRemaining),
		errors.Is(err, ledger.ErrHasUsageHistory):
		return ResultRejected
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidEdit),
		errors.Is(err, ledger.ErrInvalidItem),
		errors.Is(err, money.ErrInvalidAmount):
		return ResultInvalid
	default:
		return ResultError
	}
}
