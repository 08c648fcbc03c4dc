package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/koshtorys/internal/db"
	"github.com/nurpe/koshtorys/internal/db/dbtest"
	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/metrics"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
	"github.com/nurpe/koshtorys/internal/repository"
)

var (
	alice = model.Principal{UserID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "alice"}
	bob   = model.Principal{UserID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Name: "bob"}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type env struct {
	db         *gorm.DB
	budgets    *BudgetService
	contracts  *ContractService
	specs      *SpecificationService
	budgetRepo *repository.BudgetRepository
}

func newEnv(t *testing.T, printer ContractPrinter, reports BudgetReportGenerator) *env {
	t.Helper()
	database := dbtest.Open(t)
	log := zerolog.Nop()
	tx := db.NewTransactor(database, 2, log)
	l := ledger.New(money.DefaultEpsilon)
	m := metrics.NewLedgerMetrics(nil)

	budgetRepo := repository.NewBudgetRepository(database)
	contractRepo := repository.NewContractRepository(database)
	specRepo := repository.NewSpecificationRepository(database)

	return &env{
		db:         database,
		budgets:    NewBudgetService(tx, budgetRepo, contractRepo, reports, m, log),
		contracts:  NewContractService(tx, budgetRepo, contractRepo, l, nil, printer, m, log),
		specs:      NewSpecificationService(tx, contractRepo, specRepo, l, m, log),
		budgetRepo: budgetRepo,
	}
}

// seedBudget creates the budget used throughout: 1,000,000 total with
// KEKV 2210 planned at 500,000 and 2240 at 300,000.
func (e *env) seedBudget(t *testing.T) (*model.Budget, model.KEKV) {
	t.Helper()
	total := dec("1000000")
	budget, err := e.budgets.Create(context.Background(), CreateBudgetInput{
		Principal:   alice,
		Name:        "Загальний фонд",
		Type:        "general",
		Date:        time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		TotalAmount: &total,
		KEKVs: []KEKVInput{
			{Code: "2210", PlannedAmount: dec("500000")},
			{Code: "2240", PlannedAmount: dec("300000")},
		},
	})
	require.NoError(t, err)
	return budget, kekvByCode(t, budget, "2210")
}

func kekvByCode(t *testing.T, budget *model.Budget, code string) model.KEKV {
	t.Helper()
	for _, kekv := range budget.KEKVs {
		if kekv.Code == code {
			return kekv
		}
	}
	t.Fatalf("kekv %s not found", code)
	return model.KEKV{}
}

func contractInput(budget *model.Budget, kekv model.KEKV, amount string, items ...model.LineItem) CreateContractInput {
	return CreateContractInput{
		Principal:      alice,
		BudgetID:       budget.ID,
		KEKVID:         kekv.ID,
		Number:         "12/25",
		Name:           "Комп'ютерна техніка",
		Contractor:     "ТОВ Постачальник",
		Amount:         dec(amount),
		StartDate:      time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Specifications: items,
	}
}

func jan2025() time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
}

func item(name, qty, price string) model.LineItem {
	return model.LineItem{Name: name, Unit: "шт", Quantity: dec(qty), Price: dec(price)}
}

func laptopsAndMonitors() []model.LineItem {
	return []model.LineItem{item("Ноутбук", "2", "15000"), item("Монітор", "2", "8000")}
}

// usage returns the stored budget and KEKV used amounts.
func (e *env) usage(t *testing.T, budgetID, kekvID uuid.UUID) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	budget, err := e.budgetRepo.Get(context.Background(), budgetID)
	require.NoError(t, err)
	return budget.UsedAmount, kekvByCode(t, budget, codeOf(t, budget, kekvID)).UsedAmount
}

func codeOf(t *testing.T, budget *model.Budget, kekvID uuid.UUID) string {
	t.Helper()
	for _, kekv := range budget.KEKVs {
		if kekv.ID == kekvID {
			return kekv.Code
		}
	}
	t.Fatalf("kekv %s not in budget", kekvID)
	return ""
}
