package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
	"github.com/nurpe/koshtorys/internal/repository"
)

type printerMock struct {
	mock.Mock
}

func (m *printerMock) Generate(contract model.Contract) ([]byte, error) {
	args := m.Called(contract)
	content, _ := args.Get(0).([]byte)
	return content, args.Error(1)
}

type lockerMock struct {
	mock.Mock
}

func (m *lockerMock) AcquirePair(ctx context.Context, budgetID, kekvID uuid.UUID) (func(), error) {
	args := m.Called(ctx, budgetID, kekvID)
	release, _ := args.Get(0).(func())
	return release, args.Error(1)
}

func TestCreateContractCommitsBudgetAndKEKV(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	budget, kekv := e.seedBudget(t)

	contract, err := e.contracts.Create(ctx, contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	require.NoError(t, err)

	assert.Equal(t, model.ContractStatusActive, contract.Status)
	require.Len(t, contract.Specifications, 2)
	assert.Equal(t, "Ноутбук", contract.Specifications[0].Name)
	assert.True(t, contract.Specifications[0].Amount.Equal(dec("30000")))
	assert.True(t, contract.Specifications[0].Remaining.Equal(dec("2")))
	assert.Equal(t, "Монітор", contract.Specifications[1].Name)
	assert.True(t, contract.SpecificationsTotal().Equal(contract.Amount))

	budgetUsed, kekvUsed := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, budgetUsed.Equal(dec("46000")), budgetUsed.String())
	assert.True(t, kekvUsed.Equal(dec("46000")), kekvUsed.String())
}

func TestCreateContractRejectsOverKEKVCapacity(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	budget, kekv := e.seedBudget(t)

	_, err := e.contracts.Create(ctx, contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	require.NoError(t, err)

	_, err = e.contracts.Create(ctx, contractInput(budget, kekv, "470000", item("Сервер", "1", "470000")))
	require.ErrorIs(t, err, ledger.ErrCapacityExceeded)

	var capacity *ledger.CapacityExceededError
	require.True(t, errors.As(err, &capacity))
	assert.Equal(t, ledger.ScopeKEKV, capacity.Scope)
	assert.True(t, capacity.Available.Equal(dec("454000")), capacity.Available.String())
	assert.True(t, capacity.Requested.Equal(dec("470000")))

	budgetUsed, kekvUsed := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, budgetUsed.Equal(dec("46000")))
	assert.True(t, kekvUsed.Equal(dec("46000")))

	contracts, err := e.contracts.List(ctx, ListContractsInput{Principal: alice})
	require.NoError(t, err)
	assert.Len(t, contracts, 1)
}

func TestCreateContractRejectsOverBudgetCapacity(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()

	budget, err := e.budgets.Create(ctx, CreateBudgetInput{
		Principal: alice,
		Name:      "Спецфонд",
		Date:      jan2025(),
		KEKVs:     []KEKVInput{{Code: "3110", PlannedAmount: dec("100000")}},
	})
	require.NoError(t, err)
	kekv := kekvByCode(t, budget, "3110")

	// A budget created without a total equals its planned sum, so the
	// budget scope is checked first and reported.
	_, err = e.contracts.Create(ctx, contractInput(budget, kekv, "100000.01", item("Генератор", "1", "100000.01")))
	var capacity *ledger.CapacityExceededError
	require.True(t, errors.As(err, &capacity))
	assert.Equal(t, ledger.ScopeBudget, capacity.Scope)
	assert.True(t, capacity.Available.Equal(dec("100000")))
}

func TestCreateContractRejectsAmountMismatch(t *testing.T) {
	e := newEnv(t, nil, nil)
	budget, kekv := e.seedBudget(t)

	_, err := e.contracts.Create(context.Background(), contractInput(budget, kekv, "45000", laptopsAndMonitors()...))
	require.ErrorIs(t, err, ledger.ErrAmountMismatch)

	var mismatch *ledger.AmountMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.True(t, mismatch.Computed.Equal(dec("46000")))

	budgetUsed, _ := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, budgetUsed.IsZero())
}

func TestCreateContractAcceptsRoundingWithinEpsilon(t *testing.T) {
	e := newEnv(t, nil, nil)
	budget, kekv := e.seedBudget(t)

	contract, err := e.contracts.Create(context.Background(), contractInput(budget, kekv, "100.00", item("Папір", "3", "33.335")))
	require.NoError(t, err)
	assert.True(t, contract.Amount.Equal(dec("100")))
}

func TestCreateContractNotFound(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	budget, kekv := e.seedBudget(t)

	t.Run("unknown budget", func(t *testing.T) {
		input := contractInput(budget, kekv, "46000", laptopsAndMonitors()...)
		input.BudgetID = uuid.New()
		_, err := e.contracts.Create(ctx, input)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("kekv of another budget", func(t *testing.T) {
		other, err := e.budgets.Create(ctx, CreateBudgetInput{
			Principal: alice,
			Name:      "Інший",
			Date:      jan2025(),
			KEKVs:     []KEKVInput{{Code: "2210", PlannedAmount: dec("500000")}},
		})
		require.NoError(t, err)

		input := contractInput(budget, kekvByCode(t, other, "2210"), "46000", laptopsAndMonitors()...)
		_, err = e.contracts.Create(ctx, input)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("budget of another owner", func(t *testing.T) {
		input := contractInput(budget, kekv, "46000", laptopsAndMonitors()...)
		input.Principal = bob
		_, err := e.contracts.Create(ctx, input)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateContractValidatesMetadata(t *testing.T) {
	e := newEnv(t, nil, nil)
	budget, kekv := e.seedBudget(t)

	cases := map[string]func(*CreateContractInput){
		"missing number":     func(in *CreateContractInput) { in.Number = " " },
		"missing contractor": func(in *CreateContractInput) { in.Contractor = "" },
		"end before start":   func(in *CreateContractInput) { in.EndDate = in.StartDate.AddDate(0, 0, -1) },
		"unknown status":     func(in *CreateContractInput) { in.Status = "ARCHIVED" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := contractInput(budget, kekv, "46000", laptopsAndMonitors()...)
			mutate(&input)
			_, err := e.contracts.Create(context.Background(), input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	t.Run("invalid line item", func(t *testing.T) {
		_, err := e.contracts.Create(context.Background(), contractInput(budget, kekv, "100", item("Папір", "0", "100")))
		assert.ErrorIs(t, err, ledger.ErrInvalidItem)
	})
}

func TestDeleteContractRestoresCapacity(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	budget, kekv := e.seedBudget(t)

	contract, err := e.contracts.Create(ctx, contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	require.NoError(t, err)

	_, err = e.specs.RecordUsage(ctx, RecordUsageInput{
		Principal:       alice,
		SpecificationID: contract.Specifications[0].ID,
		UsageInput:      ledger.UsageInput{QuantityUsed: dec("1")},
	})
	require.NoError(t, err)

	require.ErrorIs(t, e.contracts.Delete(ctx, bob, contract.ID), ErrNotFound)
	require.NoError(t, e.contracts.Delete(ctx, alice, contract.ID))

	budgetUsed, kekvUsed := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, budgetUsed.IsZero(), budgetUsed.String())
	assert.True(t, kekvUsed.IsZero(), kekvUsed.String())

	var specCount, usageCount int64
	require.NoError(t, e.db.Table("specifications").Where("contract_id = ?", contract.ID).Count(&specCount).Error)
	require.NoError(t, e.db.Table("usage_records").Count(&usageCount).Error)
	assert.Zero(t, specCount)
	assert.Zero(t, usageCount)

	_, err = e.contracts.Get(ctx, alice, contract.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.contracts.Delete(ctx, alice, contract.ID), ErrNotFound)
}

func TestFractionalContractsKeepExactTotals(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	budget, kekv := e.seedBudget(t)

	small, err := e.contracts.Create(ctx, contractInput(budget, kekv, "0.1", item("Скоба", "1", "0.1")))
	require.NoError(t, err)
	_, err = e.contracts.Create(ctx, contractInput(budget, kekv, "0.2", item("Скоба", "2", "0.1")))
	require.NoError(t, err)

	budgetUsed, kekvUsed := e.usage(t, budget.ID, kekv.ID)
	assert.Equal(t, "0.3", budgetUsed.String())
	assert.Equal(t, "0.3", kekvUsed.String())

	require.NoError(t, e.contracts.Delete(ctx, alice, small.ID))
	budgetUsed, kekvUsed = e.usage(t, budget.ID, kekv.ID)
	assert.Equal(t, "0.2", budgetUsed.String())
	assert.Equal(t, "0.2", kekvUsed.String())
}

func TestCreateContractRejectsAmountPastKopiyka(t *testing.T) {
	e := newEnv(t, nil, nil)
	budget, kekv := e.seedBudget(t)

	_, err := e.contracts.Create(context.Background(), contractInput(budget, kekv, "0.004", item("Скоба", "1", "0.004")))
	assert.ErrorIs(t, err, money.ErrInvalidAmount)

	budgetUsed, _ := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, budgetUsed.IsZero())
}

func TestConcurrentContractsNeverOvercommit(t *testing.T) {
	e := newEnv(t, nil, nil)
	budget, kekv := e.seedBudget(t)

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := contractInput(budget, kekv, "60000", item("Ноутбук", "4", "15000"))
			input.Number = fmt.Sprintf("%d/25", i+1)
			_, err := e.contracts.Create(context.Background(), input)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ledger.ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, created)
	assert.Equal(t, 2, rejected)

	budgetUsed, kekvUsed := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, kekvUsed.Equal(dec("480000")), kekvUsed.String())
	assert.True(t, budgetUsed.Equal(dec("480000")), budgetUsed.String())
}

func TestContractLockerIsHeldAroundTheCommit(t *testing.T) {
	e := newEnv(t, nil, nil)
	budget, kekv := e.seedBudget(t)

	released := false
	locker := &lockerMock{}
	locker.On("AcquirePair", mock.Anything, budget.ID, kekv.ID).Return(func() { released = true }, nil).Once()
	e.contracts.locker = locker

	_, err := e.contracts.Create(context.Background(), contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	require.NoError(t, err)
	assert.True(t, released)
	locker.AssertExpectations(t)

	failing := &lockerMock{}
	failing.On("AcquirePair", mock.Anything, budget.ID, kekv.ID).Return(nil, errors.New("redis down")).Once()
	e.contracts.locker = failing

	_, err = e.contracts.Create(context.Background(), contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestListAndUpdateContractStatus(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	budget, kekv := e.seedBudget(t)
	services := kekvByCode(t, budget, "2240")

	first, err := e.contracts.Create(ctx, contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	require.NoError(t, err)
	_, err = e.contracts.Create(ctx, contractInput(budget, services, "1200", item("Заміна масла", "1", "1200")))
	require.NoError(t, err)

	all, err := e.contracts.List(ctx, ListContractsInput{Principal: alice})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byKEKV, err := e.contracts.List(ctx, ListContractsInput{Principal: alice, Filter: repository.ContractFilter{KEKVID: &kekv.ID}})
	require.NoError(t, err)
	require.Len(t, byKEKV, 1)
	assert.Equal(t, first.ID, byKEKV[0].ID)

	updated, err := e.contracts.UpdateStatus(ctx, alice, first.ID, model.ContractStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusCompleted, updated.Status)

	_, err = e.contracts.UpdateStatus(ctx, alice, first.ID, "DONE")
	assert.ErrorIs(t, err, ErrInvalidInput)

	budgetUsed, _ := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, budgetUsed.Equal(dec("47200")))

	others, err := e.contracts.List(ctx, ListContractsInput{Principal: bob})
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestContractPrintout(t *testing.T) {
	printer := &printerMock{}
	e := newEnv(t, printer, nil)
	budget, kekv := e.seedBudget(t)

	contract, err := e.contracts.Create(context.Background(), contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	require.NoError(t, err)

	printer.On("Generate", mock.MatchedBy(func(c model.Contract) bool {
		return c.ID == contract.ID && len(c.Specifications) == 2
	})).Return([]byte("%PDF"), nil).Once()

	file, err := e.contracts.Printout(context.Background(), alice, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, ContentTypePDF, file.ContentType)
	assert.Equal(t, "specification-12-25.pdf", file.FileName)
	assert.Equal(t, []byte("%PDF"), file.Content)
	printer.AssertExpectations(t)

	_, err = e.contracts.Printout(context.Background(), bob, contract.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
