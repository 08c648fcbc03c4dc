package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/model"
)

func (e *env) seedContract(t *testing.T) *model.Contract {
	t.Helper()
	budget, kekv := e.seedBudget(t)
	contract, err := e.contracts.Create(context.Background(), contractInput(budget, kekv, "46000", laptopsAndMonitors()...))
	require.NoError(t, err)
	return contract
}

func use(quantity string) ledger.UsageInput {
	return ledger.UsageInput{QuantityUsed: dec(quantity), DocumentNumber: "ВН-1"}
}

func TestRecordUsageConsumesRemaining(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()

	budget, kekv := e.seedBudget(t)
	contract, err := e.contracts.Create(ctx, contractInput(budget, kekv, "46000", item("Папір", "10", "4600")))
	require.NoError(t, err)
	specID := contract.Specifications[0].ID

	spec, err := e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: specID, UsageInput: use("4")})
	require.NoError(t, err)
	assert.True(t, spec.Remaining.Equal(dec("6")), spec.Remaining.String())
	require.Len(t, spec.UsageHistory, 1)
	assert.True(t, spec.UsageHistory[0].QuantityUsed.Equal(dec("4")))
	assert.Equal(t, "ВН-1", spec.UsageHistory[0].DocumentNumber)

	_, err = e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: specID, UsageInput: use("7")})
	var insufficient *ledger.InsufficientRemainingError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Remaining.Equal(dec("6")))
	assert.True(t, insufficient.Requested.Equal(dec("7")))

	_, err = e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: specID, UsageInput: use("0")})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	spec, err = e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: specID, UsageInput: use("6")})
	require.NoError(t, err)
	assert.True(t, spec.Remaining.IsZero())
	assert.True(t, ledger.HistoryConsistent(*spec))

	history, err := e.specs.Usage(ctx, alice, specID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	budgetUsed, kekvUsed := e.usage(t, budget.ID, kekv.ID)
	assert.True(t, budgetUsed.Equal(dec("46000")))
	assert.True(t, kekvUsed.Equal(dec("46000")))
}

func TestRecordUsageFractionalQuantities(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()

	budget, kekv := e.seedBudget(t)
	contract, err := e.contracts.Create(ctx, contractInput(budget, kekv, "30", item("Мастило", "0.3", "100")))
	require.NoError(t, err)
	specID := contract.Specifications[0].ID

	for _, want := range []string{"0.2", "0.1", "0"} {
		spec, err := e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: specID, UsageInput: use("0.1")})
		require.NoError(t, err)
		assert.Equal(t, want, spec.Remaining.String())
		assert.True(t, ledger.HistoryConsistent(*spec))
	}

	_, err = e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: specID, UsageInput: use("0.001")})
	assert.ErrorIs(t, err, ledger.ErrInsufficientRemaining)
}

func TestRecordUsageRejectsQuantityPastStorageScale(t *testing.T) {
	e := newEnv(t, nil, nil)
	contract := e.seedContract(t)

	_, err := e.specs.RecordUsage(context.Background(), RecordUsageInput{Principal: alice, SpecificationID: contract.Specifications[0].ID, UsageInput: use("0.0004")})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	history, err := e.specs.Usage(context.Background(), alice, contract.Specifications[0].ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordUsageHidesOtherOwners(t *testing.T) {
	e := newEnv(t, nil, nil)
	contract := e.seedContract(t)

	_, err := e.specs.RecordUsage(context.Background(), RecordUsageInput{Principal: bob, SpecificationID: contract.Specifications[0].ID, UsageInput: use("1")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.specs.RecordUsage(context.Background(), RecordUsageInput{Principal: alice, SpecificationID: uuid.New(), UsageInput: use("1")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.specs.Usage(context.Background(), bob, contract.Specifications[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddSpecificationStaysWithinContract(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	contract := e.seedContract(t)

	_, err := e.specs.Add(ctx, alice, contract.ID, item("Миша", "1", "500"))
	var exceeded *ledger.ContractAmountExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.True(t, exceeded.NewTotal.Equal(dec("46500")))

	monitors := contract.Specifications[1]
	require.NoError(t, e.specs.Delete(ctx, alice, monitors.ID))

	added, err := e.specs.Add(ctx, alice, contract.ID, item("Монітор 27\"", "1", "16000"))
	require.NoError(t, err)
	assert.Equal(t, 2, added.Position)
	assert.True(t, added.Remaining.Equal(dec("1")))

	specs, err := e.specs.List(ctx, alice, contract.ID)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Ноутбук", specs[0].Name)
	assert.Equal(t, added.ID, specs[1].ID)

	_, err = e.specs.Add(ctx, bob, contract.ID, item("Миша", "1", "1"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.specs.Add(ctx, alice, uuid.New(), item("Миша", "1", "1"))
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := e.contracts.Get(ctx, alice, contract.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("46000")))
}

func TestEditSpecification(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	contract := e.seedContract(t)
	laptops := contract.Specifications[0]

	_, err := e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: laptops.ID, UsageInput: use("1")})
	require.NoError(t, err)

	t.Run("quantity below consumed", func(t *testing.T) {
		quantity := dec("0.5")
		_, err := e.specs.Edit(ctx, alice, laptops.ID, ledger.SpecificationEdit{Quantity: &quantity})
		var invalidEdit *ledger.InvalidEditError
		require.True(t, errors.As(err, &invalidEdit))
		assert.True(t, invalidEdit.Consumed.Equal(dec("1")))
	})

	t.Run("price above contract", func(t *testing.T) {
		price := dec("16000")
		_, err := e.specs.Edit(ctx, alice, laptops.ID, ledger.SpecificationEdit{Price: &price})
		assert.ErrorIs(t, err, ledger.ErrContractAmountExceeded)
	})

	t.Run("cheaper price keeps consumption", func(t *testing.T) {
		price := dec("14000")
		name := "Ноутбук 15\""
		spec, err := e.specs.Edit(ctx, alice, laptops.ID, ledger.SpecificationEdit{Price: &price, Name: &name})
		require.NoError(t, err)
		assert.True(t, spec.Amount.Equal(dec("28000")))
		assert.True(t, spec.Remaining.Equal(dec("1")))

		specs, err := e.specs.List(ctx, alice, contract.ID)
		require.NoError(t, err)
		assert.Equal(t, name, specs[0].Name)
		assert.True(t, specs[0].Amount.Equal(dec("28000")))
	})

	t.Run("other owner", func(t *testing.T) {
		price := dec("1")
		_, err := e.specs.Edit(ctx, bob, laptops.ID, ledger.SpecificationEdit{Price: &price})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteSpecificationWithUsageIsRefused(t *testing.T) {
	e := newEnv(t, nil, nil)
	ctx := context.Background()
	contract := e.seedContract(t)
	laptops := contract.Specifications[0]

	_, err := e.specs.RecordUsage(ctx, RecordUsageInput{Principal: alice, SpecificationID: laptops.ID, UsageInput: use("1")})
	require.NoError(t, err)

	assert.ErrorIs(t, e.specs.Delete(ctx, alice, laptops.ID), ledger.ErrHasUsageHistory)
	assert.ErrorIs(t, e.specs.Delete(ctx, bob, contract.Specifications[1].ID), ErrNotFound)
	require.NoError(t, e.specs.Delete(ctx, alice, contract.Specifications[1].ID))
	assert.ErrorIs(t, e.specs.Delete(ctx, alice, contract.Specifications[1].ID), ErrNotFound)

	specs, err := e.specs.List(ctx, alice, contract.ID)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, laptops.ID, specs[0].ID)
}
