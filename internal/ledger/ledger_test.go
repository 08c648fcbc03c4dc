package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int { return &v }

func newTestLedger() *Ledger {
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return New(money.DefaultEpsilon, WithClock(func() time.Time { return fixed }))
}

func laptopsAndMonitors() []model.LineItem {
	return []model.LineItem{
		{Name: "Ноутбук HP ProBook", Code: "HP-PB-450-G8", Unit: "шт", Quantity: d("2"), Price: d("15000")},
		{Name: "Монітор Dell P2422H", Code: "DELL-P2422H", Unit: "шт", Quantity: d("2"), Price: d("8000")},
	}
}

func TestCheckCapacity(t *testing.T) {
	l := newTestLedger()
	budget := model.Budget{TotalAmount: d("1000000"), UsedAmount: d("46000")}
	kekv := model.KEKV{Code: "2210", PlannedAmount: d("500000"), UsedAmount: d("46000")}

	t.Run("fits", func(t *testing.T) {
		assert.NoError(t, l.CheckCapacity(budget, kekv, d("454000")))
	})

	t.Run("kekv exceeded", func(t *testing.T) {
		err := l.CheckCapacity(budget, kekv, d("470000"))
		require.ErrorIs(t, err, ErrCapacityExceeded)

		var capErr *CapacityExceededError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, ScopeKEKV, capErr.Scope)
		assert.True(t, d("454000").Equal(capErr.Available))
		assert.True(t, d("470000").Equal(capErr.Requested))
	})

	t.Run("budget checked first", func(t *testing.T) {
		err := l.CheckCapacity(budget, kekv, d("2000000"))
		var capErr *CapacityExceededError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, ScopeBudget, capErr.Scope)
		assert.True(t, d("954000").Equal(capErr.Available))
	})

	t.Run("exact fill", func(t *testing.T) {
		assert.NoError(t, l.CheckCapacity(model.Budget{TotalAmount: d("10")}, model.KEKV{PlannedAmount: d("10")}, d("10")))
	})
}

func TestPrepareContract(t *testing.T) {
	l := newTestLedger()
	contractID := uuid.New()

	specs, err := l.PrepareContract(contractID, d("46000"), laptopsAndMonitors())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	for _, spec := range specs {
		assert.Equal(t, contractID, spec.ContractID)
		assert.True(t, spec.Remaining.Equal(spec.Quantity))
		assert.NotEqual(t, uuid.Nil, spec.ID)
	}
	assert.True(t, d("30000").Equal(specs[0].Amount))
	assert.True(t, d("16000").Equal(specs[1].Amount))

	t.Run("within epsilon", func(t *testing.T) {
		_, err := l.PrepareContract(contractID, d("46000.01"), laptopsAndMonitors())
		assert.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		_, err := l.PrepareContract(contractID, d("46001"), laptopsAndMonitors())
		require.ErrorIs(t, err, ErrAmountMismatch)
		var mismatch *AmountMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.True(t, d("46000").Equal(mismatch.Computed))
		assert.True(t, d("46001").Equal(mismatch.Declared))
	})

	t.Run("non positive amount", func(t *testing.T) {
		_, err := l.PrepareContract(contractID, decimal.Zero, nil)
		assert.ErrorIs(t, err, money.ErrInvalidAmount)
	})

	t.Run("service count multiplies", func(t *testing.T) {
		items := []model.LineItem{
			{Section: model.SectionService, Name: "ТО", Unit: "норм/год", Quantity: d("1.5"), Price: d("100"), ServiceCount: intPtr(3)},
			{Section: model.SectionPart, Name: "Фільтр", Unit: "шт", Quantity: d("2"), Price: d("25")},
		}
		specs, err := l.PrepareContract(contractID, d("500"), items)
		require.NoError(t, err)
		assert.True(t, d("450").Equal(specs[0].Amount))
	})

	t.Run("amount past kopiyka", func(t *testing.T) {
		items := []model.LineItem{{Name: "Папір", Unit: "пач", Quantity: d("1"), Price: d("0.004")}}
		_, err := l.PrepareContract(contractID, d("0.004"), items)
		assert.ErrorIs(t, err, money.ErrInvalidAmount)
	})

	t.Run("fine grained lines", func(t *testing.T) {
		items := []model.LineItem{{Name: "Дріт", Unit: "м", Quantity: d("12.345"), Price: d("1.2345")}}
		specs, err := l.PrepareContract(contractID, d("15.24"), items)
		require.NoError(t, err)
		assert.Equal(t, "15.2399", specs[0].Amount.String())
	})

	t.Run("quantity past storage scale", func(t *testing.T) {
		items := []model.LineItem{{Name: "Дріт", Unit: "м", Quantity: d("0.0004"), Price: d("1")}}
		_, err := l.PrepareContract(contractID, d("0.01"), items)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("invalid items", func(t *testing.T) {
		cases := map[string]model.LineItem{
			"missing name":  {Unit: "шт", Quantity: d("1"), Price: d("1")},
			"missing unit":  {Name: "x", Quantity: d("1"), Price: d("1")},
			"zero quantity": {Name: "x", Unit: "шт", Quantity: d("0"), Price: d("1")},
			"zero price":    {Name: "x", Unit: "шт", Quantity: d("1"), Price: d("0")},
			"bad section":   {Name: "x", Unit: "шт", Quantity: d("1"), Price: d("1"), Section: "misc"},
			"fine price":    {Name: "x", Unit: "шт", Quantity: d("1"), Price: d("0.00001")},
			"zero services": {Name: "x", Unit: "шт", Quantity: d("1"), Price: d("1"), ServiceCount: intPtr(0)},
		}
		for name, item := range cases {
			_, err := l.PrepareContract(contractID, d("1"), []model.LineItem{item})
			assert.ErrorIs(t, err, ErrInvalidItem, name)
		}
	})
}

// Creation succeeds iff the lines sum to the declared amount and both
// capacities can absorb it.
func TestCreateAcceptanceProperty(t *testing.T) {
	l := newTestLedger()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		items := make([]model.LineItem, 1+rng.Intn(4))
		total := decimal.Zero
		for j := range items {
			qty := decimal.NewFromInt(int64(1 + rng.Intn(10)))
			price := decimal.New(int64(1+rng.Intn(100000)), -2)
			items[j] = model.LineItem{Name: "item", Unit: "шт", Quantity: qty, Price: price}
			total = total.Add(qty.Mul(price))
		}
		declared := total
		if rng.Intn(3) == 0 {
			declared = total.Add(decimal.New(int64(2+rng.Intn(500)), -2))
		}
		budget := model.Budget{TotalAmount: decimal.NewFromInt(int64(rng.Intn(20000))), UsedAmount: decimal.Zero}
		kekv := model.KEKV{PlannedAmount: decimal.NewFromInt(int64(rng.Intn(20000))), UsedAmount: decimal.Zero}

		_, prepErr := l.PrepareContract(uuid.New(), declared, items)
		capErr := l.CheckCapacity(budget, kekv, declared)
		accepted := prepErr == nil && capErr == nil

		want := money.EqualWithinEpsilon(total, declared, money.DefaultEpsilon) &&
			declared.LessThanOrEqual(budget.Available()) &&
			declared.LessThanOrEqual(kekv.Available())
		assert.Equal(t, want, accepted, "iteration %d", i)
	}
}

func TestCheckContractCeiling(t *testing.T) {
	l := newTestLedger()
	existing := []model.Specification{{Amount: d("30000")}, {Amount: d("16000")}}

	_, err := l.CheckContractCeiling(d("50000"), existing, d("4000"))
	assert.NoError(t, err)

	_, err = l.CheckContractCeiling(d("50000"), existing, d("4000.01"))
	assert.NoError(t, err)

	total, err := l.CheckContractCeiling(d("50000"), existing, d("4000.02"))
	require.ErrorIs(t, err, ErrContractAmountExceeded)
	var ceilErr *ContractAmountExceededError
	require.ErrorAs(t, err, &ceilErr)
	assert.True(t, d("50000.02").Equal(total))
	assert.True(t, d("50000").Equal(ceilErr.ContractAmount))
}

func TestRecordUsage(t *testing.T) {
	l := newTestLedger()
	spec := model.Specification{ID: uuid.New(), Quantity: d("10"), Remaining: d("10")}

	record, err := l.RecordUsage(&spec, UsageInput{QuantityUsed: d("4"), Description: " заміна ", DocumentNumber: "Акт №1"})
	require.NoError(t, err)
	assert.Equal(t, spec.ID, record.SpecificationID)
	assert.Equal(t, "заміна", record.Description)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), record.Date)
	assert.True(t, d("6").Equal(spec.Remaining))
	assert.Len(t, spec.UsageHistory, 1)

	_, err = l.RecordUsage(&spec, UsageInput{QuantityUsed: d("7")})
	require.ErrorIs(t, err, ErrInsufficientRemaining)
	var insufficient *InsufficientRemainingError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, d("6").Equal(insufficient.Remaining))
	assert.True(t, d("6").Equal(spec.Remaining))
	assert.Len(t, spec.UsageHistory, 1)

	for _, q := range []string{"0", "-1", "0.0004"} {
		_, err = l.RecordUsage(&spec, UsageInput{QuantityUsed: d(q)})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Len(t, spec.UsageHistory, 1)

	_, err = l.RecordUsage(&spec, UsageInput{QuantityUsed: d("6")})
	require.NoError(t, err)
	assert.True(t, spec.Remaining.IsZero())
	assert.True(t, HistoryConsistent(spec))
}

func TestUsageHistoryInvariant(t *testing.T) {
	l := newTestLedger()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		qty := decimal.New(int64(1+rng.Intn(10000)), -2)
		spec := model.Specification{ID: uuid.New(), Quantity: qty, Remaining: qty}
		for j := 0; j < 20; j++ {
			use := decimal.New(int64(rng.Intn(3000))-100, -2)
			before := spec.Remaining
			_, err := l.RecordUsage(&spec, UsageInput{QuantityUsed: use})
			if err != nil {
				assert.True(t, before.Equal(spec.Remaining))
			}
			require.True(t, HistoryConsistent(spec), "iteration %d/%d", i, j)
		}
	}
}

func TestEditSpecification(t *testing.T) {
	l := newTestLedger()
	base := func() model.Specification {
		spec := model.Specification{ID: uuid.New(), Name: "Фільтр", Unit: "шт", Quantity: d("10"), Remaining: d("10"), Price: d("5"), Amount: d("50")}
		_, err := l.RecordUsage(&spec, UsageInput{QuantityUsed: d("4")})
		require.NoError(t, err)
		return spec
	}

	t.Run("grow keeps consumed", func(t *testing.T) {
		spec := base()
		qty := d("12")
		require.NoError(t, l.EditSpecification(&spec, SpecificationEdit{Quantity: &qty}))
		assert.True(t, d("8").Equal(spec.Remaining))
		assert.True(t, d("60").Equal(spec.Amount))
		assert.True(t, HistoryConsistent(spec))
	})

	t.Run("shrink to consumed", func(t *testing.T) {
		spec := base()
		qty := d("4")
		require.NoError(t, l.EditSpecification(&spec, SpecificationEdit{Quantity: &qty}))
		assert.True(t, spec.Remaining.IsZero())
	})

	t.Run("below consumed", func(t *testing.T) {
		spec := base()
		qty := d("3")
		err := l.EditSpecification(&spec, SpecificationEdit{Quantity: &qty})
		require.ErrorIs(t, err, ErrInvalidEdit)
		var editErr *InvalidEditError
		require.ErrorAs(t, err, &editErr)
		assert.True(t, d("4").Equal(editErr.Consumed))
		assert.True(t, d("10").Equal(spec.Quantity))
		assert.True(t, d("6").Equal(spec.Remaining))
	})

	t.Run("price and unit", func(t *testing.T) {
		spec := base()
		price := d("7.5")
		unit := "уп"
		require.NoError(t, l.EditSpecification(&spec, SpecificationEdit{Price: &price, Unit: &unit}))
		assert.Equal(t, "уп", spec.Unit)
		assert.True(t, d("75").Equal(spec.Amount))
		assert.True(t, d("6").Equal(spec.Remaining))
	})

	t.Run("rejects blank unit", func(t *testing.T) {
		spec := base()
		unit := " "
		assert.ErrorIs(t, l.EditSpecification(&spec, SpecificationEdit{Unit: &unit}), ErrInvalidItem)
		assert.Equal(t, "шт", spec.Unit)
	})

	t.Run("leaving service section drops count", func(t *testing.T) {
		spec := model.Specification{Name: "Заміна масла", Unit: "год", Section: model.SectionService, ServiceCount: intPtr(3), Quantity: d("2"), Remaining: d("2"), Price: d("100"), Amount: d("600")}
		section := model.SectionPart
		require.NoError(t, l.EditSpecification(&spec, SpecificationEdit{Section: &section}))
		assert.Nil(t, spec.ServiceCount)
		assert.True(t, d("200").Equal(spec.Amount))
	})

	t.Run("zero count clears", func(t *testing.T) {
		spec := model.Specification{Name: "Заміна масла", Unit: "год", Section: model.SectionService, ServiceCount: intPtr(3), Quantity: d("2"), Remaining: d("2"), Price: d("100"), Amount: d("600")}
		count := 0
		require.NoError(t, l.EditSpecification(&spec, SpecificationEdit{ServiceCount: &count}))
		assert.Nil(t, spec.ServiceCount)
		assert.True(t, d("200").Equal(spec.Amount))
	})

	t.Run("rejects quantity past storage scale", func(t *testing.T) {
		spec := base()
		qty := d("10.0001")
		assert.ErrorIs(t, l.EditSpecification(&spec, SpecificationEdit{Quantity: &qty}), ErrInvalidQuantity)
		assert.True(t, d("10").Equal(spec.Quantity))
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		spec := model.Specification{Name: "x", Unit: "шт", Quantity: d("1"), Remaining: d("1"), Price: d("1")}
		qty := decimal.Zero
		assert.ErrorIs(t, l.EditSpecification(&spec, SpecificationEdit{Quantity: &qty}), ErrInvalidQuantity)
	})
}

func TestCheckDeletable(t *testing.T) {
	l := newTestLedger()
	assert.NoError(t, l.CheckDeletable(model.Specification{}, 0))
	assert.ErrorIs(t, l.CheckDeletable(model.Specification{}, 2), ErrHasUsageHistory)
	assert.ErrorIs(t, l.CheckDeletable(model.Specification{UsageHistory: []model.UsageRecord{{}}}, 0), ErrHasUsageHistory)
}

func TestNewDefaultsNegativeEpsilon(t *testing.T) {
	assert.True(t, money.DefaultEpsilon.Equal(New(d("-1")).Epsilon()))
}
