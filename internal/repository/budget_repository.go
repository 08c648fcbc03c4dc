package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
)

type BudgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *BudgetRepository) WithTx(tx *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: tx}
}

func (r *BudgetRepository) Create(ctx context.Context, budget *model.Budget) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(budget).Error; err != nil {
		return err
	}
	if len(budget.KEKVs) == 0 {
		return nil
	}
	return db.Create(&budget.KEKVs).Error
}

func (r *BudgetRepository) Get(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	var budget model.Budget
	err := r.db.WithContext(ctx).
		Preload("KEKVs", func(db *gorm.DB) *gorm.DB { return db.Order("code ASC") }).
		Where("id = ?", id).
		First(&budget).Error
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

func (r *BudgetRepository) List(ctx context.Context, ownerID uuid.UUID) ([]model.Budget, error) {
	var budgets []model.Budget
	err := r.db.WithContext(ctx).
		Preload("KEKVs", func(db *gorm.DB) *gorm.DB { return db.Order("code ASC") }).
		Where("owner_id = ?", ownerID).
		Order("year DESC, created_at DESC").
		Find(&budgets).Error
	if err != nil {
		return nil, err
	}
	return budgets, nil
}

// LockBudget reads the budget row under a write lock.
func (r *BudgetRepository) LockBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	var budget model.Budget
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&budget).Error; err != nil {
		return nil, err
	}
	return &budget, nil
}

// LockKEKV reads the category row under a write lock. Callers lock the
// budget first so concurrent writers queue in the same order.
func (r *BudgetRepository) LockKEKV(ctx context.Context, id uuid.UUID) (*model.KEKV, error) {
	var kekv model.KEKV
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&kekv).Error; err != nil {
		return nil, err
	}
	return &kekv, nil
}

// AddUsage moves the used amount of the locked budget and one of its
// categories by delta. A negative delta releases capacity. The new totals
// are computed in decimal and written as absolute values, so the column
// storage never does the arithmetic.
func (r *BudgetRepository) AddUsage(ctx context.Context, budget *model.Budget, kekv *model.KEKV, delta decimal.Decimal) error {
	db := r.db.WithContext(ctx)
	budgetUsed := budget.UsedAmount.Add(delta)
	kekvUsed := kekv.UsedAmount.Add(delta)

	res := db.Model(&model.Budget{}).
		Where("id = ?", budget.ID).
		Updates(map[string]interface{}{"used_amount": budgetUsed})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	res = db.Model(&model.KEKV{}).
		Where("id = ? AND budget_id = ?", kekv.ID, budget.ID).
		Updates(map[string]interface{}{"used_amount": kekvUsed})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	budget.UsedAmount = budgetUsed
	kekv.UsedAmount = kekvUsed
	return nil
}

// SumContracts totals the contract amounts charged to the budget.
func (r *BudgetRepository) SumContracts(ctx context.Context, budgetID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.Contract{}).
		Where("budget_id = ?", budgetID).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return money.Sum(amounts...), nil
}
