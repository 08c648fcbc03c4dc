package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/koshtorys/internal/model"
)

type ContractFilter struct {
	BudgetID *uuid.UUID
	KEKVID   *uuid.UUID
	Status   *model.ContractStatus
}

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) WithTx(tx *gorm.DB) *ContractRepository {
	return &ContractRepository{db: tx}
}

// Create inserts the contract together with its specifications.
func (r *ContractRepository) Create(ctx context.Context, contract *model.Contract) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(contract).Error; err != nil {
		return err
	}
	if len(contract.Specifications) == 0 {
		return nil
	}
	return db.Omit(clause.Associations).Create(&contract.Specifications).Error
}

// Get loads the contract with its category and ordered specifications.
func (r *ContractRepository) Get(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).
		Preload("KEKV").
		Preload("Specifications", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("id = ?", id).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// Find reads the bare contract row.
func (r *ContractRepository) Find(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// LockContract reads the bare contract row under a write lock.
func (r *ContractRepository) LockContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) List(ctx context.Context, ownerID uuid.UUID, filter ContractFilter) ([]model.Contract, error) {
	query := r.db.WithContext(ctx).
		Preload("KEKV").
		Where("owner_id = ?", ownerID)
	if filter.BudgetID != nil {
		query = query.Where("budget_id = ?", *filter.BudgetID)
	}
	if filter.KEKVID != nil {
		query = query.Where("kekv_id = ?", *filter.KEKVID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var contracts []model.Contract
	if err := query.Order("start_date DESC, number ASC").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

// ListByBudget returns the budget's contracts with specifications, for
// reports.
func (r *ContractRepository) ListByBudget(ctx context.Context, budgetID uuid.UUID) ([]model.Contract, error) {
	var contracts []model.Contract
	err := r.db.WithContext(ctx).
		Preload("KEKV").
		Preload("Specifications", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		Where("budget_id = ?", budgetID).
		Order("start_date ASC, number ASC").
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *ContractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ContractStatus) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE contracts SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UTC(), id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the contract, its specifications with their usage
// history, and vehicle links.
func (r *ContractRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec(`
		DELETE FROM usage_records
		WHERE specification_id IN (SELECT id FROM specifications WHERE contract_id = ?)
	`, id).Error; err != nil {
		return err
	}
	if err := db.Exec(`DELETE FROM specifications WHERE contract_id = ?`, id).Error; err != nil {
		return err
	}
	if err := db.Exec(`DELETE FROM vehicle_contracts WHERE contract_id = ?`, id).Error; err != nil {
		return err
	}
	res := db.Exec(`DELETE FROM contracts WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
