package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/koshtorys/internal/model"
)

type SpecificationRepository struct {
	db *gorm.DB
}

func NewSpecificationRepository(db *gorm.DB) *SpecificationRepository {
	return &SpecificationRepository{db: db}
}

func (r *SpecificationRepository) WithTx(tx *gorm.DB) *SpecificationRepository {
	return &SpecificationRepository{db: tx}
}

func (r *SpecificationRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.Specification, error) {
	var specs []model.Specification
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("position ASC, created_at ASC").
		Find(&specs).Error
	if err != nil {
		return nil, err
	}
	return specs, nil
}

// Get loads the specification with its usage history, oldest first.
func (r *SpecificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Specification, error) {
	var spec model.Specification
	err := r.db.WithContext(ctx).
		Preload("UsageHistory", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Where("id = ?", id).
		First(&spec).Error
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

func (r *SpecificationRepository) LockSpecification(ctx context.Context, id uuid.UUID) (*model.Specification, error) {
	var spec model.Specification
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&spec).Error; err != nil {
		return nil, err
	}
	return &spec, nil
}

func (r *SpecificationRepository) Create(ctx context.Context, spec *model.Specification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(spec).Error
}

// NextPosition is the position that appends a row to the contract.
func (r *SpecificationRepository) NextPosition(ctx context.Context, contractID uuid.UUID) (int, error) {
	var last int
	row := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(MAX(position), 0) FROM specifications WHERE contract_id = ?
	`, contractID).Row()
	if err := row.Scan(&last); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Update writes the editable columns and the derived amount and remaining.
func (r *SpecificationRepository) Update(ctx context.Context, spec *model.Specification) error {
	spec.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Specification{}).
		Where("id = ?", spec.ID).
		Updates(map[string]interface{}{
			"name":          spec.Name,
			"code":          spec.Code,
			"unit":          spec.Unit,
			"quantity":      spec.Quantity,
			"price":         spec.Price,
			"amount":        spec.Amount,
			"remaining":     spec.Remaining,
			"section":       spec.Section,
			"service_count": spec.ServiceCount,
			"updated_at":    spec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SpecificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM specifications WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SpecificationRepository) CountUsage(ctx context.Context, id uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UsageRecord{}).
		Where("specification_id = ?", id).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// AppendUsage stores the usage record and the remaining already reduced by
// the ledger. The update only applies while the stored remaining still
// covers the record, so a lost race surfaces as ErrStaleRemaining.
func (r *SpecificationRepository) AppendUsage(ctx context.Context, spec *model.Specification, record *model.UsageRecord) error {
	db := r.db.WithContext(ctx)
	res := db.Exec(`
		UPDATE specifications
		SET remaining = ?, updated_at = ?
		WHERE id = ? AND remaining >= ?
	`, spec.Remaining, time.Now().UTC(), spec.ID, record.QuantityUsed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRemaining
	}
	return db.Create(record).Error
}

func (r *SpecificationRepository) ListUsage(ctx context.Context, id uuid.UUID) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	err := r.db.WithContext(ctx).
		Where("specification_id = ?", id).
		Order("date ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
