package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/koshtorys/internal/model"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) WithTx(tx *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: tx}
}

// List returns the owner's vehicles, optionally narrowed by a search term
// matched against model, military number, VIN and location.
func (r *VehicleRepository) List(ctx context.Context, ownerID uuid.UUID, search string) ([]model.Vehicle, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if term := strings.TrimSpace(search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		query = query.Where(`
			LOWER(model) LIKE ? OR LOWER(military_number) LIKE ? OR LOWER(vin) LIKE ? OR LOWER(location) LIKE ?
		`, pattern, pattern, pattern, pattern)
	}

	var vehicles []model.Vehicle
	if err := query.Order("model ASC, vin ASC").Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *VehicleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).
		Preload("Contracts", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		Where("id = ?", id).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *VehicleRepository) FindByVIN(ctx context.Context, vin string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := r.db.WithContext(ctx).Where("vin = ?", vin).First(&vehicle).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(vehicle).Error
}

func (r *VehicleRepository) Update(ctx context.Context, vehicle *model.Vehicle) error {
	res := r.db.WithContext(ctx).
		Model(&model.Vehicle{}).
		Where("id = ?", vehicle.ID).
		Updates(map[string]interface{}{
			"model":           vehicle.Model,
			"military_number": vehicle.MilitaryNumber,
			"vin":             vehicle.VIN,
			"location":        vehicle.Location,
			"year":            vehicle.Year,
			"status":          vehicle.Status,
			"notes":           vehicle.Notes,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *VehicleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec(`DELETE FROM vehicle_contracts WHERE vehicle_id = ?`, id).Error; err != nil {
		return err
	}
	res := db.Exec(`DELETE FROM vehicles WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceContracts sets the vehicle's contract links to exactly contractIDs.
func (r *VehicleRepository) ReplaceContracts(ctx context.Context, vehicleID uuid.UUID, contractIDs []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec(`DELETE FROM vehicle_contracts WHERE vehicle_id = ?`, vehicleID).Error; err != nil {
		return err
	}
	seen := make(map[uuid.UUID]struct{}, len(contractIDs))
	for _, contractID := range contractIDs {
		if _, ok := seen[contractID]; ok {
			continue
		}
		seen[contractID] = struct{}{}
		if err := db.Exec(`
			INSERT INTO vehicle_contracts (vehicle_id, contract_id) VALUES (?, ?)
		`, vehicleID, contractID).Error; err != nil {
			return err
		}
	}
	return nil
}
