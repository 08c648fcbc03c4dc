package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/koshtorys/internal/db"
	"github.com/nurpe/koshtorys/internal/metrics"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/repository"
)

type VehicleParser interface {
	Parse(r io.Reader) ([]model.Vehicle, error)
}

type VehicleService struct {
	tx        *db.Transactor
	vehicles  *repository.VehicleRepository
	contracts *repository.ContractRepository
	parser    VehicleParser
	metrics   *metrics.LedgerMetrics
	log       zerolog.Logger
}

type VehicleInput struct {
	Principal      model.Principal
	Model          string
	MilitaryNumber string
	VIN            string
	Location       string
	Year           int
	Status         string
	Notes          string
	ContractIDs    []uuid.UUID
}

type VehicleImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func NewVehicleService(
	tx *db.Transactor,
	vehicles *repository.VehicleRepository,
	contracts *repository.ContractRepository,
	parser VehicleParser,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) *VehicleService {
	return &VehicleService{
		tx:        tx,
		vehicles:  vehicles,
		contracts: contracts,
		parser:    parser,
		metrics:   m,
		log:       log.With().Str("component", "vehicle_service").Logger(),
	}
}

func (s *VehicleService) List(ctx context.Context, principal model.Principal, search string) ([]model.Vehicle, error) {
	return s.vehicles.List(ctx, principal.UserID, search)
}

func (s *VehicleService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Vehicle, error) {
	vehicle, err := s.vehicles.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	if err := owns(principal, vehicle.OwnerID, "vehicle", id); err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *VehicleService) Create(ctx context.Context, input VehicleInput) (*model.Vehicle, error) {
	vehicle, err := vehicleFromInput(input)
	if err != nil {
		return nil, err
	}
	vehicle.ID = uuid.New()

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		vehicles := s.vehicles.WithTx(tx)
		if err := vehicles.Create(ctx, vehicle); err != nil {
			return duplicateVIN(err, vehicle.VIN)
		}
		if err := s.checkContracts(ctx, s.contracts.WithTx(tx), input.Principal, input.ContractIDs); err != nil {
			return err
		}
		return vehicles.ReplaceContracts(ctx, vehicle.ID, input.ContractIDs)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("vehicle_id", vehicle.ID.String()).Str("vin", vehicle.VIN).Msg("vehicle created")
	return s.vehicles.Get(ctx, vehicle.ID)
}

// Update replaces the vehicle fields and its contract links.
func (s *VehicleService) Update(ctx context.Context, id uuid.UUID, input VehicleInput) (*model.Vehicle, error) {
	if _, err := s.Get(ctx, input.Principal, id); err != nil {
		return nil, err
	}
	vehicle, err := vehicleFromInput(input)
	if err != nil {
		return nil, err
	}
	vehicle.ID = id

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		vehicles := s.vehicles.WithTx(tx)
		if err := vehicles.Update(ctx, vehicle); err != nil {
			return duplicateVIN(notFound(err, "vehicle", id), vehicle.VIN)
		}
		if err := s.checkContracts(ctx, s.contracts.WithTx(tx), input.Principal, input.ContractIDs); err != nil {
			return err
		}
		return vehicles.ReplaceContracts(ctx, id, input.ContractIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.vehicles.Get(ctx, id)
}

func (s *VehicleService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if _, err := s.Get(ctx, principal, id); err != nil {
		return err
	}
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		return notFound(s.vehicles.WithTx(tx).Delete(ctx, id), "vehicle", id)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("vehicle_id", id.String()).Msg("vehicle deleted")
	return nil
}

// Import upserts vehicles from a spreadsheet by VIN. Rows whose VIN
// belongs to another owner are rejected.
func (s *VehicleService) Import(ctx context.Context, principal model.Principal, content io.Reader) (result *VehicleImportResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpImportVehicles, started, err, IsNotFound) }()

	if content == nil {
		return nil, invalid("file is required")
	}
	parsed, err := s.parser.Parse(content)
	if err != nil {
		return nil, err
	}

	result = &VehicleImportResult{}
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		*result = VehicleImportResult{}
		vehicles := s.vehicles.WithTx(tx)
		for i := range parsed {
			vehicle := parsed[i]
			vehicle.OwnerID = principal.UserID

			existing, err := vehicles.FindByVIN(ctx, vehicle.VIN)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				vehicle.ID = uuid.New()
				if err := vehicles.Create(ctx, &vehicle); err != nil {
					return duplicateVIN(err, vehicle.VIN)
				}
				result.Created++
			case err != nil:
				return err
			default:
				if existing.OwnerID != principal.UserID {
					return fmt.Errorf("%w: vin %s is registered to another owner", ErrConflict, vehicle.VIN)
				}
				vehicle.ID = existing.ID
				if err := vehicles.Update(ctx, &vehicle); err != nil {
					return err
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("created", result.Created).Int("updated", result.Updated).Msg("vehicles imported")
	return result, nil
}

func (s *VehicleService) checkContracts(ctx context.Context, contracts *repository.ContractRepository, principal model.Principal, ids []uuid.UUID) error {
	for _, id := range ids {
		contract, err := contracts.Find(ctx, id)
		if err != nil {
			return notFound(err, "contract", id)
		}
		if err := owns(principal, contract.OwnerID, "contract", id); err != nil {
			return err
		}
	}
	return nil
}

func vehicleFromInput(input VehicleInput) (*model.Vehicle, error) {
	vehicle := &model.Vehicle{
		OwnerID:        input.Principal.UserID,
		Model:          trimmed(input.Model),
		MilitaryNumber: trimmed(input.MilitaryNumber),
		VIN:            trimmed(input.VIN),
		Location:       trimmed(input.Location),
		Year:           input.Year,
		Status:         trimmed(input.Status),
		Notes:          trimmed(input.Notes),
	}
	if vehicle.VIN == "" {
		return nil, invalid("vin is required")
	}
	if vehicle.Year == 0 {
		vehicle.Year = 2000
	}
	if vehicle.Year < 1900 || vehicle.Year > time.Now().Year()+1 {
		return nil, invalid("year %d is out of range", vehicle.Year)
	}
	if vehicle.Status == "" {
		vehicle.Status = model.VehicleStatusInService
	}
	return vehicle, nil
}

func duplicateVIN(err error, vin string) error {
	if db.IsDuplicateKey(err) {
		return fmt.Errorf("%w: vin %s already exists", ErrConflict, vin)
	}
	return err
}
