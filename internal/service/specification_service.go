package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/koshtorys/internal/db"
	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/metrics"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/repository"
)

type SpecificationService struct {
	tx        *db.Transactor
	contracts *repository.ContractRepository
	specs     *repository.SpecificationRepository
	ledger    *ledger.Ledger
	metrics   *metrics.LedgerMetrics
	log       zerolog.Logger
}

func NewSpecificationService(
	tx *db.Transactor,
	contracts *repository.ContractRepository,
	specs *repository.SpecificationRepository,
	l *ledger.Ledger,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) *SpecificationService {
	return &SpecificationService{
		tx:        tx,
		contracts: contracts,
		specs:     specs,
		ledger:    l,
		metrics:   m,
		log:       log.With().Str("component", "specification_service").Logger(),
	}
}

func (s *SpecificationService) List(ctx context.Context, principal model.Principal, contractID uuid.UUID) ([]model.Specification, error) {
	if _, err := s.ownedContract(ctx, s.contracts, principal, contractID); err != nil {
		return nil, err
	}
	return s.specs.ListByContract(ctx, contractID)
}

// Add appends a line item to an existing contract. Specifications
// allocate inside the contract amount and never raise it.
func (s *SpecificationService) Add(ctx context.Context, principal model.Principal, contractID uuid.UUID, item model.LineItem) (spec *model.Specification, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpAddSpecification, started, err, IsNotFound) }()

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		contracts := s.contracts.WithTx(tx)
		specs := s.specs.WithTx(tx)

		contract, err := contracts.LockContract(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		if err := owns(principal, contract.OwnerID, "contract", contractID); err != nil {
			return err
		}

		created, err := s.ledger.NewSpecification(contractID, item)
		if err != nil {
			return err
		}
		existing, err := specs.ListByContract(ctx, contractID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.CheckContractCeiling(contract.Amount, existing, created.Amount); err != nil {
			return err
		}

		position, err := specs.NextPosition(ctx, contractID)
		if err != nil {
			return err
		}
		created.Position = position
		if err := specs.Create(ctx, &created); err != nil {
			return err
		}
		spec = &created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", contractID.String()).
		Str("specification_id", spec.ID.String()).
		Str("amount", spec.Amount.StringFixed(2)).
		Msg("specification added")
	return spec, nil
}

// Edit replaces fields of a specification. Consumed quantity is kept, so
// the new quantity may not drop below it, and the recomputed amount must
// still fit in the contract.
func (s *SpecificationService) Edit(ctx context.Context, principal model.Principal, id uuid.UUID, edit ledger.SpecificationEdit) (spec *model.Specification, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpEditSpecification, started, err, IsNotFound) }()

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		contracts := s.contracts.WithTx(tx)
		specs := s.specs.WithTx(tx)

		current, contract, err := s.lockForChange(ctx, contracts, specs, principal, id)
		if err != nil {
			return err
		}

		updated := *current
		if err := s.ledger.EditSpecification(&updated, edit); err != nil {
			return err
		}

		siblings, err := specs.ListByContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		others := make([]model.Specification, 0, len(siblings))
		for _, sibling := range siblings {
			if sibling.ID != id {
				others = append(others, sibling)
			}
		}
		if _, err := s.ledger.CheckContractCeiling(contract.Amount, others, updated.Amount); err != nil {
			return err
		}

		if err := specs.Update(ctx, &updated); err != nil {
			return notFound(err, "specification", id)
		}
		spec = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("specification_id", id.String()).
		Str("amount", spec.Amount.StringFixed(2)).
		Str("remaining", spec.Remaining.String()).
		Msg("specification edited")
	return spec, nil
}

// Delete removes a specification that has never been consumed.
func (s *SpecificationService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpDeleteSpecification, started, err, IsNotFound) }()

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		contracts := s.contracts.WithTx(tx)
		specs := s.specs.WithTx(tx)

		current, _, err := s.lockForChange(ctx, contracts, specs, principal, id)
		if err != nil {
			return err
		}
		usage, err := specs.CountUsage(ctx, id)
		if err != nil {
			return err
		}
		if err := s.ledger.CheckDeletable(*current, usage); err != nil {
			return err
		}
		return notFound(specs.Delete(ctx, id), "specification", id)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("specification_id", id.String()).Msg("specification deleted")
	return nil
}

type RecordUsageInput struct {
	Principal       model.Principal
	SpecificationID uuid.UUID
	ledger.UsageInput
}

// RecordUsage consumes part of the remaining quantity. Financial totals of
// the contract, budget and KEKV are not touched.
func (s *SpecificationService) RecordUsage(ctx context.Context, input RecordUsageInput) (spec *model.Specification, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpRecordUsage, started, err, IsNotFound) }()

	id := input.SpecificationID
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		contracts := s.contracts.WithTx(tx)
		specs := s.specs.WithTx(tx)

		current, err := specs.LockSpecification(ctx, id)
		if err != nil {
			return notFound(err, "specification", id)
		}
		if _, err := s.ownedContract(ctx, contracts, input.Principal, current.ContractID); err != nil {
			return err
		}

		record, err := s.ledger.RecordUsage(current, input.UsageInput)
		if err != nil {
			return err
		}
		if err := specs.AppendUsage(ctx, current, &record); err != nil {
			if errors.Is(err, repository.ErrStaleRemaining) {
				return &ledger.InsufficientRemainingError{Remaining: current.Remaining.Add(record.QuantityUsed), Requested: record.QuantityUsed}
			}
			return err
		}

		spec, err = specs.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("specification_id", id.String()).
		Str("quantity_used", input.QuantityUsed.String()).
		Str("remaining", spec.Remaining.String()).
		Msg("usage recorded")
	return spec, nil
}

func (s *SpecificationService) Usage(ctx context.Context, principal model.Principal, id uuid.UUID) ([]model.UsageRecord, error) {
	spec, err := s.specs.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "specification", id)
	}
	if _, err := s.ownedContract(ctx, s.contracts, principal, spec.ContractID); err != nil {
		return nil, err
	}
	return spec.UsageHistory, nil
}

// lockForChange locks the owning contract before the specification so it
// queues behind contract deletion instead of deadlocking with it.
func (s *SpecificationService) lockForChange(
	ctx context.Context,
	contracts *repository.ContractRepository,
	specs *repository.SpecificationRepository,
	principal model.Principal,
	id uuid.UUID,
) (*model.Specification, *model.Contract, error) {
	peek, err := specs.Get(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "specification", id)
	}
	contract, err := contracts.LockContract(ctx, peek.ContractID)
	if err != nil {
		return nil, nil, notFound(err, "contract", peek.ContractID)
	}
	if err := owns(principal, contract.OwnerID, "contract", contract.ID); err != nil {
		return nil, nil, err
	}
	current, err := specs.LockSpecification(ctx, id)
	if err != nil {
		return nil, nil, notFound(err, "specification", id)
	}
	return current, contract, nil
}

func (s *SpecificationService) ownedContract(ctx context.Context, contracts *repository.ContractRepository, principal model.Principal, id uuid.UUID) (*model.Contract, error) {
	contract, err := contracts.Find(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract", id)
	}
	if err := owns(principal, contract.OwnerID, "contract", id); err != nil {
		return nil, err
	}
	return contract, nil
}
