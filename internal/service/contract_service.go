package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/koshtorys/internal/db"
	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/metrics"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/repository"
)

// PairLocker serialises writers of one budget/KEKV pair across processes.
type PairLocker interface {
	AcquirePair(ctx context.Context, budgetID, kekvID uuid.UUID) (func(), error)
}

type ContractPrinter interface {
	Generate(contract model.Contract) ([]byte, error)
}

type ContractService struct {
	tx        *db.Transactor
	budgets   *repository.BudgetRepository
	contracts *repository.ContractRepository
	ledger    *ledger.Ledger
	locker    PairLocker
	printer   ContractPrinter
	metrics   *metrics.LedgerMetrics
	log       zerolog.Logger
}

type CreateContractInput struct {
	Principal      model.Principal
	BudgetID       uuid.UUID
	KEKVID         uuid.UUID
	Number         string
	Name           string
	DKCode         string
	DKName         string
	Contractor     string
	Amount         decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	Status         model.ContractStatus
	Specifications []model.LineItem
}

type ListContractsInput struct {
	Principal model.Principal
	Filter    repository.ContractFilter
}

func NewContractService(
	tx *db.Transactor,
	budgets *repository.BudgetRepository,
	contracts *repository.ContractRepository,
	l *ledger.Ledger,
	locker PairLocker,
	printer ContractPrinter,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) *ContractService {
	return &ContractService{
		tx:        tx,
		budgets:   budgets,
		contracts: contracts,
		ledger:    l,
		locker:    locker,
		printer:   printer,
		metrics:   m,
		log:       log.With().Str("component", "contract_service").Logger(),
	}
}

// Create commits a new contract against its budget and KEKV. The
// specification total must match the declared amount and both the budget
// and the category must have room for it. Contract, specifications and
// both counters are written in one transaction.
func (s *ContractService) Create(ctx context.Context, input CreateContractInput) (contract *model.Contract, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpCreateContract, started, err, IsNotFound) }()

	if err := validateContractMeta(&input); err != nil {
		return nil, err
	}

	budget, err := s.budgets.Get(ctx, input.BudgetID)
	if err != nil {
		return nil, notFound(err, "budget", input.BudgetID)
	}
	if err := owns(input.Principal, budget.OwnerID, "budget", input.BudgetID); err != nil {
		return nil, err
	}
	if !budgetHasKEKV(budget, input.KEKVID) {
		return nil, fmt.Errorf("%w: kekv %s in budget %s", ErrNotFound, input.KEKVID, input.BudgetID)
	}

	contractID := uuid.New()
	specs, err := s.ledger.PrepareContract(contractID, input.Amount, input.Specifications)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, input.BudgetID, input.KEKVID)
	if err != nil {
		return nil, err
	}
	defer release()

	contract = &model.Contract{
		ID:             contractID,
		OwnerID:        input.Principal.UserID,
		BudgetID:       input.BudgetID,
		KEKVID:         input.KEKVID,
		Number:         input.Number,
		Name:           input.Name,
		DKCode:         input.DKCode,
		DKName:         input.DKName,
		Contractor:     input.Contractor,
		Amount:         input.Amount,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		Status:         input.Status,
		Specifications: specs,
	}

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		budgets := s.budgets.WithTx(tx)

		lockedBudget, err := budgets.LockBudget(ctx, input.BudgetID)
		if err != nil {
			return notFound(err, "budget", input.BudgetID)
		}
		lockedKEKV, err := budgets.LockKEKV(ctx, input.KEKVID)
		if err != nil {
			return notFound(err, "kekv", input.KEKVID)
		}
		if err := s.ledger.CheckCapacity(*lockedBudget, *lockedKEKV, input.Amount); err != nil {
			return err
		}

		if err := s.contracts.WithTx(tx).Create(ctx, contract); err != nil {
			return err
		}
		return budgets.AddUsage(ctx, lockedBudget, lockedKEKV, input.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Committed(input.Amount.InexactFloat64())
	s.log.Info().
		Str("contract_id", contractID.String()).
		Str("budget_id", input.BudgetID.String()).
		Str("kekv_id", input.KEKVID.String()).
		Str("amount", input.Amount.StringFixed(2)).
		Int("specifications", len(specs)).
		Msg("contract created")

	return s.contracts.Get(ctx, contractID)
}

// Delete removes the contract with its specifications and usage history
// and returns its amount to the budget and KEKV.
func (s *ContractService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpDeleteContract, started, err, IsNotFound) }()

	existing, err := s.Get(ctx, principal, id)
	if err != nil {
		return err
	}

	release, err := s.acquire(ctx, existing.BudgetID, existing.KEKVID)
	if err != nil {
		return err
	}
	defer release()

	var amount decimal.Decimal
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		budgets := s.budgets.WithTx(tx)
		contracts := s.contracts.WithTx(tx)

		lockedBudget, err := budgets.LockBudget(ctx, existing.BudgetID)
		if err != nil {
			return notFound(err, "budget", existing.BudgetID)
		}
		lockedKEKV, err := budgets.LockKEKV(ctx, existing.KEKVID)
		if err != nil {
			return notFound(err, "kekv", existing.KEKVID)
		}
		contract, err := contracts.LockContract(ctx, id)
		if err != nil {
			return notFound(err, "contract", id)
		}
		amount = contract.Amount

		if err := contracts.Delete(ctx, id); err != nil {
			return notFound(err, "contract", id)
		}
		return budgets.AddUsage(ctx, lockedBudget, lockedKEKV, contract.Amount.Neg())
	})
	if err != nil {
		return err
	}

	s.metrics.Committed(amount.Neg().InexactFloat64())
	s.log.Info().
		Str("contract_id", id.String()).
		Str("budget_id", existing.BudgetID.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("contract deleted")
	return nil
}

func (s *ContractService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Contract, error) {
	contract, err := s.contracts.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract", id)
	}
	if err := owns(principal, contract.OwnerID, "contract", id); err != nil {
		return nil, err
	}
	return contract, nil
}

func (s *ContractService) List(ctx context.Context, input ListContractsInput) ([]model.Contract, error) {
	if input.Filter.Status != nil && !input.Filter.Status.Valid() {
		return nil, invalid("unknown status %q", *input.Filter.Status)
	}
	return s.contracts.List(ctx, input.Principal.UserID, input.Filter)
}

// UpdateStatus changes contract metadata only; amounts stay committed.
func (s *ContractService) UpdateStatus(ctx context.Context, principal model.Principal, id uuid.UUID, status model.ContractStatus) (*model.Contract, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	if _, err := s.Get(ctx, principal, id); err != nil {
		return nil, err
	}
	if err := s.contracts.UpdateStatus(ctx, id, status); err != nil {
		return nil, notFound(err, "contract", id)
	}
	s.log.Info().Str("contract_id", id.String()).Str("status", string(status)).Msg("contract status updated")
	return s.contracts.Get(ctx, id)
}

// Printout renders the contract specification as PDF.
func (s *ContractService) Printout(ctx context.Context, principal model.Principal, id uuid.UUID) (*FileResult, error) {
	contract, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	content, err := s.printer.Generate(*contract)
	if err != nil {
		return nil, fmt.Errorf("generate specification pdf: %w", err)
	}
	return &FileResult{
		FileName:    fileName("specification", contract.Number, "pdf"),
		ContentType: ContentTypePDF,
		Content:     content,
	}, nil
}

func (s *ContractService) acquire(ctx context.Context, budgetID, kekvID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.AcquirePair(ctx, budgetID, kekvID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return release, nil
}

func validateContractMeta(input *CreateContractInput) error {
	input.Number = trimmed(input.Number)
	input.Name = trimmed(input.Name)
	input.DKCode = trimmed(input.DKCode)
	input.DKName = trimmed(input.DKName)
	input.Contractor = trimmed(input.Contractor)

	if input.BudgetID == uuid.Nil || input.KEKVID == uuid.Nil {
		return invalid("budget_id and kekv_id are required")
	}
	if input.Number == "" {
		return invalid("number is required")
	}
	if input.Contractor == "" {
		return invalid("contractor is required")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return invalid("start and end dates are required")
	}
	input.StartDate = dateOnly(input.StartDate)
	input.EndDate = dateOnly(input.EndDate)
	if input.EndDate.Before(input.StartDate) {
		return invalid("end date must not be before start date")
	}
	if input.Status == "" {
		input.Status = model.ContractStatusActive
	}
	if !input.Status.Valid() {
		return invalid("unknown status %q", input.Status)
	}
	return nil
}

func budgetHasKEKV(budget *model.Budget, kekvID uuid.UUID) bool {
	for _, kekv := range budget.KEKVs {
		if kekv.ID == kekvID {
			return true
		}
	}
	return false
}
