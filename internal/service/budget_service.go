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
	"github.com/nurpe/koshtorys/internal/metrics"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/money"
	"github.com/nurpe/koshtorys/internal/repository"
)

type BudgetReportGenerator interface {
	Generate(report model.BudgetReport) ([]byte, error)
}

type BudgetService struct {
	tx        *db.Transactor
	budgets   *repository.BudgetRepository
	contracts *repository.ContractRepository
	reports   BudgetReportGenerator
	metrics   *metrics.LedgerMetrics
	log       zerolog.Logger
}

type KEKVInput struct {
	Code          string
	Name          string
	PlannedAmount decimal.Decimal
}

type CreateBudgetInput struct {
	Principal   model.Principal
	Name        string
	Type        string
	Date        time.Time
	Description string
	// TotalAmount defaults to the sum of planned category amounts.
	TotalAmount *decimal.Decimal
	KEKVs       []KEKVInput
}

func NewBudgetService(
	tx *db.Transactor,
	budgets *repository.BudgetRepository,
	contracts *repository.ContractRepository,
	reports BudgetReportGenerator,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) *BudgetService {
	return &BudgetService{
		tx:        tx,
		budgets:   budgets,
		contracts: contracts,
		reports:   reports,
		metrics:   m,
		log:       log.With().Str("component", "budget_service").Logger(),
	}
}

func (s *BudgetService) Create(ctx context.Context, input CreateBudgetInput) (budget *model.Budget, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(metrics.OpCreateBudget, started, err, IsNotFound) }()

	name := trimmed(input.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if input.Date.IsZero() {
		return nil, invalid("date is required")
	}

	budgetID := uuid.New()
	date := dateOnly(input.Date)
	planned := decimal.Zero
	seen := map[string]struct{}{}
	kekvs := make([]model.KEKV, 0, len(input.KEKVs))
	for _, item := range input.KEKVs {
		code := trimmed(item.Code)
		if code == "" {
			return nil, invalid("kekv code is required")
		}
		if _, dup := seen[code]; dup {
			return nil, invalid("kekv %s is listed twice", code)
		}
		seen[code] = struct{}{}
		if item.PlannedAmount.IsNegative() {
			return nil, invalid("planned amount of kekv %s must not be negative", code)
		}
		if !money.FitsPlaces(item.PlannedAmount, money.AmountPlaces) {
			return nil, invalid("planned amount of kekv %s has more than %d decimal places", code, money.AmountPlaces)
		}
		kekvName := trimmed(item.Name)
		if kekvName == "" {
			kekvName = model.KEKVName(code)
		}
		planned = planned.Add(item.PlannedAmount)
		kekvs = append(kekvs, model.KEKV{
			ID:            uuid.New(),
			BudgetID:      budgetID,
			Code:          code,
			Name:          kekvName,
			PlannedAmount: item.PlannedAmount,
			UsedAmount:    decimal.Zero,
		})
	}

	total := planned
	if input.TotalAmount != nil {
		total = *input.TotalAmount
		if total.IsNegative() {
			return nil, invalid("total amount must not be negative")
		}
		if !money.FitsPlaces(total, money.AmountPlaces) {
			return nil, invalid("total amount has more than %d decimal places", money.AmountPlaces)
		}
		if total.LessThan(planned) {
			return nil, invalid("total amount %s is below the planned kekv sum %s", total.StringFixed(2), planned.StringFixed(2))
		}
	}

	budget = &model.Budget{
		ID:          budgetID,
		OwnerID:     input.Principal.UserID,
		Name:        name,
		Type:        trimmed(input.Type),
		Year:        date.Year(),
		Date:        date,
		Description: trimmed(input.Description),
		TotalAmount: total,
		UsedAmount:  decimal.Zero,
		KEKVs:       kekvs,
	}

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		return s.budgets.WithTx(tx).Create(ctx, budget)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("budget_id", budget.ID.String()).
		Str("total", total.StringFixed(2)).
		Int("kekv_count", len(kekvs)).
		Msg("budget created")
	return s.budgets.Get(ctx, budget.ID)
}

func (s *BudgetService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Budget, error) {
	budget, err := s.budgets.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "budget", id)
	}
	if err := owns(principal, budget.OwnerID, "budget", id); err != nil {
		return nil, err
	}
	return budget, nil
}

func (s *BudgetService) List(ctx context.Context, principal model.Principal) ([]model.Budget, error) {
	return s.budgets.List(ctx, principal.UserID)
}

// Report exports the budget with per-KEKV usage and every contract.
func (s *BudgetService) Report(ctx context.Context, principal model.Principal, id uuid.UUID) (*FileResult, error) {
	budget, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	contracts, err := s.contracts.ListByBudget(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := s.reports.Generate(model.BudgetReport{
		Budget:      *budget,
		Contracts:   contracts,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("generate budget report: %w", err)
	}
	return &FileResult{
		FileName:    fileName(fmt.Sprintf("koshtorys-%d", budget.Year), budget.Name, "xlsx"),
		ContentType: ContentTypeXLSX,
		Content:     content,
	}, nil
}
