package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	httphandler "github.com/nurpe/koshtorys/internal/http"
	"github.com/nurpe/koshtorys/internal/model"
	"github.com/nurpe/koshtorys/internal/service"
)

func newSeedCommand(rt *runtime) *cobra.Command {
	var tokenTTL time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo budget with one contract for the default owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer a.Close()

			principal := model.Principal{UserID: rt.cfg.Auth.DefaultOwnerID, Name: "seed"}
			budget, contract, err := seed(cmd.Context(), a.services, principal)
			if err != nil {
				return err
			}

			cmd.Printf("budget   %s\n", budget.ID)
			for _, kekv := range budget.KEKVs {
				cmd.Printf("kekv     %s %s\n", kekv.Code, kekv.ID)
			}
			cmd.Printf("contract %s amount %s\n", contract.ID, contract.Amount.StringFixed(2))

			if a.tokens.Enabled() {
				token, err := a.tokens.Issue(principal, tokenTTL)
				if err != nil {
					return err
				}
				cmd.Printf("token    %s\n", token)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the printed access token")
	return cmd
}

// seed creates a 1,000,000 budget with KEKV 2210 and 2240 and a 46,000
// contract of two laptops and two monitors under 2210.
func seed(ctx context.Context, services httphandler.Services, principal model.Principal) (*model.Budget, *model.Contract, error) {
	total := decimal.NewFromInt(1000000)
	budget, err := services.Budgets.Create(ctx, service.CreateBudgetInput{
		Principal:   principal,
		Name:        "Загальний фонд",
		Type:        "general",
		Date:        time.Date(time.Now().Year(), 1, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount: &total,
		KEKVs: []service.KEKVInput{
			{Code: model.KEKVSupplies, PlannedAmount: decimal.NewFromInt(500000)},
			{Code: model.KEKVServices, PlannedAmount: decimal.NewFromInt(300000)},
		},
	})
	if err != nil {
		return nil, nil, err
	}

	var supplies model.KEKV
	for _, kekv := range budget.KEKVs {
		if kekv.Code == model.KEKVSupplies {
			supplies = kekv
		}
	}

	year := budget.Date.Year()
	contract, err := services.Contracts.Create(ctx, service.CreateContractInput{
		Principal:  principal,
		BudgetID:   budget.ID,
		KEKVID:     supplies.ID,
		Number:     fmt.Sprintf("1/%02d", year%100),
		Name:       "Комп'ютерна техніка",
		DKCode:     "30210000-4",
		DKName:     "Машини для обробки даних (апаратна частина)",
		Contractor: "ТОВ Постачальник",
		Amount:     decimal.NewFromInt(46000),
		StartDate:  time.Date(year, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Specifications: []model.LineItem{
			{Name: "Ноутбук", Unit: "шт", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(15000)},
			{Name: "Монітор", Unit: "шт", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(8000)},
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return budget, contract, nil
}
