// Package cli holds the koshtorys commands.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nurpe/koshtorys/internal/config"
	"github.com/nurpe/koshtorys/internal/logger"
)

type runtime struct {
	cfg *config.Config
	log zerolog.Logger
}

func NewRootCommand() *cobra.Command {
	rt := &runtime{}

	cmd := &cobra.Command{
		Use:           "koshtorys",
		Short:         "Budget, contract and specification consumption ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt.cfg = cfg
			rt.log = logger.New(cfg.Environment, cfg.LogLevel)
			return nil
		},
	}

	cmd.AddCommand(newServeCommand(rt), newMigrateCommand(rt), newSeedCommand(rt))
	return cmd
}
