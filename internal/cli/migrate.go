package cli

import (
	"github.com/spf13/cobra"

	"github.com/nurpe/koshtorys/internal/db"
)

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.New(rt.cfg, rt.log)
			if err != nil {
				return err
			}
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			cmd.Println("schema is up to date")
			return nil
		},
	}
}
