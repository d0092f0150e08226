package main

import (
	"github.com/spf13/cobra"

	"github.com/bigkaa/reporthub/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции БД (или откатить с --down)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if down {
				return database.Rollback(cfg, logger)
			}
			return database.Migrate(cfg, logger)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "откатить все миграции")
	return cmd
}
