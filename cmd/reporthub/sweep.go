package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/reporthub/internal/repository"
	"github.com/bigkaa/reporthub/internal/service"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Удалить записи отчётов, у которых отсутствует файл",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := connectDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			blobs, err := openBlobStore(ctx, cfg, logger)
			if err != nil {
				return err
			}

			sweeper := service.NewSweeper(repository.NewReportRepository(pool), blobs, logger)
			res, err := sweeper.SweepAll(ctx)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "проверено записей: %d, удалено: %d\n", res.Checked, res.Pruned)
			return err
		},
	}
}
