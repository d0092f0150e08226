package main

import (
	"github.com/spf13/cobra"

	"github.com/bigkaa/reporthub/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "reporthub",
		Short:        "Report Hub — хранение и выдача отчётов сайтов",
		SilenceUsage: true,
	}

	cmd.Version = config.Version
	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newUserCmd(),
		newSweepCmd(),
	)
	return cmd
}
