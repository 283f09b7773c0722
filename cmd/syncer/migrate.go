package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"initiative_syncer/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return postgres.MigrateUp(cfg.Database.URL(), logger)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			steps, err := cmd.Flags().GetInt("steps")
			if err != nil {
				return fmt.Errorf("get steps flag: %w", err)
			}
			return postgres.MigrateDown(cfg.Database.URL(), steps, logger)
		},
	}
	down.Flags().IntP("steps", "n", 1, "number of migrations to revert (0 = all)")
	cmd.AddCommand(down)

	return cmd
}
