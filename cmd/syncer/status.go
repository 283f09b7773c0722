package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"initiative_syncer/internal/storage/postgres"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the recorded sync metadata",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := postgres.Open(cmd.Context(), cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	meta, err := postgres.NewSyncMetaStore(db, cfg.Lock.StaleAfter).Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("read sync metadata: %w", err)
	}

	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
