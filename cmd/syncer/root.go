package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"initiative_syncer/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "initiative-syncer",
		Short:        "Keeps a local copy of the OECD.AI policy initiatives catalog",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("config", "config.yaml", "path to config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newMigrateCmd())

	return root
}

// loadConfig reads the --config file and builds the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("get config flag: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	return cfg, setupLogger(cfg.LogLevel, cfg.Log), nil
}

func setupLogger(level string, logCfg config.LogConfig) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if logCfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   logCfg.File,
			MaxSize:    logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAgeDays,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(out, opts)
	return slog.New(handler)
}
