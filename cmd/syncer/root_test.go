package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"initiative_syncer/internal/config"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{{"run"}, {"sync"}, {"status"}, {"migrate", "up"}, {"migrate", "down"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	syncCmd, _, err := root.Find([]string{"sync"})
	require.NoError(t, err)
	assert.NotNil(t, syncCmd.Flags().Lookup("dry-run"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRootCmd_MissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"status", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestSetupLogger_WritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "syncer.log")
	logger := setupLogger("warn", config.LogConfig{File: file, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})

	logger.Info("dropped")
	logger.Warn("kept", "run_id", "r1")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"run_id":"r1"`)
}

func TestSetupLogger_Levels(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for level, want := range tests {
		logger := setupLogger(level, config.LogConfig{})
		assert.True(t, logger.Enabled(t.Context(), want), level)
		if want > slog.LevelDebug {
			assert.False(t, logger.Enabled(t.Context(), want-4), level)
		}
	}
}
