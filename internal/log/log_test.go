package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestInit_DebugFileReceivesDebugLines verifies that the file core logs at
// Debug regardless of the console level, matching the behavior the
// debug_to_log plugin sets up for the automation module itself.
func TestInit_DebugFileReceivesDebugLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "paddock.log")

	logger, err := Init(false, logPath)
	require.NoError(t, err, "Init should create parent directories and open the file")

	logger.Debug("debug line for file only")
	logger.Info("info line")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	assert.Contains(t, string(data), "debug line for file only")
	assert.Contains(t, string(data), "info line")
}

// TestInit_NoDebugFile verifies console-only initialization succeeds and
// installs the global logger.
func TestInit_NoDebugFile(t *testing.T) {
	logger, err := Init(true, "")
	require.NoError(t, err)
	require.NotNil(t, logger)

	// The global logger must be the one Init built.
	assert.Equal(t, logger, zap.L())
}

// TestInit_BadDirectory verifies that an unusable log path surfaces as an
// error instead of a silent console-only logger.
func TestInit_BadDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// Using a regular file as a parent directory must fail.
	_, err := Init(false, filepath.Join(blocker, "paddock.log"))
	assert.Error(t, err)
}
