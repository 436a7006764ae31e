package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConsoleOnly(t *testing.T) {
	logger, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("test console logging")
}

func TestNewWithFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	logger, err := New(Config{Level: "debug", FilePath: logPath, JSON: true})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("test file logging", zap.String("key", "value"))
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test file logging")
	assert.Contains(t, string(content), "value")
}

func TestNewRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	logger, err := New(Config{Level: "warn", FilePath: logPath})
	require.NoError(t, err)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "debug message")
	assert.NotContains(t, string(content), "info message")
	assert.Contains(t, string(content), "warn message")
}

func TestNewOffLevelIsNop(t *testing.T) {
	logger, err := New(Config{Level: "off"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	logger, err := New(Config{Level: "bogus"})
	assert.Error(t, err)
	assert.NotNil(t, logger)
}

func TestNewDefault(t *testing.T) {
	assert.NotNil(t, NewDefault())
}

func TestTextFormatHasNoColorCodes(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	logger, err := New(Config{Level: "info", FilePath: logPath})
	require.NoError(t, err)

	logger.Info("plain text line")
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "\x1b[")
}
