package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsLoggerWithDefaultConfig(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("hello")
}

func TestNewConsoleFormat(t *testing.T) {
	cfg := Config{Level: "debug", Format: "console", Output: "stdout"}
	logger, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	cfg := Config{Level: "not-a-level", Format: "json", Output: "stdout"}
	_, err := New(cfg)
	require.Error(t, err)
}

func TestSyncIgnoresStdoutError(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, Sync(logger))
}
