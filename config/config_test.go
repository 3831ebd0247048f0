package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"e2ecore/config"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, 100_000, cfg.PBKDF2Iterations)
	require.Equal(t, 1000, cfg.MaxSkippedMessages)
	require.Equal(t, 7*24*time.Hour, cfg.MaxSkippedMessageAge)
	require.Equal(t, 8, cfg.PasswordMinLength)
	require.Equal(t, uint16(1), cfg.ClassicSuiteID)
}

func TestFromEnvOverridesRecognisedVars(t *testing.T) {
	t.Setenv("E2ECORE_PBKDF2_ITERATIONS", "250000")
	t.Setenv("E2ECORE_MAX_SKIPPED_MESSAGES", "42")

	cfg := config.FromEnv()
	require.Equal(t, 250000, cfg.PBKDF2Iterations)
	require.Equal(t, 42, cfg.MaxSkippedMessages)
	require.Equal(t, config.Default().MaxPrekeyAge, cfg.MaxPrekeyAge)
}

func TestFromEnvIgnoresUnparseable(t *testing.T) {
	t.Setenv("E2ECORE_PBKDF2_ITERATIONS", "not-a-number")
	cfg := config.FromEnv()
	require.Equal(t, config.Default().PBKDF2Iterations, cfg.PBKDF2Iterations)
}
