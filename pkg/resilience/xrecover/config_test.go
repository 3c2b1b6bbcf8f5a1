package xrecover

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recovery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.ResetTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.BackoffFactor)
	assert.Equal(t, 50, cfg.WindowSize)
	assert.Equal(t, 0.3, cfg.PatternThreshold)
	assert.Equal(t, 10, cfg.MinSamples)
	assert.Equal(t, []string{"retry", "circuit_breaker", "fallback"}, cfg.Strategies)
	assert.Equal(t, []string{"fallback", "graceful_degradation"}, cfg.RecoveryStrategies)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NormalizeBackfillsZeroValues(t *testing.T) {
	cfg := Config{FailureThreshold: 9}
	cfg.normalize()

	assert.Equal(t, 9, cfg.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.ResetTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.NotEmpty(t, cfg.Strategies)
	assert.NotEmpty(t, cfg.RecoveryStrategies)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold too high", func(c *Config) { c.PatternThreshold = 1.0 }},
		{"max delay below base", func(c *Config) { c.BaseDelay = time.Minute; c.MaxDelay = time.Second }},
		{"unknown strategy", func(c *Config) { c.Strategies = []string{"chaos"} }},
		{"unknown recovery strategy", func(c *Config) { c.RecoveryStrategies = []string{"chaos"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
recovery:
  failure_threshold: 3
  reset_timeout: 2m
  max_retries: 5
  base_delay: 500ms
  max_delay: 10s
  backoff_factor: 1.5
  window_size: 20
  pattern_threshold: 0.5
  min_samples: 4
  strategies: [retry, fallback]
  recovery_strategies: [graceful_degradation]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, 2*time.Minute, cfg.ResetTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.MaxDelay)
	assert.Equal(t, 1.5, cfg.BackoffFactor)
	assert.Equal(t, 20, cfg.WindowSize)
	assert.Equal(t, 0.5, cfg.PatternThreshold)
	assert.Equal(t, 4, cfg.MinSamples)
	assert.Equal(t, []string{"retry", "fallback"}, cfg.Strategies)
	assert.Equal(t, []string{"graceful_degradation"}, cfg.RecoveryStrategies)
}

func TestLoadConfig_PartialFileGetsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
recovery:
  failure_threshold: 8
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.ResetTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadConfig_InvalidValuesRejected(t *testing.T) {
	path := writeConfigFile(t, `
recovery:
  pattern_threshold: 2.5
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
