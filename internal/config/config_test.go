package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "http://localhost:8080", cfg.Backend.BaseURL)
	assert.Equal(t, 3, cfg.Runner.MaxConcurrency)
	assert.Equal(t, 5*time.Second, cfg.Runner.PollInterval)
	assert.Equal(t, 3, cfg.Retry.StepMax)
	assert.Equal(t, 2, cfg.Retry.SessionMax)
	assert.Equal(t, "recoverable", cfg.Retry.UnmatchedCategory)
	assert.True(t, cfg.Browser.Headless)
	assert.NotEmpty(t, cfg.Runner.ID, "a runner identity should be generated when none is configured")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing backend url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"zero concurrency", func(c *Config) { c.Runner.MaxConcurrency = 0 }},
		{"negative retry", func(c *Config) { c.Retry.StepMax = -1 }},
		{"multiplier below one", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }},
		{"unknown category", func(c *Config) { c.Retry.UnmatchedCategory = "sometimes" }},
		{"zero click radius", func(c *Config) { c.Humanoid.ClickRadius = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("runner.id", "runner-test")
	v.Set("runner.max_concurrency", 7)
	v.Set("retry.unmatched_category", "fatal")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "runner-test", cfg.Runner.ID)
	assert.Equal(t, 7, cfg.Runner.MaxConcurrency)
	assert.Equal(t, "fatal", cfg.Retry.UnmatchedCategory)
}
