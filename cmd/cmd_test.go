package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/internal/config"
)

func TestRunCommandRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
}

func TestBuildRunnerWiresPipeline(t *testing.T) {
	cfg := config.NewDefaultConfig()
	p := buildRunner(cfg, zap.NewNop())
	require.NotNil(t, p)
}

func TestVersionSet(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.Equal(t, Version, rootCmd.Version)
}
