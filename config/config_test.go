// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cfg := Default()
	cfg.Tree.ShutdownTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tasks.HeartbeatInterval = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestLoaderLoadsYAMLFile(t *testing.T) {
	loader, err := NewLoader(WithYAMLFile("testdata/example.yaml"))
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Tree.ShutdownTimeout)
	assert.Equal(t, 20*time.Second, cfg.Tree.FailureBackoff)
	assert.Equal(t, 10*time.Second, cfg.Tasks.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Tasks.ChildWatchInterval)
}

func TestLoaderEnvOverridesYAML(t *testing.T) {
	t.Setenv("GOSERVICE_TREE_SHUTDOWN_TIMEOUT", "45s")

	loader, err := NewLoader(WithYAMLFile("testdata/example.yaml"))
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Tree.ShutdownTimeout)
}

func TestLoaderWithNoFileUsesDefaults(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Tree.FailureThreshold, cfg.Tree.FailureThreshold)
}

