// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksulejczak/goservice/config"
	"github.com/ksulejczak/goservice/service"
)

func TestBuildTreeStartsHeartbeatAndWorker(t *testing.T) {
	cfg := config.Default()
	cfg.Tasks.HeartbeatInterval = 10 * time.Millisecond

	root, registry := buildTree(cfg, slog.New(slog.DiscardHandler))

	require.NoError(t, root.Start(context.Background()))
	defer root.Stop(context.Background())

	assert.Equal(t, service.StateRunning, root.State())

	infos := registry.List()
	assert.Len(t, infos, 3)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLevel(input))
	}
}
