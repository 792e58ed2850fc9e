// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorStartsAndStopsChildren(t *testing.T) {
	ctx := context.Background()
	parent := New("parent", nil, nil)
	child := FromFunc("child", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	parent.AddDependency(child)
	parent.AddTask("parent-task", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, parent.Start(ctx))
	assert.Equal(t, StateRunning, child.State())

	require.NoError(t, parent.Stop(ctx))
	assert.Equal(t, StateShutdown, child.State())
}

func TestSupervisorChildCrashCascadesToParent(t *testing.T) {
	ctx := context.Background()
	parent := New("parent", nil, nil)
	childErr := errors.New("child exploded")
	child := New("child", nil, nil)
	child.AddTask("bad", func(ctx context.Context) error {
		return childErr
	})
	parent.AddDependency(child)
	parent.AddTask("parent-task", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, parent.Start(ctx))

	require.Eventually(t, func() bool {
		return parent.State() == StateCrashed
	}, 2*time.Second, 10*time.Millisecond)

	require.Error(t, parent.CrashReason())
	assert.ErrorIs(t, parent.CrashReason(), childErr)
}

func TestSupervisorRemoveDependencyStopsChild(t *testing.T) {
	ctx := context.Background()
	parent := New("parent", nil, nil)
	child := FromFunc("child", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	parent.AddDependency(child)
	parent.AddTask("parent-task", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, parent.Start(ctx))
	require.NoError(t, parent.RemoveDependency(ctx, child))
	assert.Equal(t, StateShutdown, child.State())

	require.NoError(t, parent.Stop(ctx))
}

func TestSupervisorRemoveDependencyNotFound(t *testing.T) {
	parent := New("parent", nil, nil)
	stranger := New("stranger", nil, nil)
	err := parent.RemoveDependency(context.Background(), stranger)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSupervisorAddRuntimeDependency(t *testing.T) {
	ctx := context.Background()
	parent := FromFunc("parent", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, parent.Start(ctx))

	child := FromFunc("late-child", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, parent.AddRuntimeDependency(ctx, child))
	assert.Equal(t, StateRunning, child.State())

	require.NoError(t, parent.Stop(ctx))
	assert.Equal(t, StateShutdown, child.State())
}
