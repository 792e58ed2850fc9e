// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunGuardedRetriesUntilSuccess(t *testing.T) {
	svc := New("s", nil, nil)
	var attempts int32
	spec := taskSpec{
		name: "t",
		fn: func(ctx context.Context) error {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				return errors.New("not yet")
			}
			return nil
		},
	}

	svc.taskWG.Add(1)
	svc.runGuarded(context.Background(), spec)

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRunGuardedStopsOnCancellationWithoutRetry(t *testing.T) {
	svc := New("s", nil, nil)
	var attempts int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spec := taskSpec{
		name: "t",
		fn: func(ctx context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return ctx.Err()
		},
	}

	svc.taskWG.Add(1)
	svc.runGuarded(ctx, spec)

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRunGuardedExhaustsBudgetAndCrashes(t *testing.T) {
	svc := New("s", nil, nil)
	var attempts int32
	spec := taskSpec{
		name: "t",
		fn: func(ctx context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("persistent failure")
		},
	}

	svc.setState(StateRunning)
	svc.taskWG.Add(1)
	svc.runGuarded(context.Background(), spec)

	assert.Equal(t, int32(maxTaskAttempts), atomic.LoadInt32(&attempts))

	require.Eventually(t, func() bool {
		return svc.State() == StateCrashed
	}, time.Second, 10*time.Millisecond)
}

func TestAddTimerTaskFiresOnCadence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := New("timed", nil, nil)
	var ticks int32
	svc.AddTimerTask("tick", 20*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&ticks, 1)
		return nil
	})

	require.NoError(t, svc.Start(context.Background()))
	time.Sleep(90 * time.Millisecond)
	require.NoError(t, svc.Stop(context.Background()))

	assert.GreaterOrEqual(t, atomic.LoadInt32(&ticks), int32(2))
}
