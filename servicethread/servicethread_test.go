// SPDX-License-Identifier: MIT

package servicethread

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadStartStop(t *testing.T) {
	ctx := context.Background()
	th := New("hosted", nil, nil)

	var ran int32
	th.AddTask("work", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, th.Start(ctx))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ran) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, th.Stop(ctx))
}

func TestThreadDispatchRunsOnHostedLoop(t *testing.T) {
	ctx := context.Background()
	th := New("dispatcher", nil, nil)
	th.AddTask("idle", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, th.Start(ctx))
	defer th.Stop(ctx)

	var ran int32
	err := th.RunOnThread(ctx, func() {
		atomic.AddInt32(&ran, 1)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestThreadMultipleBlockingTasksRunConcurrently(t *testing.T) {
	ctx := context.Background()
	th := New("multi", nil, nil)

	var firstRan, secondRan int32
	th.AddTask("first", func(ctx context.Context) error {
		atomic.AddInt32(&firstRan, 1)
		<-ctx.Done()
		return ctx.Err()
	})
	th.AddTask("second", func(ctx context.Context) error {
		atomic.AddInt32(&secondRan, 1)
		<-ctx.Done()
		return ctx.Err()
	})

	require.NoError(t, th.Start(ctx))
	defer th.Stop(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&firstRan) == 1 && atomic.LoadInt32(&secondRan) == 1
	}, time.Second, 10*time.Millisecond)

	// A blocked task must not starve the separate hosted-loop channel
	// used by Dispatch/RunOnThread.
	dispatchDone := make(chan error, 1)
	go func() { dispatchDone <- th.Dispatch(ctx) }()
	select {
	case err := <-dispatchDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked by a concurrently running task")
	}
}

func TestThreadDispatchFailsWhenNotRunning(t *testing.T) {
	th := New("idle", nil, nil)
	err := th.Dispatch(context.Background())
	assert.Error(t, err)
}
