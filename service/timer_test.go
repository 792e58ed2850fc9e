// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerTaskDoesNotFireImmediately(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	var calls int32
	fn := timerTask(50*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)

	_ = fn(ctx)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestTimerTaskReportsDrift(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driftReported := make(chan struct{}, 1)
	callCount := 0
	fn := timerTask(10*time.Millisecond, func(ctx context.Context) error {
		callCount++
		if callCount == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		if callCount == 2 {
			cancel()
		}
		return nil
	}, func(drift, interval time.Duration) {
		select {
		case driftReported <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		_ = fn(ctx)
		close(done)
	}()

	select {
	case <-driftReported:
	case <-time.After(time.Second):
		t.Fatal("drift was never reported")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer task never returned after cancellation")
	}
	require.GreaterOrEqual(t, callCount, 2)
}
