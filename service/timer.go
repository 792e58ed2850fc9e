// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"time"
)

// driftThreshold is the scheduling error above which a timer task
// logs a drift warning instead of silently absorbing it.
const driftThreshold = 100 * time.Millisecond

// timerTask wraps fn so it runs on a fixed cadence: the first
// invocation happens after one interval has elapsed, never
// immediately on start. onDrift, when non-nil, is called whenever the
// wall-clock gap between the scheduled and actual firing time exceeds
// driftThreshold.
//
// The returned TaskFunc returns whatever error fn returns, which
// propagates to the guarded-task retry wrapper exactly like a plain
// task's error would: the whole cadence loop (including its timer
// state) restarts from scratch on the next attempt.
func timerTask(interval time.Duration, fn TaskFunc, onDrift func(drift, interval time.Duration)) TaskFunc {
	return func(ctx context.Context) error {
		next := time.Now().Add(interval)
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case fired := <-timer.C:
				drift := fired.Sub(next)
				if drift < 0 {
					drift = -drift
				}
				if drift > driftThreshold && onDrift != nil {
					onDrift(drift, interval)
				}

				if err := fn(ctx); err != nil {
					return err
				}

				next = next.Add(interval)
				wait := time.Until(next)
				if wait < 0 {
					wait = 0
				}
				timer.Reset(wait)
			}
		}
	}
}
