// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ksulejczak/goservice/safego"
)

// maxTaskAttempts is the total number of attempts (the first run
// included) a guarded task gets before the owning Service crashes. The spec calls for no backoff
// between attempts: a failing task is retried immediately.
const maxTaskAttempts = 10

// TaskFunc is the body of a task registered with AddTask or
// AddTimerTask. It must respect ctx cancellation and return promptly
// once ctx.Done() fires.
type TaskFunc func(ctx context.Context) error

type taskSpec struct {
	name string
	fn   TaskFunc
}

// AddTask registers a task to be spawned the next time Start runs.
// Like AddContext, registration is only honored before the Service
// is running; calling it while active is a programming error the
// caller is expected to avoid (the engine does not guard against it).
func (s *Service) AddTask(name string, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasksToStart = append(s.tasksToStart, taskSpec{name: name, fn: fn})
}

// AddTimerTask registers a task that runs fn on a fixed cadence,
// first firing one interval after Start, logging a structured
// warning whenever the actual firing time drifts from the scheduled
// one by more than 100ms.
func (s *Service) AddTimerTask(name string, interval time.Duration, fn TaskFunc) {
	wrapped := timerTask(interval, fn, func(drift, interval time.Duration) {
		s.logEvent(slog.LevelWarn, "timer_drift",
			"task", name,
			"drift", drift,
			"interval", interval,
		)
	})
	s.AddTask(name, wrapped)
}

// spawnTasks starts a goroutine per registered task, each wrapped in
// the guarded-retry loop. All of them share ctx, whose cancel func
// Start records so Stop and Crash can cancel them later.
func (s *Service) spawnTasks(ctx context.Context) {
	s.mu.Lock()
	specs := s.tasksToStart
	s.mu.Unlock()

	for _, spec := range specs {
		s.spawnGuarded(ctx, spec)
	}
}

// spawnGuarded starts a single guarded task goroutine tracked by the
// Service's task WaitGroup. It is used both for pre-registered tasks
// and for the dynamic watch tasks the supervisor half of the engine
// attaches to children.
func (s *Service) spawnGuarded(ctx context.Context, spec taskSpec) {
	s.taskWG.Add(1)
	go s.runGuarded(ctx, spec)
}

// runGuarded runs spec.fn up to maxTaskAttempts times with no
// backoff between attempts. Context cancellation is never retried —
// it always ends the loop immediately, regardless of attempt count.
// Exhausting the attempt budget schedules a crash as fire-and-forget
// (go s.crash(...), not awaited) so that a task's own goroutine never
// blocks waiting on the very crash that will cancel its context.
func (s *Service) runGuarded(ctx context.Context, spec taskSpec) {
	defer s.taskWG.Done()
	defer s.recoverPanic(spec.name)

	var lastErr error
	for attempt := 1; attempt <= maxTaskAttempts; attempt++ {
		err := spec.fn(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		lastErr = err
		s.logEvent(slog.LevelWarn, "task_failed",
			"task", spec.name,
			"attempt", attempt,
			"error", err,
		)
	}

	reason := fmt.Errorf("task %q failed after %d attempts: %w", spec.name, maxTaskAttempts, lastErr)
	safego.Go("crash:"+s.name, s.logger, func() { s.crash(reason) })
}

// recoverPanic converts a panic inside a task body into a crash
// instead of letting it take down the process, mirroring the
// teacher's SafeGo panic-recovery wrapper around spawned goroutines.
// recover() is called here directly, since this is the function
// actually registered with defer; only the formatting and crash
// scheduling are delegated.
func (s *Service) recoverPanic(taskName string) {
	if r := recover(); r != nil {
		safego.LogPanic(s.logger, taskName, r)
		reason := fmt.Errorf("task %q panicked: %v", taskName, r)
		safego.Go("crash:"+s.name, s.logger, func() { s.crash(reason) })
	}
}
