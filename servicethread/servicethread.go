// SPDX-License-Identifier: MIT

// Package servicethread provides the thread-hosted variant of
// service.Service: a Service whose tasks run on a dedicated OS thread
// with its own private goroutine scheduler affinity, communicating
// with the owning goroutine through a typed, loop-safe dispatch
// channel instead of shared memory.
package servicethread

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/ksulejczak/goservice/safego"
	"github.com/ksulejczak/goservice/service"
)

// dispatched is a closure posted from the caller's goroutine to the
// hosted thread's event loop, for cross-loop calls that must run on
// the thread owning the relevant state.
type dispatched func()

// Thread hosts a *service.Service whose registered tasks each run
// pinned to their own dedicated OS thread via runtime.LockOSThread
// (see AddTask), plus a separate always-on private event loop thread
// reserved for short ad hoc cross-loop calls (see Dispatch/RunOnThread).
// Start/Stop/etc. on the embedded Service still run on the caller's
// goroutine.
type Thread struct {
	*service.Service

	logger *slog.Logger

	mu          sync.Mutex
	loopPost    chan dispatched
	started     chan struct{}
	loopStopped chan struct{}
}

// New wraps name/hooks into a Service whose tasks run on a dedicated
// OS thread.
func New(name string, hooks service.Hooks, logger *slog.Logger) *Thread {
	return &Thread{
		Service: service.New(name, hooks, logger),
		logger:  logger,
	}
}

// AddTask registers a task whose body runs pinned to its own dedicated
// OS thread rather than an ordinary pooled goroutine: the guarded-
// retry bookkeeping still runs on the embedded Service's normal
// goroutine, but each invocation of fn happens inside a freshly
// locked runtime.LockOSThread goroutine, the Go analog of the original
// giving every task a home on its service's dedicated thread.
func (t *Thread) AddTask(name string, fn service.TaskFunc) {
	t.Service.AddTask(name, t.onDedicatedThread(fn))
}

// AddTimerTask registers a fixed-cadence task whose per-tick body runs
// pinned the same way as AddTask. The cadence/drift bookkeeping itself
// is thread-agnostic and stays in the embedded Service's timer driver;
// only fn's execution is pinned.
func (t *Thread) AddTimerTask(name string, interval time.Duration, fn service.TaskFunc) {
	t.Service.AddTimerTask(name, interval, t.onDedicatedThread(fn))
}

// onDedicatedThread wraps fn so that each call runs inside a goroutine
// locked to its own OS thread via runtime.LockOSThread, blocking the
// caller until fn returns. A fresh locked goroutine per call (rather
// than funneling every task through the single shared loopPost
// channel used by Dispatch/RunOnThread) keeps one long-blocked task
// from starving another task or a concurrent Dispatch call — the
// channel is reserved for short ad hoc cross-loop work.
func (t *Thread) onDedicatedThread(fn service.TaskFunc) service.TaskFunc {
	return func(ctx context.Context) error {
		result := make(chan error, 1)
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			defer func() {
				if r := recover(); r != nil {
					safego.LogPanic(t.logger, t.Name(), r)
					result <- nil
				}
			}()
			result <- fn(ctx)
		}()
		return <-result
	}
}

// Dispatch posts an empty closure to the hosted thread's event loop
// and blocks until the loop has executed it, a round trip showing the
// loop is live and not starved. It is the cross-loop analog of
// Python's call_soon_threadsafe, made synchronous because Go has no
// native "fire into another goroutine's loop" primitive to build on.
func (t *Thread) Dispatch(ctx context.Context) error {
	t.mu.Lock()
	post := t.loopPost
	t.mu.Unlock()
	if post == nil {
		return fmt.Errorf("servicethread %q: not running", t.Name())
	}

	done := make(chan struct{})
	select {
	case post <- func() { close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnThread schedules fn to run on the hosted thread's private loop
// and waits for it to finish. It returns nil once fn has run (a panic
// in fn is recovered and logged by the loop), or ctx's error if ctx
// ends first.
func (t *Thread) RunOnThread(ctx context.Context, fn func()) error {
	t.mu.Lock()
	post := t.loopPost
	t.mu.Unlock()
	if post == nil {
		return fmt.Errorf("servicethread %q: not running", t.Name())
	}

	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case post <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start spawns the dedicated OS thread and its private dispatch loop
// before delegating to the embedded Service's normal start sequence,
// so Dispatch/RunOnThread are usable as soon as Start returns.
func (t *Thread) Start(ctx context.Context) error {
	t.spawnEventLoop()
	if err := t.Service.Start(ctx); err != nil {
		t.stopEventLoop()
		return err
	}
	return nil
}

// Stop runs the embedded Service's normal stop sequence, then tears
// down the dedicated thread's dispatch loop, mirroring the original's
// _stop_tasks_from_child_thread / parent_tasks_stopped handshake.
func (t *Thread) Stop(ctx context.Context) error {
	err := t.Service.Stop(ctx)
	t.stopEventLoop()
	return err
}

// spawnEventLoop launches the dedicated OS thread and its private
// dispatch loop, returning once the loop has signaled it is ready to
// receive posted work. It mirrors ServiceThread._create_my_tasks in
// the original: spawn the thread, wait for parent_tasks_started.
func (t *Thread) spawnEventLoop() {
	post := make(chan dispatched, 64)
	started := make(chan struct{})
	stopped := make(chan struct{})

	t.mu.Lock()
	t.loopPost = post
	t.started = started
	t.loopStopped = stopped
	t.mu.Unlock()

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(stopped)

		close(started)
		for fn := range post {
			func() {
				defer t.recoverLoopPanic()
				fn()
			}()
		}
	}()

	<-started
}

func (t *Thread) recoverLoopPanic() {
	if r := recover(); r != nil {
		safego.LogPanic(t.logger, t.Name(), r)
	}
}

// stopEventLoop closes the dispatch channel and waits for the hosted
// thread's loop goroutine to drain and exit, the equivalent of the
// original's child_tasks_stopped handshake.
func (t *Thread) stopEventLoop() {
	t.mu.Lock()
	post := t.loopPost
	stopped := t.loopStopped
	t.loopPost = nil
	t.started = nil
	t.loopStopped = nil
	t.mu.Unlock()

	if post == nil {
		return
	}
	close(post)
	<-stopped
}
