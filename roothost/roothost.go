// SPDX-License-Identifier: MIT

// Package roothost hosts one or more root service.Service trees as
// suture.Service values under a single suture.Supervisor, layering
// OS-process-level restart-with-failure-decay on top of the
// cooperative engine's own crash/restart semantics. A service.Service
// that crashes cascades the crash up to its parent (supervisor.go's
// watch task), if it has one; a root tree that crashes all the way up
// is restarted here, by suture, according to the configured
// failure-decay policy.
package roothost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/thejerf/suture/v4"

	"github.com/ksulejczak/goservice/service"
)

// Config controls the failure-decay restart policy suture applies to
// hosted root trees, matching the field names and defaults the
// cartographus-style TreeConfig documents for suture v4.
type Config struct {
	// FailureThreshold is the number of decayed failures tolerated
	// before FailureBackoff is applied between restarts.
	FailureThreshold float64
	// FailureDecay is, in seconds, how quickly the failure counter
	// decays back toward zero during stable operation.
	FailureDecay float64
	// FailureBackoff is how long suture waits before restarting a
	// root tree once FailureThreshold has been exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long a root tree is given to stop
	// once its context is cancelled.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns suture's own documented production defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree hosts root service.Service trees under a single
// suture.Supervisor.
type Tree struct {
	sup    *suture.Supervisor
	logger *slog.Logger

	mu     sync.Mutex
	tokens map[string]suture.ServiceToken
	starts map[string]time.Time
}

// New builds a Tree named name, logging suture's own lifecycle events
// through logger (nil disables logging).
func New(name string, cfg Config, logger *slog.Logger) *Tree {
	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	if logger != nil {
		spec.Log = func(line string) {
			logger.Info("roothost_event", "tree", name, "message", line)
		}
	}

	return &Tree{
		sup:    suture.New(name, spec),
		logger: logger,
		tokens: make(map[string]suture.ServiceToken),
		starts: make(map[string]time.Time),
	}
}

// AddRoot registers svc as a root tree hosted under this Tree: once
// Serve/ServeBackground is running, svc is started, and if it ever
// reaches StateCrashed, suture restarts it according to the
// configured failure-decay policy.
func (t *Tree) AddRoot(name string, svc *service.Service) {
	host := &serviceHost{name: name, svc: svc, onStart: func() {
		t.mu.Lock()
		t.starts[name] = time.Now()
		t.mu.Unlock()
	}}
	token := t.sup.Add(host)

	t.mu.Lock()
	t.tokens[name] = token
	t.mu.Unlock()
}

// RemoveRoot stops and unregisters the named root tree.
func (t *Tree) RemoveRoot(name string) error {
	t.mu.Lock()
	token, ok := t.tokens[name]
	if ok {
		delete(t.tokens, name)
		delete(t.starts, name)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("roothost: %q is not registered", name)
	}
	return t.sup.Remove(token)
}

// Serve runs the supervisor tree until ctx is cancelled, blocking.
func (t *Tree) Serve(ctx context.Context) error {
	return t.sup.Serve(ctx)
}

// ServeBackground runs the supervisor tree in a new goroutine,
// returning a channel that receives its terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.sup.ServeBackground(ctx)
}

// UnstoppedServiceReport surfaces any root trees that failed to stop
// within their shutdown timeout, for diagnosing a hung shutdown.
func (t *Tree) UnstoppedServiceReport() (suture.UnstoppedServiceReport, error) {
	return t.sup.UnstoppedServiceReport()
}

// Uptime returns how long the named root tree has been running since
// its most recent (re)start, formatted the way an operator console
// would print it.
func (t *Tree) Uptime(name string) string {
	t.mu.Lock()
	start, ok := t.starts[name]
	t.mu.Unlock()
	if !ok {
		return "not running"
	}
	return humanize.RelTime(start, time.Now(), "", "")
}

// serviceHost adapts a *service.Service's Start/Stop lifecycle into
// suture's Serve(ctx) error pattern: Start it, wait for either the
// tree's own shutdown (ctx.Done, clean stop, no restart) or the
// service reaching a terminal crashed state (propagate the crash
// reason as an error, which tells suture to restart it).
type serviceHost struct {
	name    string
	svc     *service.Service
	onStart func()
}

func (h *serviceHost) String() string { return h.name }

func (h *serviceHost) Serve(ctx context.Context) error {
	start := h.svc.Start
	if h.svc.State() == service.StateCrashed {
		// Start refuses a CRASHED service; Restart clears the crash first.
		start = h.svc.Restart
	}
	if err := start(ctx); err != nil {
		return fmt.Errorf("roothost: starting %q: %w", h.name, err)
	}
	if h.onStart != nil {
		h.onStart()
	}

	select {
	case <-ctx.Done():
		_ = h.svc.Stop(context.Background())
		return nil
	case <-h.svc.Stopped():
		if reason := h.svc.CrashReason(); reason != nil {
			return fmt.Errorf("roothost: %q crashed: %w", h.name, reason)
		}
		return nil
	}
}
