// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Hooks lets a Service owner observe and influence lifecycle
// transitions without subclassing: Service holds a Hooks value and
// calls each method at the matching point in Start/Stop/Restart.
// Embed NoopHooks to implement only the hooks that matter.
type Hooks interface {
	// OnFirstStart runs once, before the very first Start of this
	// Service's lifetime (not repeated across Restart).
	OnFirstStart(ctx context.Context) error
	// OnStart runs at the beginning of every Start, before resources
	// are acquired and tasks are spawned.
	OnStart(ctx context.Context) error
	// OnStarted runs at the end of every successful Start, once the
	// Service has reached StateRunning.
	OnStarted(ctx context.Context) error
	// OnStop runs at the beginning of every Stop, before children are
	// stopped and resources are released.
	OnStop(ctx context.Context) error
	// OnShutdown runs at the end of every Stop, once the Service has
	// reached StateShutdown.
	OnShutdown(ctx context.Context) error
	// OnRestart runs between the shutdown phase and the start phase
	// of Restart. Any crash reason from a prior run has already been
	// cleared by the time this fires.
	OnRestart(ctx context.Context) error
}

// NoopHooks is a Hooks implementation whose methods all do nothing.
// Embed it anonymously to implement only the hooks you need.
type NoopHooks struct{}

func (NoopHooks) OnFirstStart(context.Context) error { return nil }
func (NoopHooks) OnStart(context.Context) error      { return nil }
func (NoopHooks) OnStarted(context.Context) error    { return nil }
func (NoopHooks) OnStop(context.Context) error       { return nil }
func (NoopHooks) OnShutdown(context.Context) error   { return nil }
func (NoopHooks) OnRestart(context.Context) error    { return nil }

// Service is a single node in the lifecycle/supervision tree: a
// named bundle of tasks, resources, and child services that moves
// through the INIT -> STARTING -> RUNNING -> STOPPING -> SHUTDOWN
// states (with an orthogonal CRASHED state reachable from RUNNING or
// STOPPING via Crash, and from STARTING when Start fails), exposed
// behind Start/Stop/Restart/Crash.
type Service struct {
	name   string
	hooks  Hooks
	logger *slog.Logger

	mu          sync.RWMutex
	state       State
	startCount  int
	firstStart  bool
	crashReason error

	tasksToStart         []taskSpec
	syncResources        []Resource
	asyncResources       []AsyncResource
	activeSyncResources  []resourceEntry
	activeAsyncResources []resourceEntry

	children []*Service

	taskWG    sync.WaitGroup
	runCancel context.CancelFunc
	watchCtx  context.Context

	stoppedMu sync.Mutex
	stoppedCh chan struct{}
}

// New constructs a Service in StateInit. A nil hooks is treated as
// NoopHooks{}. A nil logger disables all logging.
func New(name string, hooks Hooks, logger *slog.Logger) *Service {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	s := &Service{
		name:      name,
		hooks:     hooks,
		logger:    logger,
		state:     StateInit,
		firstStart: true,
	}
	s.stoppedCh = make(chan struct{})
	close(s.stoppedCh) // a never-started Service is vacuously "stopped"
	return s
}

// FromFunc builds a Service with a single registered task, the Go
// equivalent of wrapping one bare coroutine into a minimal service.
func FromFunc(name string, fn TaskFunc) *Service {
	s := New(name, nil, nil)
	s.AddTask(name, fn)
	return s
}

// Name returns the Service's name, used in logging and in crash
// wrapping when this Service's failure cascades to a parent.
func (s *Service) Name() string { return s.name }

// State returns the Service's current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CrashReason returns the error that caused the most recent crash,
// or nil if the Service has never crashed or has since been
// restarted (restart clears the crash reason before OnRestart runs).
func (s *Service) CrashReason() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crashReason
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Service) logEvent(level slog.Level, event string, args ...any) {
	if s.logger == nil {
		return
	}
	allArgs := append([]any{"event", event, "service", s.name}, args...)
	s.logger.Log(context.Background(), level, event, allArgs...)
}

// Start runs the Service: OnFirstStart (once ever), OnStart, starts
// every registered child, acquires every registered resource, spawns
// every registered task and a watcher for every child, then OnStarted.
// It returns ErrAlreadyRunning if called from a state other than INIT
// or SHUTDOWN. A CRASHED Service must go through Restart instead,
// which resets it (and so clears crashReason) before starting again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateInit, StateShutdown:
	default:
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	firstStart := s.firstStart
	s.firstStart = false
	s.mu.Unlock()

	s.setState(StateStarting)

	if firstStart {
		if err := s.hooks.OnFirstStart(ctx); err != nil {
			s.setState(StateCrashed)
			return fmt.Errorf("service %q: OnFirstStart: %w", s.name, err)
		}
	}
	if err := s.hooks.OnStart(ctx); err != nil {
		s.setState(StateCrashed)
		return fmt.Errorf("service %q: OnStart: %w", s.name, err)
	}

	s.mu.RLock()
	children := append([]*Service(nil), s.children...)
	s.mu.RUnlock()

	if err := startChildren(ctx, children); err != nil {
		s.setState(StateCrashed)
		return fmt.Errorf("service %q: %w", s.name, err)
	}

	if err := s.acquireResources(ctx); err != nil {
		s.setState(StateCrashed)
		return fmt.Errorf("service %q: %w", s.name, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.runCancel = cancel
	s.watchCtx = runCtx
	s.mu.Unlock()

	s.stoppedMu.Lock()
	s.stoppedCh = make(chan struct{})
	s.stoppedMu.Unlock()

	s.spawnTasks(runCtx)
	s.spawnChildWatches(runCtx, children)

	s.setState(StateRunning)

	s.mu.Lock()
	s.startCount++
	s.mu.Unlock()

	if err := s.hooks.OnStarted(ctx); err != nil {
		return fmt.Errorf("service %q: OnStarted: %w", s.name, err)
	}
	return nil
}

// MaybeStart calls Start only when the Service is currently in
// StateInit; any other state (including CRASHED and SHUTDOWN, which
// require an explicit Restart) is a no-op.
func (s *Service) MaybeStart(ctx context.Context) error {
	if s.State() != StateInit {
		return nil
	}
	return s.Start(ctx)
}

// Stop runs the shutdown half of the lifecycle: OnStop, stops every
// child, cancels and waits for every live task, releases every
// acquired resource, then OnShutdown. Calling Stop on an inactive
// Service (INIT or already SHUTDOWN) is a no-op, matching the
// original's idempotent stop.
func (s *Service) Stop(ctx context.Context) error {
	if s.State().IsInactive() {
		return nil
	}
	return s.doShutdown(ctx)
}

func (s *Service) doShutdown(ctx context.Context) error {
	s.setState(StateStopping)

	if err := s.hooks.OnStop(ctx); err != nil {
		s.logEvent(slog.LevelWarn, "on_stop_error", "error", err)
	}

	s.mu.RLock()
	children := append([]*Service(nil), s.children...)
	s.mu.RUnlock()
	stopChildren(ctx, children, func(child *Service, err error) {
		s.logEvent(slog.LevelWarn, "child_stop_error", "child", child.Name(), "error", err)
	})

	s.mu.Lock()
	cancel := s.runCancel
	s.runCancel = nil
	s.watchCtx = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.taskWG.Wait()

	s.releaseResources(ctx)

	s.stoppedMu.Lock()
	close(s.stoppedCh)
	s.stoppedMu.Unlock()

	s.setState(StateShutdown)

	if err := s.hooks.OnShutdown(ctx); err != nil {
		s.logEvent(slog.LevelWarn, "on_shutdown_error", "error", err)
	}

	s.reset()
	return nil
}

// reset clears the per-run state that must not survive a shutdown:
// live task bookkeeping, the acquired-resource stack, and the crash
// reason. Registered children and the tasks/resources queued for the
// next Start are deliberately left untouched.
func (s *Service) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSyncResources = nil
	s.activeAsyncResources = nil
	s.crashReason = nil
}

// Crash transitions the Service directly to StateCrashed, cancelling
// every live task and recording reason, then cascades the crash down
// to every registered child. It returns ErrNotRunning unless the
// Service is RUNNING or STOPPING (so also when it is already CRASHED).
func (s *Service) Crash(reason error) error {
	return s.crash(reason)
}

func (s *Service) crash(reason error) error {
	if !s.State().IsCrashable() {
		return ErrNotRunning
	}

	s.mu.Lock()
	cancel := s.runCancel
	s.runCancel = nil
	s.watchCtx = nil
	s.crashReason = reason
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.taskWG.Wait()

	s.mu.RLock()
	children := append([]*Service(nil), s.children...)
	s.mu.RUnlock()
	for _, child := range children {
		_ = child.crash(fmt.Errorf("parent %q crashed: %w", s.name, reason))
	}

	s.releaseResources(context.Background())

	s.stoppedMu.Lock()
	select {
	case <-s.stoppedCh:
	default:
		close(s.stoppedCh)
	}
	s.stoppedMu.Unlock()

	s.setState(StateCrashed)
	s.logEvent(slog.LevelError, "crashed", "reason", reason)
	return nil
}

// Restart shuts the Service down (if active) and starts it again,
// running OnRestart in between. It is only valid from RUNNING,
// CRASHED, or SHUTDOWN; from any other state it returns ErrNotRunning.
func (s *Service) Restart(ctx context.Context) error {
	if !s.State().IsRestartable() {
		return ErrNotRunning
	}
	if s.State().IsActive() {
		if err := s.doShutdown(ctx); err != nil {
			return err
		}
	} else if s.State() == StateCrashed {
		s.reset()
		s.setState(StateShutdown)
	}

	if err := s.hooks.OnRestart(ctx); err != nil {
		return fmt.Errorf("service %q: OnRestart: %w", s.name, err)
	}
	return s.Start(ctx)
}

// WaitUntilStopped blocks until the Service reaches SHUTDOWN or
// CRASHED, or ctx is done, whichever comes first.
func (s *Service) WaitUntilStopped(ctx context.Context) error {
	s.stoppedMu.Lock()
	ch := s.stoppedCh
	s.stoppedMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped returns a channel that is closed once the Service reaches
// SHUTDOWN or CRASHED. It is the channel-based equivalent of
// WaitUntilStopped, used by the supervisor half for child watching.
func (s *Service) Stopped() <-chan struct{} {
	s.stoppedMu.Lock()
	defer s.stoppedMu.Unlock()
	return s.stoppedCh
}

// Use runs fn with the Service started, guaranteeing Stop is called
// on return even if fn panics or returns an error — the Go analog of
// the original's async context-manager (__aenter__/__aexit__) usage.
func (s *Service) Use(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = s.Stop(ctx)
	}()
	return fn(ctx)
}

// startChildren starts every child concurrently, mirroring the
// original's asyncio.gather fan-out, and returns the first error
// encountered (if any) once every goroutine has finished.
func startChildren(ctx context.Context, children []*Service) error {
	var wg sync.WaitGroup
	errs := make([]error, len(children))
	for i, child := range children {
		wg.Add(1)
		go func(i int, child *Service) {
			defer wg.Done()
			if err := child.MaybeStart(ctx); err != nil {
				errs[i] = fmt.Errorf("starting child %q: %w", child.Name(), err)
			}
		}(i, child)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// stopChildren stops every child concurrently, mirroring the
// original's asyncio.gather fan-out. A child's stop error does not
// abort the others; it is reported to onErr from that child's own
// goroutine as soon as its Stop returns, and stopChildren returns once
// all children are done.
func stopChildren(ctx context.Context, children []*Service, onErr func(child *Service, err error)) {
	var wg sync.WaitGroup
	for _, child := range children {
		wg.Add(1)
		go func(child *Service) {
			defer wg.Done()
			if err := child.Stop(ctx); err != nil {
				onErr(child, err)
			}
		}(child)
	}
	wg.Wait()
}

// ServiceReset is an open question left unresolved upstream: the
// original raises NotImplementedError, so this always returns
// ErrUnimplemented.
func (s *Service) ServiceReset() error { return ErrUnimplemented }

// SetShutdown is an open question left unresolved upstream: the
// original raises NotImplementedError, so this always returns
// ErrUnimplemented.
func (s *Service) SetShutdown() error { return ErrUnimplemented }
