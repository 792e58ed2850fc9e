// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"

	"github.com/ksulejczak/goservice/safego"
)

// AddDependency registers child as a static dependency of s: child is
// started alongside s (before s reaches RUNNING) and stopped alongside
// s, and a crash in child cascades up to s. Like AddTask, registration
// is only meaningful before s is started.
func (s *Service) AddDependency(child *Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append(s.children, child)
}

// AddRuntimeDependency registers and immediately starts child while s
// is RUNNING, spawning a watcher for it right away. Calling it in any
// other state is equivalent to AddDependency.
func (s *Service) AddRuntimeDependency(ctx context.Context, child *Service) error {
	if s.State() != StateRunning {
		s.AddDependency(child)
		return nil
	}

	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()

	if err := child.MaybeStart(ctx); err != nil {
		return fmt.Errorf("service %q: starting runtime dependency %q: %w", s.name, child.Name(), err)
	}

	s.mu.RLock()
	runCtx := s.watchCtx
	s.mu.RUnlock()
	if runCtx != nil {
		s.spawnChildWatches(runCtx, []*Service{child})
	}
	return nil
}

// RemoveDependency unregisters child and then, if s is active, stops
// it. Returns ErrNotFound if child is not registered.
func (s *Service) RemoveDependency(ctx context.Context, child *Service) error {
	s.mu.Lock()
	idx := -1
	for i, c := range s.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.children = append(s.children[:idx], s.children[idx+1:]...)
	s.mu.Unlock()

	if s.State().IsActive() {
		return child.Stop(ctx)
	}
	return nil
}

// spawnChildWatches starts one guarded watch task per child. Each
// watcher blocks on the child's Stopped() channel (or ctx.Done()) and,
// if the child's terminal state was a crash, cascades the crash to s.
//
// The cascade is scheduled fire-and-forget (go s.crash(...)) rather
// than awaited inline: crash() cancels every live task on s, including
// the very watcher goroutine that would otherwise be blocked awaiting
// its own cancellation.
func (s *Service) spawnChildWatches(ctx context.Context, children []*Service) {
	for _, child := range children {
		child := child
		s.spawnGuarded(ctx, taskSpec{
			name: "watch:" + child.Name(),
			fn:   s.watchChild(child),
		})
	}
}

func (s *Service) watchChild(child *Service) TaskFunc {
	return func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-child.Stopped():
			if reason := child.CrashReason(); reason != nil {
				cascaded := fromChild(child.Name(), reason)
				safego.Go("crash:"+s.name, s.logger, func() { s.crash(cascaded) })
			}
			return nil
		}
	}
}
