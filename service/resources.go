// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
)

// Resource acquires a synchronous resource and returns the function
// that releases it.
type Resource func() (release func() error, err error)

// AsyncResource acquires a context-aware resource and returns the
// function that releases it.
type AsyncResource func(ctx context.Context) (release func(ctx context.Context) error, err error)

type resourceEntry struct {
	release func(ctx context.Context) error
}

// AddContext registers a synchronous resource to be acquired the
// next time Start runs, in registration order, after all async
// resources. Like AddTask, registration is pre-start only.
func (s *Service) AddContext(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncResources = append(s.syncResources, r)
}

// AddAsyncContext registers a context-aware resource to be acquired
// the next time Start runs, before any synchronous resource, in
// registration order.
func (s *Service) AddAsyncContext(r AsyncResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asyncResources = append(s.asyncResources, r)
}

// acquireResources acquires every registered resource in order
// (async resources, then sync resources), keeping the two kinds on
// separate stacks exactly as the original keeps a separate
// AsyncExitStack and ExitStack. If any acquisition fails, everything
// acquired so far — across both stacks — is unwound in reverse
// acquisition order before the error is returned.
func (s *Service) acquireResources(ctx context.Context) error {
	s.mu.RLock()
	asyncResources := s.asyncResources
	syncResources := s.syncResources
	s.mu.RUnlock()

	var asyncStack, syncStack []resourceEntry
	unwind := func() {
		for i := len(syncStack) - 1; i >= 0; i-- {
			if err := syncStack[i].release(ctx); err != nil {
				s.logEvent(slog.LevelWarn, "resource_unwind_error", "error", err)
			}
		}
		for i := len(asyncStack) - 1; i >= 0; i-- {
			if err := asyncStack[i].release(ctx); err != nil {
				s.logEvent(slog.LevelWarn, "resource_unwind_error", "error", err)
			}
		}
	}

	for _, r := range asyncResources {
		release, err := r(ctx)
		if err != nil {
			unwind()
			return fmt.Errorf("acquire async resource: %w", err)
		}
		asyncStack = append(asyncStack, resourceEntry{release: release})
	}

	for _, r := range syncResources {
		release, err := r()
		if err != nil {
			unwind()
			return fmt.Errorf("acquire resource: %w", err)
		}
		syncStack = append(syncStack, resourceEntry{release: func(context.Context) error { return release() }})
	}

	s.mu.Lock()
	s.activeAsyncResources = asyncStack
	s.activeSyncResources = syncStack
	s.mu.Unlock()
	return nil
}

// releaseResources releases the async resource stack fully (LIFO),
// then the sync resource stack fully (LIFO) — the original releases
// its AsyncExitStack entirely before its ExitStack — logging but not
// stopping on individual release errors.
func (s *Service) releaseResources(ctx context.Context) {
	s.mu.Lock()
	asyncStack := s.activeAsyncResources
	syncStack := s.activeSyncResources
	s.activeAsyncResources = nil
	s.activeSyncResources = nil
	s.mu.Unlock()

	for i := len(asyncStack) - 1; i >= 0; i-- {
		if err := asyncStack[i].release(ctx); err != nil {
			s.logEvent(slog.LevelWarn, "resource_release_error", "error", err)
		}
	}
	for i := len(syncStack) - 1; i >= 0; i-- {
		if err := syncStack[i].release(ctx); err != nil {
			s.logEvent(slog.LevelWarn, "resource_release_error", "error", err)
		}
	}
}
