// SPDX-License-Identifier: MIT

//go:build linux

// Package lock provides a file-based single-instance lock so that two
// copies of a process hosting the same root supervision tree never run
// against the same control socket and config file at once.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// FileLock is an exclusive flock(2)-based lock with stale-lock
// detection and PID tracking.
type FileLock struct {
	mu   sync.Mutex
	path string
	file *os.File
	pid  int
}

// DefaultStaleThreshold is kept for API compatibility; staleness is
// actually determined by whether the owning PID is still alive, not
// by lock file age (see isLockStale).
const DefaultStaleThreshold = 300 * time.Second

// New creates a FileLock at path, creating its parent directory if
// necessary. The lock is not acquired yet.
func New(path string) (*FileLock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	return &FileLock{path: path, pid: os.Getpid()}, nil
}

// Acquire blocks, polling every 100ms, until the lock is held, ctx is
// canceled, or timeout elapses. A timeout of 0 disables the deadline
// entirely; callers rely on ctx to bound the wait instead.
func (fl *FileLock) Acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if stale, _ := isLockStale(fl.path); stale {
		_ = os.Remove(fl.path)
	}

	// #nosec G304 -- path comes from the process's own config, not user input.
	file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = file.Close()
			return ctx.Err()
		case <-ticker.C:
			if timeout > 0 && time.Now().After(deadline) {
				_ = file.Close()
				return fmt.Errorf("acquiring lock %q: timed out after %v", fl.path, timeout)
			}
		}
	}

	if err := file.Truncate(0); err != nil {
		_ = file.Close()
		return fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		_ = file.Close()
		return fmt.Errorf("seeking lock file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", fl.pid); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing pid to lock file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("syncing lock file: %w", err)
	}

	fl.mu.Lock()
	fl.file = file
	fl.mu.Unlock()
	return nil
}

// Release releases the lock and closes the underlying file.
func (fl *FileLock) Release() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.file == nil {
		return fmt.Errorf("lock %q not held", fl.path)
	}
	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlocking: %w", err)
	}
	if err := fl.file.Close(); err != nil {
		return fmt.Errorf("closing lock file: %w", err)
	}
	fl.file = nil
	return nil
}

// Close releases the lock if held; safe to call unconditionally in a
// defer right after New.
func (fl *FileLock) Close() error {
	fl.mu.Lock()
	held := fl.file != nil
	fl.mu.Unlock()
	if !held {
		return nil
	}
	return fl.Release()
}

// isLockStale reports whether the lock file names a PID that is no
// longer alive. A long-running root host can hold its lock for weeks,
// so staleness is judged purely by liveness, never by file age.
func isLockStale(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// #nosec G304 -- path comes from the process's own config, not user input.
	data, err := os.ReadFile(path)
	if err != nil {
		return true, nil
	}
	pidStr := strings.TrimSpace(string(data))
	if pidStr == "" {
		return true, nil
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return true, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return true, nil
	}
	if err := process.Signal(syscall.Signal(0)); err == nil {
		return false, nil
	}
	return true, nil
}
