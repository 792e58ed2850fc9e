// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Service methods. Callers should match
// them with errors.Is, not by comparing State values directly.
var (
	// ErrAlreadyRunning is returned by Start when the Service is not
	// in a state Start may be called from.
	ErrAlreadyRunning = errors.New("service: already running")
	// ErrNotRunning is returned by Crash when the Service is not
	// RUNNING or STOPPING, and by Restart when it is not RUNNING,
	// CRASHED, or SHUTDOWN. Stop never returns it.
	ErrNotRunning = errors.New("service: not running")
	// ErrNotFound is returned by RemoveDependency when the given
	// child is not registered.
	ErrNotFound = errors.New("service: dependency not found")
	// ErrUnimplemented is returned by ServiceReset and SetShutdown,
	// both of which are open questions left unresolved upstream.
	ErrUnimplemented = errors.New("service: not implemented")
)

// CrashError wraps the error that caused a Service to transition to
// StateCrashed, whether raised by one of its own guarded tasks or
// cascaded down from a child.
type CrashError struct {
	// Name is the name of the Service that originated the crash.
	Name string
	// Err is the underlying cause.
	Err error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("service %q crashed: %v", e.Name, e.Err)
}

func (e *CrashError) Unwrap() error { return e.Err }

// fromChild wraps a child's CrashError (or plain error) as the crash
// reason recorded on the parent during cascade.
func fromChild(childName string, cause error) *CrashError {
	var ce *CrashError
	if errors.As(cause, &ce) {
		return &CrashError{Name: childName, Err: ce}
	}
	return &CrashError{Name: childName, Err: cause}
}
