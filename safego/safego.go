// SPDX-License-Identifier: MIT

// Package safego wraps goroutine panic recovery for the rest of the
// module: a panic in a background goroutine must never take the whole
// process down, whether that goroutine is a fire-and-forget crash
// scheduler or a guarded task's own body.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine, recovering and logging any panic
// instead of letting it crash the process. Used for fire-and-forget
// work (like scheduling a crash from inside the very task it would
// cancel) where nothing observes the goroutine's completion.
func Go(name string, logger *slog.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				LogPanic(logger, name, r)
			}
		}()
		fn()
	}()
}

// LogPanic formats and logs a value already captured by a caller's
// own `recover()` (recover must be called directly inside the
// deferred function at the call site — it cannot be delegated to a
// helper and still observe the panic), returning the captured stack
// trace for callers that want to act on it further.
func LogPanic(logger *slog.Logger, name string, r any) []byte {
	stack := debug.Stack()
	if logger != nil {
		logger.Error("panic_recovered",
			"source", name,
			"panic", r,
			"stack", string(stack),
		)
	}
	return stack
}
