// Package async spawns background goroutines that must never take the
// process down. Supervisor writes and event fan-out run through it.
package async

import "runtime/debug"

// PanicLogger is the minimal logging surface needed for panic reports.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn on its own goroutine guarded by panic recovery.
func Go(logger PanicLogger, name string, fn func()) {
	if fn == nil {
		return
	}
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover logs panic details without crashing the process. Use as a deferred
// call in goroutines that are started elsewhere.
func Recover(logger PanicLogger, name string) {
	if r := recover(); r != nil {
		if logger == nil {
			return
		}
		if name == "" {
			logger.Error("goroutine panic: %v, stack: %s", r, debug.Stack())
			return
		}
		logger.Error("goroutine panic [%s]: %v, stack: %s", name, r, debug.Stack())
	}
}
