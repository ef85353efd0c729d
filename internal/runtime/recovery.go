// Package runtime provides panic containment for code that runs on a
// native caller's stack: hook callbacks, forwards and installer glue.
package runtime

import (
	"fmt"
	"runtime/debug"

	"github.com/corrreia/nativehook/internal/shared"
)

// PanicError is returned by SafeCallWithError when fn panicked.
type PanicError struct {
	Context string
	Value   interface{}
	Stack   string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Context, e.Value)
}

// logPanic is replaceable so tests and hosts can observe contained panics
var logPanic func(context string, panicVal interface{}, stack string)

// SetPanicLogger sets the panic logging function. nil restores the default.
func SetPanicLogger(fn func(context string, panicVal interface{}, stack string)) {
	logPanic = fn
}

func logPanicError(context string, panicVal interface{}, stack string) {
	if logPanic != nil {
		logPanic(context, panicVal, stack)
		return
	}
	shared.Tagged("panic").Errorw("recovered panic", "context", context, "value", panicVal, "stack", stack)
}

// RecoverPanic recovers from a panic and logs the error.
// Must be deferred directly.
func RecoverPanic(context string) {
	if r := recover(); r != nil {
		logPanicError(context, r, string(debug.Stack()))
	}
}

// SafeCall calls fn with panic recovery.
// Returns true if fn completed without panicking.
func SafeCall(context string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logPanicError(context, r, string(debug.Stack()))
			ok = false
		}
	}()
	fn()
	return true
}

// SafeCallWithResult calls fn with panic recovery and returns its result.
// If a panic occurs, returns defaultVal and false.
func SafeCallWithResult[T any](context string, defaultVal T, fn func() T) (result T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logPanicError(context, r, string(debug.Stack()))
			result, ok = defaultVal, false
		}
	}()
	return fn(), true
}

// SafeCallWithError calls fn with panic recovery.
// A panic is logged and returned as *PanicError.
func SafeCallWithError(context string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			logPanicError(context, r, stack)
			err = &PanicError{Context: context, Value: r, Stack: stack}
		}
	}()
	return fn()
}
