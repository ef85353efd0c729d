// Package abi crosses the native call boundary without cgo: it turns Go
// functions into C-callable entry points and calls native addresses.
// Arguments and results are integer-class registers only.
package abi

import "errors"

// MaxArgs is the largest arity Entry supports.
const MaxArgs = 8

var (
	// ErrUnsupported means the platform has no callback support
	ErrUnsupported = errors.New("native callbacks unsupported on this platform")
	// ErrArity means the requested argument count is out of range
	ErrArity = errors.New("unsupported argument count")
)

// Handler receives the raw argument registers of a native call and returns
// the raw result register.
type Handler func(args []uintptr) uintptr
