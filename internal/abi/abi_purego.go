//go:build darwin || windows || (freebsd && (amd64 || arm64)) || (linux && (amd64 || arm64))

package abi

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Supported reports whether Callback and Entry work on this platform.
func Supported() bool { return true }

// Callback returns a native entry point for fn. Entry points are never
// released; purego keeps a fixed table of them.
func Callback(fn any) (addr uintptr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("create callback: %v", r)
		}
	}()
	return purego.NewCallback(fn), nil
}

// Call invokes the native function at addr.
func Call(addr uintptr, args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(addr, args...)
	return r1
}

// Entry returns a native entry point taking arity integer arguments that
// forwards them to h.
func Entry(arity int, h Handler) (uintptr, error) {
	var fn any
	switch arity {
	case 0:
		fn = func() uintptr { return h(nil) }
	case 1:
		fn = func(a0 uintptr) uintptr { return h([]uintptr{a0}) }
	case 2:
		fn = func(a0, a1 uintptr) uintptr { return h([]uintptr{a0, a1}) }
	case 3:
		fn = func(a0, a1, a2 uintptr) uintptr { return h([]uintptr{a0, a1, a2}) }
	case 4:
		fn = func(a0, a1, a2, a3 uintptr) uintptr { return h([]uintptr{a0, a1, a2, a3}) }
	case 5:
		fn = func(a0, a1, a2, a3, a4 uintptr) uintptr { return h([]uintptr{a0, a1, a2, a3, a4}) }
	case 6:
		fn = func(a0, a1, a2, a3, a4, a5 uintptr) uintptr { return h([]uintptr{a0, a1, a2, a3, a4, a5}) }
	case 7:
		fn = func(a0, a1, a2, a3, a4, a5, a6 uintptr) uintptr {
			return h([]uintptr{a0, a1, a2, a3, a4, a5, a6})
		}
	case 8:
		fn = func(a0, a1, a2, a3, a4, a5, a6, a7 uintptr) uintptr {
			return h([]uintptr{a0, a1, a2, a3, a4, a5, a6, a7})
		}
	default:
		return 0, fmt.Errorf("%w: %d", ErrArity, arity)
	}
	return Callback(fn)
}
