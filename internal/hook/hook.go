// Package hook installs low-level interceptions into native code: entry
// detours, virtual table slot swaps and mid-function register hooks.
//
// Every installer follows Prepare, Install, Trampoline, Uninstall, Dispose.
// Install is not idempotent. Uninstall restores the original bytes or slot
// and is a no-op when nothing is installed.
package hook

import (
	"errors"
	"fmt"
)

var (
	// ErrDoubleInstall means Install was called on an installed hook
	ErrDoubleInstall = errors.New("hook already installed")
	// ErrNotPrepared means Install was called before a successful Prepare
	ErrNotPrepared = errors.New("hook not prepared")
	// ErrDisposed means the instance was used after Dispose
	ErrDisposed = errors.New("hook disposed")
	// ErrTooShort means the target has no room for the redirect
	ErrTooShort = errors.New("not enough instructions to patch")
	// ErrNotRelocatable means the patch window holds position-dependent code
	ErrNotRelocatable = errors.New("relative address in instruction")
	// ErrTargetChanged means the target bytes changed between Prepare and Install
	ErrTargetChanged = errors.New("target modified since prepare")
	// ErrNoTarget means a zero target or hook address was supplied
	ErrNoTarget = errors.New("target address not found")
)

// State is the install state of a hook.
type State int

const (
	StateUninstalled State = iota
	StateInstalled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalled:
		return "installed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Kind tells installers apart in listings.
type Kind int

const (
	KindDetour Kind = iota
	KindVirtualSlot
	KindMidFunc
)

func (k Kind) String() string {
	switch k {
	case KindDetour:
		return "detour"
	case KindVirtualSlot:
		return "vslot"
	case KindMidFunc:
		return "midfunc"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Installer is the lifecycle shared by all hook kinds. Preparation differs
// per kind and lives on the concrete types.
type Installer interface {
	ID() ID
	Kind() Kind
	// Target is the patched address: function entry, vtable slot or
	// instruction.
	Target() uintptr
	Install() error
	Uninstall() error
	Dispose() error
	// Trampoline reaches the original code path. Zero unless installed.
	Trampoline() uintptr
	State() State
}
