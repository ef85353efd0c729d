package chain

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/corrreia/nativehook/internal/hook"
	"github.com/corrreia/nativehook/internal/shared"
)

// ErrAlreadyAttached means the point already has an original bound
var ErrAlreadyAttached = errors.New("hook point already attached")

// Invoker calls the original code through trampoline with params and
// returns its result.
type Invoker[P, R any] func(trampoline uintptr, params P) R

type binding[P, R any] struct {
	installer hook.Installer
	call      func(P) R
}

// site holds the link between a hook point and the native code it
// intercepts. Once detached the point keeps no path to the trampoline.
type site[P, R any] struct {
	name     string
	attachMu sync.Mutex
	bound    atomic.Pointer[binding[P, R]]
	inst     hook.Installer
	state    atomic.Int32
	activate func() error
}

// Name is the stable name of the point.
func (s *site[P, R]) Name() string { return s.name }

// State is the install state of the point.
func (s *site[P, R]) State() hook.State { return hook.State(s.state.Load()) }

// Target is the intercepted address, zero for software-bound points.
func (s *site[P, R]) Target() uintptr {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if s.inst == nil {
		return 0
	}
	return s.inst.Target()
}

// Trampoline is the address of the original code path while installed.
func (s *site[P, R]) Trampoline() uintptr {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if s.inst == nil {
		return 0
	}
	return s.inst.Trampoline()
}

// SetActivator registers fn to run when a callback is registered on a
// point that is not yet attached. A failing activator rejects the
// registration.
func (s *site[P, R]) SetActivator(fn func() error) {
	s.attachMu.Lock()
	s.activate = fn
	s.attachMu.Unlock()
}

func (s *site[P, R]) ensureActive() error {
	s.attachMu.Lock()
	fn := s.activate
	attached := s.bound.Load() != nil
	s.attachMu.Unlock()
	if attached || fn == nil {
		return nil
	}
	if err := fn(); err != nil {
		return fmt.Errorf("activate %s: %w", s.name, err)
	}
	return nil
}

// Attach installs inst and routes original calls through invoke. A failed
// install leaves the point detached and in the failed state.
func (s *site[P, R]) Attach(inst hook.Installer, invoke Invoker[P, R]) error {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if s.bound.Load() != nil {
		return ErrAlreadyAttached
	}
	// bound before install so the first redirected call finds it
	s.bound.Store(&binding[P, R]{
		installer: inst,
		call:      func(p P) R { return invoke(inst.Trampoline(), p) },
	})
	if err := inst.Install(); err != nil {
		s.bound.Store(nil)
		s.state.Store(int32(hook.StateFailed))
		shared.LogError("chain", "install %s (%s at %#x) failed: %v", s.name, inst.Kind(), inst.Target(), err)
		return err
	}
	if s.inst != nil && s.inst != inst {
		s.inst.Dispose()
	}
	s.inst = inst
	s.state.Store(int32(hook.StateInstalled))
	shared.LogInfo("chain", "installed %s (%s at %#x)", s.name, inst.Kind(), inst.Target())
	return nil
}

// Fail marks the point failed when no installer could be prepared.
func (s *site[P, R]) Fail(err error) {
	s.state.Store(int32(hook.StateFailed))
	shared.LogError("chain", "attach %s failed: %v", s.name, err)
}

// Bind routes original calls to a Go function instead of native code.
func (s *site[P, R]) Bind(original func(P) R) error {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if s.bound.Load() != nil {
		return ErrAlreadyAttached
	}
	s.bound.Store(&binding[P, R]{call: original})
	s.state.Store(int32(hook.StateInstalled))
	return nil
}

// Detach uninstalls the native hook and drops the original.
func (s *site[P, R]) Detach() error {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	return s.detach()
}

func (s *site[P, R]) detach() error {
	b := s.bound.Load()
	if b == nil {
		return nil
	}
	if b.installer != nil {
		if err := b.installer.Uninstall(); err != nil {
			return fmt.Errorf("uninstall %s: %w", s.name, err)
		}
	}
	s.bound.Store(nil)
	s.state.Store(int32(hook.StateUninstalled))
	return nil
}

// Close detaches the point and disposes its installer.
func (s *site[P, R]) Close() error {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	if err := s.detach(); err != nil {
		return err
	}
	if s.inst != nil {
		err := s.inst.Dispose()
		s.inst = nil
		if err != nil && !errors.Is(err, hook.ErrDisposed) {
			return fmt.Errorf("dispose %s: %w", s.name, err)
		}
	}
	return nil
}

// original calls the bound original, reporting false when none is bound.
func (s *site[P, R]) original(p P) (R, bool) {
	b := s.bound.Load()
	if b == nil {
		var zero R
		return zero, false
	}
	return b.call(p), true
}
