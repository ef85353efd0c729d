package chain

import "github.com/corrreia/nativehook/internal/runtime"

// ForwardFunc is a pure notification callback.
type ForwardFunc[P any] func(params P)

// Forward is a notification point without override semantics. When
// attached to native code every call fires the forwards and then runs the
// original, passing its raw result through.
type Forward[P any] struct {
	site[P, uintptr]

	reg registrar
	fwd list[ForwardFunc[P]]
}

// NewForward returns a detached forward point.
func NewForward[P any](name string) *Forward[P] {
	return &Forward[P]{site: site[P, uintptr]{name: name}}
}

// InstallForward registers fn. Higher priority fires first.
func (f *Forward[P]) InstallForward(owner string, fn ForwardFunc[P], priority int) error {
	return addCallback(&f.reg, &f.fwd, f.ensureActive, owner, fn, priority, "forward")
}

// RemoveForward removes fn. Removing an unknown callback does nothing.
func (f *Forward[P]) RemoveForward(fn ForwardFunc[P]) {
	f.reg.mu.Lock()
	defer f.reg.mu.Unlock()
	f.fwd.remove(funcKey(fn))
}

// RemoveOwner drops every forward registered by owner.
func (f *Forward[P]) RemoveOwner(owner string) int {
	f.reg.mu.Lock()
	defer f.reg.mu.Unlock()
	return f.fwd.removeOwner(owner)
}

// Fire runs every forward in order, containing panics.
func (f *Forward[P]) Fire(params P) {
	for _, r := range f.fwd.snapshot() {
		runtime.SafeCall("forward "+f.name+" of "+r.owner, func() { r.fn(params) })
	}
}

// Dispatch fires the forwards and runs the original if one is bound.
func (f *Forward[P]) Dispatch(params P) uintptr {
	f.Fire(params)
	result, _ := f.original(params)
	return result
}

// Info describes the point for listings.
func (f *Forward[P]) Info() Info {
	return Info{
		Name:       f.name,
		State:      f.State(),
		Forwards:   f.fwd.count(),
		Target:     f.Target(),
		Trampoline: f.Trampoline(),
	}
}
