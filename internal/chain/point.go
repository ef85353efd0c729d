package chain

import (
	"fmt"
	"sync"

	"github.com/corrreia/nativehook/internal/hook"
	"github.com/corrreia/nativehook/internal/runtime"
)

// Callback is a pre or post callback. It receives the parameters and the
// current decision and returns its own request.
type Callback[P, R any] func(params P, current ReturnValue[P, R]) ReturnValue[P, R]

// HookPoint is one interception site shared by every module that wants to
// observe or override it. P is the parameter bundle, R the return type.
type HookPoint[P, R any] struct {
	site[P, R]

	reg  registrar
	pre  list[Callback[P, R]]
	post list[Callback[P, R]]
	fwd  list[ForwardFunc[P]]
}

// NewHookPoint returns a detached hook point.
func NewHookPoint[P, R any](name string) *HookPoint[P, R] {
	return &HookPoint[P, R]{site: site[P, R]{name: name}}
}

// InstallHookPre registers fn to run before the original. Higher priority
// runs first; equal priorities run in registration order.
func (h *HookPoint[P, R]) InstallHookPre(owner string, fn Callback[P, R], priority int) error {
	return addCallback(&h.reg, &h.pre, h.ensureActive, owner, fn, priority, "pre")
}

// InstallHookPost registers fn to run after the original. Post callbacks
// are not observe-only: one that requests SkipCallReturnOverride or
// ChangeParamReturnOverride replaces the value returned to the native
// caller. Other requests are ignored, and none can undo the original call.
func (h *HookPoint[P, R]) InstallHookPost(owner string, fn Callback[P, R], priority int) error {
	return addCallback(&h.reg, &h.post, h.ensureActive, owner, fn, priority, "post")
}

// InstallForward registers a notification fired after the call with the
// parameters the original actually received.
func (h *HookPoint[P, R]) InstallForward(owner string, fn ForwardFunc[P], priority int) error {
	return addCallback(&h.reg, &h.fwd, h.ensureActive, owner, fn, priority, "forward")
}

// RemoveHookPre removes fn. Removing an unknown callback does nothing.
func (h *HookPoint[P, R]) RemoveHookPre(fn Callback[P, R]) {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	h.pre.remove(funcKey(fn))
}

// RemoveHookPost removes fn. Removing an unknown callback does nothing.
func (h *HookPoint[P, R]) RemoveHookPost(fn Callback[P, R]) {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	h.post.remove(funcKey(fn))
}

// RemoveForward removes fn. Removing an unknown callback does nothing.
func (h *HookPoint[P, R]) RemoveForward(fn ForwardFunc[P]) {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	h.fwd.remove(funcKey(fn))
}

// RemoveOwner drops every registration made by owner and returns how many
// were removed.
func (h *HookPoint[P, R]) RemoveOwner(owner string) int {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return h.pre.removeOwner(owner) + h.post.removeOwner(owner) + h.fwd.removeOwner(owner)
}

// Counts returns the number of pre, post and forward registrations.
func (h *HookPoint[P, R]) Counts() (pre, post, forwards int) {
	return h.pre.count(), h.post.count(), h.fwd.count()
}

// registrar serializes list writers and numbers registrations.
type registrar struct {
	mu  sync.Mutex
	seq uint64
}

func addCallback[F any](g *registrar, l *list[F], activate func() error, owner string, fn F, priority int, phase string) error {
	key := funcKey(fn)
	if key == 0 {
		return ErrNilCallback
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if l.contains(key) {
		return fmt.Errorf("%s callback of %s: %w", phase, owner, ErrDuplicateCallback)
	}
	if err := activate(); err != nil {
		return err
	}
	g.seq++
	l.insert(registration[F]{owner: owner, fn: fn, key: key, priority: priority, seq: g.seq})
	return nil
}

// Dispatch runs the chain for one call: every pre callback in order, the
// original unless the final decision skips it, then post callbacks and
// forwards. Callback panics are logged and treated as abstaining.
func (h *HookPoint[P, R]) Dispatch(params P) ReturnValue[P, R] {
	var c combiner[P, R]

	for _, r := range h.pre.snapshot() {
		req, ok := runtime.SafeCallWithResult(h.context("pre", r.owner), c.current, func() ReturnValue[P, R] {
			return r.fn(params, c.current)
		})
		if ok {
			c.apply(req)
		}
	}

	args := c.args(params)
	if c.callsOriginal() {
		if result, called := h.original(args); called {
			c.settle(result)
		}
	}

	final := c.current
	for _, r := range h.post.snapshot() {
		req, ok := runtime.SafeCallWithResult(h.context("post", r.owner), final, func() ReturnValue[P, R] {
			return r.fn(args, final)
		})
		if ok && req.action.overrides() {
			final.value = req.value
		}
	}

	for _, r := range h.fwd.snapshot() {
		runtime.SafeCall(h.context("forward", r.owner), func() { r.fn(args) })
	}
	return final
}

func (h *HookPoint[P, R]) context(phase, owner string) string {
	return "hook " + h.name + " " + phase + " callback of " + owner
}

// Info describes the point for listings.
func (h *HookPoint[P, R]) Info() Info {
	pre, post, fwd := h.Counts()
	return Info{
		Name:       h.name,
		State:      h.State(),
		Pre:        pre,
		Post:       post,
		Forwards:   fwd,
		Target:     h.Target(),
		Trampoline: h.Trampoline(),
	}
}

// Info is a snapshot of a point's registrations and install state.
type Info struct {
	Name       string
	State      hook.State
	Pre        int
	Post       int
	Forwards   int
	Target     uintptr
	Trampoline uintptr
}

// Registration describes one registered callback.
type Registration struct {
	Phase    string
	Owner    string
	Priority int
	Seq      uint64
}

// Registrations lists callbacks in invocation order, pre then post then
// forwards.
func (h *HookPoint[P, R]) Registrations() []Registration {
	var out []Registration
	out = appendRegistrations(out, "pre", h.pre.snapshot())
	out = appendRegistrations(out, "post", h.post.snapshot())
	return appendRegistrations(out, "forward", h.fwd.snapshot())
}

func appendRegistrations[F any](out []Registration, phase string, regs []registration[F]) []Registration {
	for _, r := range regs {
		out = append(out, Registration{Phase: phase, Owner: r.owner, Priority: r.priority, Seq: r.seq})
	}
	return out
}
