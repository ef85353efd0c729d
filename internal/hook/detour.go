package hook

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/internal/shared"
)

// Detour redirects a function entry to dest with an absolute jump. The
// displaced instructions are copied into a trampoline that jumps back past
// the patch.
type Detour struct {
	mu       sync.Mutex
	id       ID
	space    memory.Space
	target   uintptr
	dest     uintptr
	original []byte
	tramp    memory.Block
	state    State
	disposed bool
}

// NewDetour returns an unprepared detour operating on space.
func NewDetour(space memory.Space) *Detour {
	d := &Detour{space: space}
	d.id = register(d)
	return d
}

func (d *Detour) ID() ID          { return d.id }
func (d *Detour) Kind() Kind      { return KindDetour }
func (d *Detour) Target() uintptr { return d.target }

// Prepare analyses target and builds the trampoline. dest is the native
// entry that receives redirected calls.
func (d *Detour) Prepare(target, dest uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return ErrDisposed
	}
	if d.state == StateInstalled {
		return ErrDoubleInstall
	}
	if target == 0 || dest == 0 {
		return ErrNoTarget
	}

	code := make([]byte, window)
	if err := d.space.Read(target, code); err != nil {
		return fmt.Errorf("read detour target %#x: %w", target, err)
	}
	c, err := measure(code, jumpLen)
	if err != nil {
		return fmt.Errorf("detour %#x: %w", target, err)
	}
	if !c.relocatable {
		return fmt.Errorf("detour %#x: %w: %s", target, ErrNotRelocatable, describe(c))
	}

	tramp, err := buildTrampoline(d.space, code[:c.length], target, 0)
	if err != nil {
		return fmt.Errorf("detour %#x: %w", target, err)
	}
	d.freeTrampoline()
	d.tramp = tramp
	d.target = target
	d.dest = dest
	d.original = append([]byte(nil), code[:c.length]...)

	shared.LogDebug("hook", "detour %d prepared at %#x: %d bytes [%s]", d.id, target, c.length, describe(c))
	return nil
}

// buildTrampoline allocates extra+len(saved)+jumpLen bytes and writes the
// displaced instructions followed by a jump back to from+len(saved).
func buildTrampoline(space memory.Space, saved []byte, from uintptr, extra int) (memory.Block, error) {
	blk, err := space.Alloc(len(saved) + jumpLen + extra)
	if err != nil {
		return nil, fmt.Errorf("allocate trampoline: %w", err)
	}
	code := appendJump(append([]byte(nil), saved...), from+uintptr(len(saved)))
	if err := space.Write(blk.Addr(), code); err != nil {
		blk.Free()
		return nil, fmt.Errorf("write trampoline: %w", err)
	}
	return blk, nil
}

func (d *Detour) Install() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disposed {
		return ErrDisposed
	}
	if d.state == StateInstalled {
		return ErrDoubleInstall
	}
	if d.tramp == nil {
		return ErrNotPrepared
	}

	cur := make([]byte, len(d.original))
	if err := d.space.Read(d.target, cur); err != nil {
		return fmt.Errorf("read detour target %#x: %w", d.target, err)
	}
	if !bytes.Equal(cur, d.original) {
		return fmt.Errorf("detour %#x: %w", d.target, ErrTargetChanged)
	}
	if err := d.space.Patch(d.target, jumpPatch(d.dest, len(d.original)), memory.ProtCode); err != nil {
		return fmt.Errorf("patch detour %#x: %w", d.target, err)
	}
	d.state = StateInstalled
	shared.LogDebug("hook", "detour %d installed %#x -> %#x", d.id, d.target, d.dest)
	return nil
}

func (d *Detour) Uninstall() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return ErrDisposed
	}
	return d.uninstall()
}

func (d *Detour) uninstall() error {
	if d.state != StateInstalled {
		return nil
	}
	if err := d.space.Patch(d.target, d.original, memory.ProtCode); err != nil {
		return fmt.Errorf("restore detour %#x: %w", d.target, err)
	}
	d.state = StateUninstalled
	shared.LogDebug("hook", "detour %d removed from %#x", d.id, d.target)
	return nil
}

// Dispose uninstalls the detour if needed and releases the trampoline.
func (d *Detour) Dispose() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return ErrDisposed
	}
	if err := d.uninstall(); err != nil {
		return err
	}
	d.freeTrampoline()
	d.disposed = true
	release(d.id)
	return nil
}

func (d *Detour) freeTrampoline() {
	if d.tramp != nil {
		d.tramp.Free()
		d.tramp = nil
	}
}

func (d *Detour) Trampoline() uintptr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateInstalled {
		return 0
	}
	return d.tramp.Addr()
}

func (d *Detour) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
