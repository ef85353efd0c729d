package hook

import (
	"fmt"
	"sync"

	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/internal/shared"
)

// VirtualSlot replaces one entry of a virtual table. Only objects sharing
// that table are affected; subclasses with their own table are not.
type VirtualSlot struct {
	mu       sync.Mutex
	id       ID
	space    memory.Space
	vtable   uintptr
	index    int
	dest     uintptr
	original uintptr
	restore  memory.Prot
	prepared bool
	state    State
	disposed bool
}

// NewVirtualSlot returns an unprepared slot hook operating on space.
// Patched slots are left read-only, matching relocated vtables.
func NewVirtualSlot(space memory.Space) *VirtualSlot {
	v := &VirtualSlot{space: space, restore: memory.ProtReadOnly}
	v.id = register(v)
	return v
}

// SetRestore changes the protection the slot is left with after a write.
func (v *VirtualSlot) SetRestore(p memory.Prot) {
	v.mu.Lock()
	v.restore = p
	v.mu.Unlock()
}

func (v *VirtualSlot) ID() ID     { return v.id }
func (v *VirtualSlot) Kind() Kind { return KindVirtualSlot }

// Target is the address of the slot itself.
func (v *VirtualSlot) Target() uintptr {
	return v.vtable + uintptr(v.index)*shared.PointerSize
}

// Index is the hooked slot index.
func (v *VirtualSlot) Index() int { return v.index }

func (v *VirtualSlot) Prepare(vtable uintptr, index int, dest uintptr) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	if v.state == StateInstalled {
		return ErrDoubleInstall
	}
	if vtable == 0 || dest == 0 {
		return ErrNoTarget
	}
	if index < 0 {
		return fmt.Errorf("vtable %#x: negative slot index %d", vtable, index)
	}
	v.vtable, v.index, v.dest = vtable, index, dest
	v.prepared = true
	return nil
}

func (v *VirtualSlot) Install() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	if v.state == StateInstalled {
		return ErrDoubleInstall
	}
	if !v.prepared {
		return ErrNotPrepared
	}

	slot := v.Target()
	cur, err := memory.ReadPtr(v.space, slot)
	if err != nil {
		return fmt.Errorf("read vtable slot %#x: %w", slot, err)
	}
	if cur == 0 {
		return fmt.Errorf("vtable slot %#x: %w", slot, ErrNoTarget)
	}
	dest := v.dest
	if err := v.space.Patch(slot, memory.AsBytes(&dest), v.restore); err != nil {
		return fmt.Errorf("patch vtable slot %#x: %w", slot, err)
	}
	v.original = cur
	v.state = StateInstalled
	shared.LogDebug("hook", "vslot %d installed %#x[%d]: %#x -> %#x", v.id, v.vtable, v.index, cur, dest)
	return nil
}

func (v *VirtualSlot) Uninstall() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	return v.uninstall()
}

func (v *VirtualSlot) uninstall() error {
	if v.state != StateInstalled {
		return nil
	}
	slot := v.Target()
	if cur, err := memory.ReadPtr(v.space, slot); err == nil && cur != v.dest {
		shared.LogWarning("hook", "vslot %d: slot %#x was rewritten to %#x while hooked", v.id, slot, cur)
	}
	orig := v.original
	if err := v.space.Patch(slot, memory.AsBytes(&orig), v.restore); err != nil {
		return fmt.Errorf("restore vtable slot %#x: %w", slot, err)
	}
	v.state = StateUninstalled
	v.original = 0
	return nil
}

func (v *VirtualSlot) Dispose() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return ErrDisposed
	}
	if err := v.uninstall(); err != nil {
		return err
	}
	v.disposed = true
	release(v.id)
	return nil
}

// Trampoline is the slot's previous value while installed.
func (v *VirtualSlot) Trampoline() uintptr {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateInstalled {
		return 0
	}
	return v.original
}

func (v *VirtualSlot) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}
