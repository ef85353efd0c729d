package hook

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/corrreia/nativehook/internal/abi"
	"github.com/corrreia/nativehook/internal/memory"
	nhruntime "github.com/corrreia/nativehook/internal/runtime"
	"github.com/corrreia/nativehook/internal/shared"
)

// MidFunc patches an arbitrary instruction boundary. Execution is diverted
// into a stub that captures the full register state into a Context, calls
// the handler, reloads the registers and resumes at Context.Rip, which is
// the trampoline holding the displaced instructions.
//
// The stub writes below the current stack pointer, so targets inside leaf
// code that keeps live data in the SysV red zone are not supported.
type MidFunc struct {
	mu       sync.Mutex
	id       ID
	space    memory.Space
	conv     CallConv
	entry    uintptr
	target   uintptr
	handler  func(*Context)
	original []byte
	block    memory.Block
	stub     uintptr
	state    State
	disposed bool
}

// MidOptions configures a MidFunc.
type MidOptions struct {
	// Entry is the native function the stub calls with (ctx, id). Zero
	// selects the shared dispatcher, which routes to the handler.
	Entry uintptr
	Conv  CallConv
}

// NewMidFunc returns an unprepared mid-function hook operating on space.
func NewMidFunc(space memory.Space, opts MidOptions) *MidFunc {
	conv := opts.Conv
	if opts.Conv == SysV && runtime.GOOS == "windows" {
		conv = Win64
	}
	m := &MidFunc{space: space, conv: conv, entry: opts.Entry}
	m.id = register(m)
	return m
}

var (
	dispatcherOnce sync.Once
	dispatcher     uintptr
	dispatcherErr  error
)

func midDispatcher() (uintptr, error) {
	dispatcherOnce.Do(func() {
		dispatcher, dispatcherErr = abi.Callback(func(ctx, id uintptr) {
			dispatchMid((*Context)(unsafe.Pointer(ctx)), ID(id))
		})
	})
	return dispatcher, dispatcherErr
}

// dispatchMid resolves the instance behind id and runs its handler.
func dispatchMid(ctx *Context, id ID) {
	inst, ok := Lookup(id)
	if !ok {
		shared.LogError("hook", "midfunc dispatch: no live hook with id %d", id)
		return
	}
	m, ok := inst.(*MidFunc)
	if !ok {
		shared.LogError("hook", "midfunc dispatch: hook %d is a %s", id, inst.Kind())
		return
	}
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return
	}
	nhruntime.SafeCall(fmt.Sprintf("midfunc %d at %#x", id, m.target), func() { h(ctx) })
}

func (m *MidFunc) ID() ID          { return m.id }
func (m *MidFunc) Kind() Kind      { return KindMidFunc }
func (m *MidFunc) Target() uintptr { return m.target }

// Prepare builds the stub and trampoline for target. Targets with fewer
// than a jump's worth of whole, position-independent instructions before
// the end of the function are rejected.
func (m *MidFunc) Prepare(target uintptr, handler func(*Context)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return ErrDisposed
	}
	if m.state == StateInstalled {
		return ErrDoubleInstall
	}
	if target == 0 || handler == nil {
		return ErrNoTarget
	}
	entry := m.entry
	if entry == 0 {
		var err error
		if entry, err = midDispatcher(); err != nil {
			return fmt.Errorf("midfunc %#x: %w", target, err)
		}
	}

	code := make([]byte, window)
	if err := m.space.Read(target, code); err != nil {
		return fmt.Errorf("read midfunc target %#x: %w", target, err)
	}
	c, err := measure(code, jumpLen)
	if err != nil {
		return fmt.Errorf("midfunc %#x: %w", target, err)
	}
	if !c.relocatable {
		return fmt.Errorf("midfunc %#x: %w: %s", target, ErrNotRelocatable, describe(c))
	}

	stub, disp := midStub(entry, m.id, m.conv)
	trampLen := c.length + jumpLen
	stubOff := alignInt(trampLen, 16)
	slotOff := alignInt(stubOff+len(stub), 8)
	// rip-relative displacement from the end of the first stub instruction
	binary.LittleEndian.PutUint32(stub[disp:], uint32(slotOff-(stubOff+6)))

	blk, err := buildTrampoline(m.space, code[:c.length], target, slotOff+8-trampLen)
	if err != nil {
		return fmt.Errorf("midfunc %#x: %w", target, err)
	}
	layout := make([]byte, slotOff+8-stubOff)
	for i := range layout {
		layout[i] = opInt3
	}
	copy(layout, stub)
	binary.LittleEndian.PutUint64(layout[slotOff-stubOff:], uint64(blk.Addr()))
	if err := m.space.Write(blk.Addr()+uintptr(stubOff), layout); err != nil {
		blk.Free()
		return fmt.Errorf("write midfunc stub: %w", err)
	}

	if m.block != nil {
		m.block.Free()
	}
	m.block = blk
	m.stub = blk.Addr() + uintptr(stubOff)
	m.target = target
	m.handler = handler
	m.original = append([]byte(nil), code[:c.length]...)
	shared.LogDebug("hook", "midfunc %d prepared at %#x: stub %#x, %d bytes displaced", m.id, target, m.stub, c.length)
	return nil
}

// Stub is the address of the generated register-saving stub.
func (m *MidFunc) Stub() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stub
}

func (m *MidFunc) Install() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	if m.state == StateInstalled {
		return ErrDoubleInstall
	}
	if m.block == nil {
		return ErrNotPrepared
	}
	cur := make([]byte, len(m.original))
	if err := m.space.Read(m.target, cur); err != nil {
		return fmt.Errorf("read midfunc target %#x: %w", m.target, err)
	}
	if !bytes.Equal(cur, m.original) {
		return fmt.Errorf("midfunc %#x: %w", m.target, ErrTargetChanged)
	}
	if err := m.space.Patch(m.target, jumpPatch(m.stub, len(m.original)), memory.ProtCode); err != nil {
		return fmt.Errorf("patch midfunc %#x: %w", m.target, err)
	}
	m.state = StateInstalled
	return nil
}

func (m *MidFunc) Uninstall() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	return m.uninstall()
}

func (m *MidFunc) uninstall() error {
	if m.state != StateInstalled {
		return nil
	}
	if err := m.space.Patch(m.target, m.original, memory.ProtCode); err != nil {
		return fmt.Errorf("restore midfunc %#x: %w", m.target, err)
	}
	m.state = StateUninstalled
	return nil
}

func (m *MidFunc) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	if err := m.uninstall(); err != nil {
		return err
	}
	if m.block != nil {
		m.block.Free()
		m.block = nil
	}
	m.handler = nil
	m.disposed = true
	release(m.id)
	return nil
}

// Trampoline is the start of the displaced instructions while installed.
func (m *MidFunc) Trampoline() uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInstalled {
		return 0
	}
	return m.block.Addr()
}

func (m *MidFunc) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func alignInt(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}
