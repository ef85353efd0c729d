package hook

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/corrreia/nativehook/internal/memory"
)

// push rbp; mov rbp,rsp; sub rsp,0x20; mov [rbp-8],rdi; mov [rbp-12],esi;
// mov rax,[rbp-8]; leave; ret
var prologue = []byte{
	0x55,
	0x48, 0x89, 0xE5,
	0x48, 0x83, 0xEC, 0x20,
	0x48, 0x89, 0x7D, 0xF8,
	0x89, 0x75, 0xF4,
	0x48, 0x8B, 0x45, 0xF8,
	0xC9,
	0xC3,
}

const prologueCut = 15

func mapCode(t *testing.T, buf *memory.Buffer, code []byte) uintptr {
	t.Helper()
	padded := make([]byte, 64)
	for i := range padded {
		padded[i] = opInt3
	}
	copy(padded, code)
	addr := buf.MapBytes(padded)
	require.NotZero(t, addr)
	return addr
}

func TestMeasureCutsAtInstructionBoundary(t *testing.T) {
	c, err := measure(append(prologue, make([]byte, 16)...), jumpLen)
	require.NoError(t, err)
	require.Equal(t, prologueCut, c.length)
	require.True(t, c.relocatable)
	require.Len(t, c.insts, 5)
}

func TestMeasureRejects(t *testing.T) {
	tests := []struct {
		name        string
		code        []byte
		err         error
		relocatable bool
	}{
		{
			name: "returns early",
			code: []byte{0x31, 0xC0, 0xC3},
			err:  ErrTooShort,
		},
		{
			name: "padding after jump",
			code: []byte{0xEB, 0x10},
			err:  ErrTooShort,
		},
		{
			name: "rip relative load",
			code: []byte{0x48, 0x8B, 0x05, 0, 0, 0, 0, 0x48, 0x89, 0xC7, 0x48, 0x89, 0xC6, 0x90, 0x90},
		},
		{
			name: "relative call",
			code: []byte{0xE8, 0, 0, 0, 0, 0x48, 0x89, 0xC7, 0x48, 0x89, 0xC6, 0x90, 0x90, 0x90},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := make([]byte, window)
			for i := range code {
				code[i] = opInt3
			}
			copy(code, tt.code)
			c, err := measure(code, jumpLen)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.False(t, c.relocatable)
		})
	}
}

func TestDetourLifecycle(t *testing.T) {
	buf := memory.NewBuffer()
	target := mapCode(t, buf, prologue)
	const dest = uintptr(0x7f0000001000)

	d := NewDetour(buf)
	defer d.Dispose()

	require.ErrorIs(t, d.Install(), ErrNotPrepared)
	require.NoError(t, d.Uninstall())
	require.NoError(t, d.Prepare(target, dest))
	require.Zero(t, d.Trampoline())

	require.NoError(t, d.Install())
	require.Equal(t, StateInstalled, d.State())

	patched := buf.Bytes(target, prologueCut)
	to, ok := jumpTarget(patched)
	require.True(t, ok)
	require.Equal(t, dest, to)
	require.Equal(t, byte(opNop), patched[prologueCut-1])

	tramp := d.Trampoline()
	require.NotZero(t, tramp)
	require.Equal(t, prologue[:prologueCut], buf.Bytes(tramp, prologueCut))
	back, ok := jumpTarget(buf.Bytes(tramp+prologueCut, jumpLen))
	require.True(t, ok)
	require.Equal(t, target+prologueCut, back)

	require.ErrorIs(t, d.Install(), ErrDoubleInstall)

	require.NoError(t, d.Uninstall())
	require.Equal(t, prologue, buf.Bytes(target, len(prologue)))
	require.Zero(t, d.Trampoline())

	require.NoError(t, d.Uninstall())
	require.Equal(t, prologue, buf.Bytes(target, len(prologue)))
	require.Equal(t, StateUninstalled, d.State())
}

func TestDetourRejectsUnsafeTargets(t *testing.T) {
	buf := memory.NewBuffer()

	short := mapCode(t, buf, []byte{0x31, 0xC0, 0xC3})
	d := NewDetour(buf)
	defer d.Dispose()
	require.ErrorIs(t, d.Prepare(short, 0x1000), ErrTooShort)
	require.ErrorIs(t, d.Install(), ErrNotPrepared)
	require.Equal(t, StateUninstalled, d.State())
	require.Zero(t, buf.Patches())

	rel := mapCode(t, buf, []byte{0x48, 0x8B, 0x05, 0, 0, 0, 0, 0x48, 0x89, 0xC7, 0x48, 0x89, 0xC6, 0x90, 0x90})
	require.ErrorIs(t, d.Prepare(rel, 0x1000), ErrNotRelocatable)
	require.ErrorIs(t, d.Prepare(0, 0x1000), ErrNoTarget)
}

func TestDetourTargetChanged(t *testing.T) {
	buf := memory.NewBuffer()
	target := mapCode(t, buf, prologue)

	d := NewDetour(buf)
	defer d.Dispose()
	require.NoError(t, d.Prepare(target, 0x1000))
	require.NoError(t, buf.Write(target, []byte{0x90}))
	require.ErrorIs(t, d.Install(), ErrTargetChanged)
	require.Equal(t, StateUninstalled, d.State())
}

func TestDetourDispose(t *testing.T) {
	buf := memory.NewBuffer()
	target := mapCode(t, buf, prologue)

	d := NewDetour(buf)
	require.NoError(t, d.Prepare(target, 0x1000))
	require.NoError(t, d.Install())

	inst, ok := Lookup(d.ID())
	require.True(t, ok)
	require.Same(t, d, inst)

	require.NoError(t, d.Dispose())
	require.Equal(t, prologue, buf.Bytes(target, len(prologue)))
	_, ok = Lookup(d.ID())
	require.False(t, ok)

	require.ErrorIs(t, d.Dispose(), ErrDisposed)
	require.ErrorIs(t, d.Install(), ErrDisposed)
	require.ErrorIs(t, d.Uninstall(), ErrDisposed)
}

func TestVirtualSlot(t *testing.T) {
	buf := memory.NewBuffer()
	vtable := buf.MapBytes(make([]byte, 4*8))
	for i := 0; i < 4; i++ {
		require.NoError(t, memory.Write(buf, vtable+uintptr(i*8), uintptr(0x4000+i*0x10)))
	}
	const dest = uintptr(0xABCDE0)

	v := NewVirtualSlot(buf)
	defer v.Dispose()
	require.NoError(t, v.Prepare(vtable, 2, dest))
	require.Equal(t, vtable+16, v.Target())
	require.NoError(t, v.Install())

	slot, err := memory.ReadPtr(buf, vtable+16)
	require.NoError(t, err)
	require.Equal(t, dest, slot)
	require.Equal(t, uintptr(0x4020), v.Trampoline())
	require.ErrorIs(t, v.Install(), ErrDoubleInstall)

	other, err := memory.ReadPtr(buf, vtable+8)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x4010), other)

	require.NoError(t, v.Uninstall())
	require.NoError(t, v.Uninstall())
	slot, err = memory.ReadPtr(buf, vtable+16)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x4020), slot)
	require.Zero(t, v.Trampoline())
}

func TestVirtualSlotEmpty(t *testing.T) {
	buf := memory.NewBuffer()
	vtable := buf.MapBytes(make([]byte, 16))

	v := NewVirtualSlot(buf)
	defer v.Dispose()
	require.NoError(t, v.Prepare(vtable, 1, 0x1000))
	require.ErrorIs(t, v.Install(), ErrNoTarget)
	require.Equal(t, StateUninstalled, v.State())
	require.Error(t, v.Prepare(vtable, -1, 0x1000))
}

func TestMidStubDecodes(t *testing.T) {
	for _, conv := range []CallConv{SysV, Win64} {
		stub, disp := midStub(0x1122334455667788, 7, conv)
		require.Equal(t, 2, disp)

		counts := make(map[x86asm.Op]int)
		var last x86asm.Inst
		for off := 0; off < len(stub); {
			inst, err := x86asm.Decode(stub[off:], 64)
			require.NoError(t, err, "offset %d", off)
			counts[inst.Op]++
			last = inst
			off += inst.Len
		}
		require.Equal(t, x86asm.RET, last.Op)
		require.Equal(t, 18, counts[x86asm.PUSH])
		require.Equal(t, 16, counts[x86asm.POP])
		require.Equal(t, 32, counts[x86asm.MOVDQU])
		require.Equal(t, 1, counts[x86asm.CALL])
	}
}

func TestContextLayout(t *testing.T) {
	require.Equal(t, 408, ContextSize)
	// general registers pushed before the xmm area
	var c Context
	require.Equal(t, uintptr(xmmBytes+rspFieldOffset), unsafe.Offsetof(c.Rsp))
}

func TestMidFuncLayout(t *testing.T) {
	buf := memory.NewBuffer()
	target := mapCode(t, buf, prologue)
	const entry = uintptr(0xDEADBEEF)

	m := NewMidFunc(buf, MidOptions{Entry: entry, Conv: SysV})
	defer m.Dispose()
	require.ErrorIs(t, m.Prepare(target, nil), ErrNoTarget)
	require.NoError(t, m.Prepare(target, func(*Context) {}))
	require.NoError(t, m.Install())

	to, ok := jumpTarget(buf.Bytes(target, prologueCut))
	require.True(t, ok)
	require.Equal(t, m.Stub(), to)

	stub := buf.Bytes(m.Stub(), 6)
	rel := int32(binary.LittleEndian.Uint32(stub[2:]))
	slot, err := memory.ReadPtr(buf, m.Stub()+6+uintptr(rel))
	require.NoError(t, err)
	require.Equal(t, m.Trampoline(), slot)

	require.Equal(t, prologue[:prologueCut], buf.Bytes(m.Trampoline(), prologueCut))
	back, ok := jumpTarget(buf.Bytes(m.Trampoline()+prologueCut, jumpLen))
	require.True(t, ok)
	require.Equal(t, target+prologueCut, back)

	require.ErrorIs(t, m.Install(), ErrDoubleInstall)
	require.NoError(t, m.Uninstall())
	require.NoError(t, m.Uninstall())
	require.Equal(t, prologue, buf.Bytes(target, len(prologue)))
}

func TestMidFuncDispatch(t *testing.T) {
	buf := memory.NewBuffer()
	target := mapCode(t, buf, prologue)

	m := NewMidFunc(buf, MidOptions{Entry: 0x1000})
	defer m.Dispose()
	require.NoError(t, m.Prepare(target, func(ctx *Context) {
		ctx.Rax = ctx.Rdi + ctx.Rsi
	}))

	ctx := &Context{Rdi: 40, Rsi: 2}
	dispatchMid(ctx, m.ID())
	require.Equal(t, uint64(42), ctx.Rax)

	require.NoError(t, m.Prepare(target, func(*Context) { panic("boom") }))
	require.NotPanics(t, func() { dispatchMid(ctx, m.ID()) })
	require.NotPanics(t, func() { dispatchMid(ctx, ID(1<<60)) })
}
