package hook

import "unsafe"

// Context is the register state captured by a mid-function hook, in the
// order the generated stub pushes it (lowest address first). Handlers may
// modify any field; values are reloaded when the handler returns. Rsp is
// informational. TrampolineRsp is the stack pointer in effect when the
// stub returns to Rip, which initially points at the trampoline holding
// the displaced instructions.
type Context struct {
	Xmm           [16][2]uint64
	Rflags        uint64
	R15           uint64
	R14           uint64
	R13           uint64
	R12           uint64
	R11           uint64
	R10           uint64
	R9            uint64
	R8            uint64
	Rdi           uint64
	Rsi           uint64
	Rdx           uint64
	Rcx           uint64
	Rbx           uint64
	Rax           uint64
	Rbp           uint64
	Rsp           uint64
	TrampolineRsp uint64
	Rip           uint64
}

// ContextSize is the byte size of Context as laid out by the stub.
const ContextSize = int(unsafe.Sizeof(Context{}))

// xmmBytes is the stack area reserved for the vector registers
const xmmBytes = 16 * 16

// rspFieldOffset is the distance of the Rsp field from the general
// register block the stub pushes before reserving xmmBytes.
const rspFieldOffset = 0x80

// CallConv selects how the stub passes arguments to the handler entry.
type CallConv int

const (
	// SysV passes the context in rdi and the hook id in rsi
	SysV CallConv = iota
	// Win64 passes them in rcx and rdx and reserves shadow space
	Win64
)
