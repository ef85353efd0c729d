// Package memory abstracts the address space hooks and schema accessors
// operate on. Process is the live process; Buffer is an arena-backed
// space used for offline analysis and tests.
package memory

import "errors"

var (
	// ErrNullPointer means a read or write at address zero
	ErrNullPointer = errors.New("null pointer")
	// ErrOutOfRange means the access falls outside the mapped or viewed range
	ErrOutOfRange = errors.New("address out of range")
	// ErrFault means the access faulted in the live process
	ErrFault = errors.New("memory fault")
	// ErrUnsupported means the platform cannot provide the operation
	ErrUnsupported = errors.New("unsupported on this platform")
)

// Prot is the protection a patched range is left with.
type Prot int

const (
	// ProtCode leaves the range readable and executable
	ProtCode Prot = iota
	// ProtReadOnly leaves the range readable only, as for vtables
	ProtReadOnly
	// ProtReadWrite leaves the range writable
	ProtReadWrite
)

// Space is an addressable memory space.
type Space interface {
	// Read copies len(dst) bytes starting at addr.
	Read(addr uintptr, dst []byte) error
	// Write copies src to addr. The range must already be writable.
	Write(addr uintptr, src []byte) error
	// Patch writes src to addr, lifting page protection for the duration of
	// the write and leaving the range with restore afterwards.
	Patch(addr uintptr, src []byte, restore Prot) error
	// Slice returns a direct view of n bytes at addr without copying.
	Slice(addr uintptr, n int) ([]byte, error)
	// Alloc returns a block of readable, writable and executable memory.
	Alloc(size int) (Block, error)
}

// Block is an executable allocation owned by a hook.
type Block interface {
	Addr() uintptr
	Len() int
	Free() error
}
