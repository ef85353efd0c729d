//go:build unix || windows

package memory

import (
	"fmt"
	"runtime/debug"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

type process struct{}

// Process returns the space of the running process.
func Process() Space {
	return process{}
}

func guardFault(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrFault, r)
	}
}

func raw(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

func (process) Read(addr uintptr, dst []byte) (err error) {
	if addr == 0 {
		return ErrNullPointer
	}
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer guardFault(&err)
	copy(dst, raw(addr, len(dst)))
	return nil
}

func (process) Write(addr uintptr, src []byte) (err error) {
	if addr == 0 {
		return ErrNullPointer
	}
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer guardFault(&err)
	copy(raw(addr, len(src)), src)
	return nil
}

func (process) Patch(addr uintptr, src []byte, restore Prot) error {
	if addr == 0 {
		return ErrNullPointer
	}
	return patchProtected(addr, src, restore)
}

func (process) Slice(addr uintptr, n int) ([]byte, error) {
	if addr == 0 {
		return nil, ErrNullPointer
	}
	return raw(addr, n), nil
}

func (process) Alloc(size int) (Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("alloc %d bytes: %w", size, ErrOutOfRange)
	}
	m, err := mmap.MapRegion(nil, size, mmap.RDWR|mmap.EXEC, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("map executable block: %w", err)
	}
	return &execBlock{m: m}, nil
}

type execBlock struct {
	m mmap.MMap
}

func (b *execBlock) Addr() uintptr {
	if len(b.m) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.m[0]))
}

func (b *execBlock) Len() int { return len(b.m) }

func (b *execBlock) Free() error {
	if b.m == nil {
		return nil
	}
	err := b.m.Unmap()
	b.m = nil
	return err
}
