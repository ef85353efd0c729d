package memory

import (
	"fmt"
	"unsafe"
)

// Unbounded is the size of a View whose extent is not known.
const Unbounded = ^uintptr(0)

// View is a bounds-checked window over a native object.
type View struct {
	space Space
	base  uintptr
	size  uintptr
}

// NewView returns a View of size bytes at base.
func NewView(s Space, base, size uintptr) View {
	return View{space: s, base: base, size: size}
}

func (v View) Space() Space  { return v.space }
func (v View) Base() uintptr { return v.base }
func (v View) Size() uintptr { return v.size }

// Addr returns the address of n bytes at off, failing when they do not fit.
func (v View) Addr(off, n uintptr) (uintptr, error) {
	if v.base == 0 {
		return 0, ErrNullPointer
	}
	if off > v.size || n > v.size-off {
		return 0, fmt.Errorf("%w: %d bytes at +%#x of %#x", ErrOutOfRange, n, off, v.size)
	}
	return v.base + off, nil
}

// Sub narrows the view to size bytes at off.
func (v View) Sub(off, size uintptr) (View, error) {
	addr, err := v.Addr(off, size)
	if err != nil {
		return View{}, err
	}
	return View{space: v.space, base: addr, size: size}, nil
}

// ReadAt loads a T at off.
func ReadAt[T any](v View, off uintptr) (T, error) {
	var zero T
	addr, err := v.Addr(off, unsafe.Sizeof(zero))
	if err != nil {
		return zero, err
	}
	return Read[T](v.space, addr)
}

// WriteAt stores val at off.
func WriteAt[T any](v View, off uintptr, val T) error {
	addr, err := v.Addr(off, unsafe.Sizeof(val))
	if err != nil {
		return err
	}
	return Write(v.space, addr, val)
}
