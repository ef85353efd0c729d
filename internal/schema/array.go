package schema

import (
	"fmt"
	"unsafe"

	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/memory"
)

// FixedArray is a fixed-size array field of an object.
type FixedArray[T any] struct {
	r      *Resolver
	object uintptr
	field  gamedata.Field
	view   memory.View
}

// Array returns the array field class::field of object. T must match the
// declared element type width.
func Array[T any](r *Resolver, object uintptr, class, field string) (FixedArray[T], error) {
	var zero T
	e := r.lookup(class, field)
	if e.err != nil {
		return FixedArray[T]{}, e.err
	}
	f := e.field
	if uintptr(f.Elem) != unsafe.Sizeof(zero) {
		return FixedArray[T]{}, fmt.Errorf("%s::%s element is %d bytes, accessor is %d: %w",
			f.Class, f.Name, f.Elem, unsafe.Sizeof(zero), ErrWidthMismatch)
	}
	v, err := r.view(object, e).Sub(uintptr(f.Offset), uintptr(f.Width))
	if err != nil {
		return FixedArray[T]{}, err
	}
	return FixedArray[T]{r: r, object: object, field: f, view: v}, nil
}

// Len is the declared element count.
func (a FixedArray[T]) Len() int { return int(a.field.Count) }

func (a FixedArray[T]) offset(i int) (uintptr, error) {
	if i < 0 || i >= a.Len() {
		return 0, fmt.Errorf("%s::%s[%d] of %d: %w", a.field.Class, a.field.Name, i, a.Len(), memory.ErrOutOfRange)
	}
	return uintptr(i) * uintptr(a.field.Elem), nil
}

// Get reads element i.
func (a FixedArray[T]) Get(i int) (T, error) {
	off, err := a.offset(i)
	if err != nil {
		var zero T
		return zero, err
	}
	return memory.ReadAt[T](a.view, off)
}

// Set writes element i, firing the state change hook unless isStruct.
func (a FixedArray[T]) Set(i int, v T, isStruct bool) error {
	off, err := a.offset(i)
	if err != nil {
		return err
	}
	if err := memory.WriteAt(a.view, off, v); err != nil {
		return err
	}
	if !isStruct {
		a.r.notify(a.object, a.field, off)
	}
	return nil
}

// Slice reads every element.
func (a FixedArray[T]) Slice() ([]T, error) {
	out := make([]T, a.Len())
	for i := range out {
		v, err := a.Get(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
