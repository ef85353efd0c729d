package schema

import (
	"fmt"
	"unsafe"

	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/memory"
)

// checkWidth rejects accessors that would touch bytes outside the field.
// A zero extraOffset must match the field width exactly; a non-zero one
// addresses a member inside it.
func checkWidth(f gamedata.Field, size, extraOffset uintptr) error {
	width := uintptr(f.Width)
	if extraOffset == 0 && size != width {
		return fmt.Errorf("%s::%s is %s (%d bytes), accessor is %d: %w", f.Class, f.Name, f.Type, width, size, ErrWidthMismatch)
	}
	if extraOffset > width || size > width-extraOffset {
		return fmt.Errorf("%s::%s+%d: %d bytes outside %d byte field: %w", f.Class, f.Name, extraOffset, size, width, ErrWidthMismatch)
	}
	return nil
}

func (r *Resolver) place(object uintptr, class, field string, size, extraOffset uintptr) (memory.View, gamedata.Field, uintptr, error) {
	e := r.lookup(class, field)
	if e.err != nil {
		return memory.View{}, e.field, 0, e.err
	}
	if err := checkWidth(e.field, size, extraOffset); err != nil {
		return memory.View{}, e.field, 0, err
	}
	return r.view(object, e), e.field, uintptr(e.field.Offset) + extraOffset, nil
}

// Get reads class::field of object.
func Get[T any](r *Resolver, object uintptr, class, field string) (T, error) {
	return GetAt[T](r, object, class, field, 0)
}

// GetAt reads a T at extraOffset inside class::field of object.
func GetAt[T any](r *Resolver, object uintptr, class, field string, extraOffset uintptr) (T, error) {
	var zero T
	v, _, off, err := r.place(object, class, field, unsafe.Sizeof(zero), extraOffset)
	if err != nil {
		return zero, err
	}
	return memory.ReadAt[T](v, off)
}

// Set writes class::field of object. Unless isStruct is set the state
// change hook fires right after the write.
func Set[T any](r *Resolver, object uintptr, class, field string, value T, isStruct bool) error {
	return SetAt(r, object, class, field, 0, value, isStruct)
}

// SetAt writes a T at extraOffset inside class::field of object.
func SetAt[T any](r *Resolver, object uintptr, class, field string, extraOffset uintptr, value T, isStruct bool) error {
	v, f, off, err := r.place(object, class, field, unsafe.Sizeof(value), extraOffset)
	if err != nil {
		return err
	}
	if err := memory.WriteAt(v, off, value); err != nil {
		return err
	}
	if !isStruct {
		r.notify(object, f, extraOffset)
	}
	return nil
}

// Addr returns the address of class::field on object, for fields passed
// by pointer to native functions.
func Addr(r *Resolver, object uintptr, class, field string) (uintptr, error) {
	e := r.lookup(class, field)
	if e.err != nil {
		return 0, e.err
	}
	return r.view(object, e).Addr(uintptr(e.field.Offset), uintptr(e.field.Width))
}
