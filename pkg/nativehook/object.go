package nativehook

import (
	"errors"

	"github.com/corrreia/nativehook/internal/schema"
)

// ErrNilObject means an accessor was used on a null object pointer
var ErrNilObject = errors.New("object pointer is nil")

// Object is a native object with schema property access. Class is the
// schema class used when a property's class is not given.
type Object struct {
	Class string
	ptr   uintptr
	rt    *Runtime
}

// Wrap returns the object at ptr, typed as class.
func (r *Runtime) Wrap(ptr uintptr, class string) *Object {
	return &Object{Class: class, ptr: ptr, rt: r}
}

// Ptr returns the native object pointer.
func (o *Object) Ptr() uintptr {
	if o == nil {
		return 0
	}
	return o.ptr
}

// IsValid returns true if the object has a pointer and a runtime.
func (o *Object) IsValid() bool {
	return o != nil && o.ptr != 0 && o.rt != nil
}

func (o *Object) resolver() (*schema.Resolver, error) {
	if !o.IsValid() {
		return nil, ErrNilObject
	}
	return o.rt.schema, nil
}

// ============================================================
// Schema Property Access
// ============================================================

// Get reads className::fieldName of o as a T.
func Get[T any](o *Object, className, fieldName string) (T, error) {
	r, err := o.resolver()
	if err != nil {
		var zero T
		return zero, err
	}
	return schema.Get[T](r, o.ptr, className, fieldName)
}

// Set writes className::fieldName of o. The state change hook fires
// unless the owning class is an embedded struct.
func Set[T any](o *Object, className, fieldName string, value T) error {
	r, err := o.resolver()
	if err != nil {
		return err
	}
	f, err := r.Resolve(className, fieldName)
	if err != nil {
		return err
	}
	return schema.Set(r, o.ptr, className, fieldName, value, f.Struct)
}

// GetPropInt reads an int32 property via schema.
func (o *Object) GetPropInt(className, fieldName string) (int32, error) {
	return Get[int32](o, className, fieldName)
}

// SetPropInt writes an int32 property via schema.
// Networked fields fire the state change hook.
func (o *Object) SetPropInt(className, fieldName string, value int32) error {
	return Set(o, className, fieldName, value)
}

// GetPropFloat reads a float32 property via schema.
func (o *Object) GetPropFloat(className, fieldName string) (float32, error) {
	return Get[float32](o, className, fieldName)
}

// SetPropFloat writes a float32 property via schema.
func (o *Object) SetPropFloat(className, fieldName string, value float32) error {
	return Set(o, className, fieldName, value)
}

// GetPropBool reads a bool property via schema.
func (o *Object) GetPropBool(className, fieldName string) (bool, error) {
	return Get[bool](o, className, fieldName)
}

// SetPropBool writes a bool property via schema.
func (o *Object) SetPropBool(className, fieldName string, value bool) error {
	return Set(o, className, fieldName, value)
}

// GetPropString reads an inline or pooled string property via schema.
func (o *Object) GetPropString(className, fieldName string) (string, error) {
	r, err := o.resolver()
	if err != nil {
		return "", err
	}
	return schema.GetString(r, o.ptr, className, fieldName)
}

// SetPropString writes a string property via schema. Inline arrays are
// truncated to fit.
func (o *Object) SetPropString(className, fieldName, value string) error {
	r, err := o.resolver()
	if err != nil {
		return err
	}
	f, err := r.Resolve(className, fieldName)
	if err != nil {
		return err
	}
	return schema.SetString(r, o.ptr, className, fieldName, value, f.Struct)
}

// GetPropVector reads a Vector property via schema.
func (o *Object) GetPropVector(className, fieldName string) (Vector, error) {
	return Get[Vector](o, className, fieldName)
}

// SetPropVector writes a Vector property via schema.
func (o *Object) SetPropVector(className, fieldName string, v Vector) error {
	return Set(o, className, fieldName, v)
}

// GetPropHandle reads an entity handle property via schema.
func (o *Object) GetPropHandle(className, fieldName string) (Handle, error) {
	return Get[Handle](o, className, fieldName)
}

// GetPropObject follows a pointer property, typing the result as class.
func (o *Object) GetPropObject(className, fieldName, class string) (*Object, error) {
	ptr, err := Get[uintptr](o, className, fieldName)
	if err != nil {
		return nil, err
	}
	return o.rt.Wrap(ptr, class), nil
}

// Embedded returns the struct field className::fieldName as an object of
// class, for nested schema access.
func (o *Object) Embedded(className, fieldName, class string) (*Object, error) {
	r, err := o.resolver()
	if err != nil {
		return nil, err
	}
	addr, err := schema.Addr(r, o.ptr, className, fieldName)
	if err != nil {
		return nil, err
	}
	return o.rt.Wrap(addr, class), nil
}

// Array returns a fixed-size array property.
func Array[T any](o *Object, className, fieldName string) (schema.FixedArray[T], error) {
	r, err := o.resolver()
	if err != nil {
		return schema.FixedArray[T]{}, err
	}
	return schema.Array[T](r, o.ptr, className, fieldName)
}

// ============================================================
// Schema Utility
// ============================================================

// GetSchemaOffset returns the byte offset of a schema field and whether
// it is networked.
func (r *Runtime) GetSchemaOffset(className, fieldName string) (offset uint32, networked bool, err error) {
	f, err := r.schema.Resolve(className, fieldName)
	if err != nil {
		return 0, false, err
	}
	return f.Offset, f.Networked, nil
}

// ============================================================
// GameData Utility
// ============================================================

// ResolveGamedata resolves a gamedata address entry. Returns 0 if not
// found.
func (r *Runtime) ResolveGamedata(name string) uintptr {
	addr, _ := r.data.TryGetAddress(name)
	return addr
}

// GetGamedataOffset returns a gamedata offset by name.
// Returns -1 if not found.
func (r *Runtime) GetGamedataOffset(name string) int64 {
	off, ok := r.data.TryGetOffset(name)
	if !ok {
		return -1
	}
	return off
}
