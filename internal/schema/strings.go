package schema

import (
	"fmt"
	"strings"

	"github.com/corrreia/nativehook/internal/memory"
)

// maxPooledString bounds reads through string pointers
const maxPooledString = 4096

func isInline(typ string) bool {
	return strings.HasPrefix(typ, "char[")
}

func isPooled(typ string) bool {
	switch typ {
	case "utlsymbol", "utlstring", "pointer":
		return true
	}
	return false
}

// GetString reads a string field: an inline char array, or a pooled
// symbol or string object that points at the characters.
func GetString(r *Resolver, object uintptr, class, field string) (string, error) {
	e := r.lookup(class, field)
	if e.err != nil {
		return "", e.err
	}
	f := e.field
	addr, err := r.view(object, e).Addr(uintptr(f.Offset), uintptr(f.Width))
	if err != nil {
		return "", err
	}
	switch {
	case isInline(f.Type):
		return memory.ReadCString(r.space, addr, int(f.Width))
	case isPooled(f.Type):
		ptr, err := memory.ReadPtr(r.space, addr)
		if err != nil {
			return "", err
		}
		if ptr == 0 {
			return "", nil
		}
		return memory.ReadCString(r.space, ptr, maxPooledString)
	}
	return "", fmt.Errorf("%s::%s is %s: %w", f.Class, f.Name, f.Type, ErrNotString)
}

// SetString writes a string field. Inline arrays are truncated to fit;
// pooled fields store the pointer returned by the string pool.
func SetString(r *Resolver, object uintptr, class, field, value string, isStruct bool) error {
	e := r.lookup(class, field)
	if e.err != nil {
		return e.err
	}
	f := e.field
	addr, err := r.view(object, e).Addr(uintptr(f.Offset), uintptr(f.Width))
	if err != nil {
		return err
	}
	switch {
	case isInline(f.Type):
		err = memory.WriteCString(r.space, addr, value, int(f.Width))
	case isPooled(f.Type):
		r.mu.RLock()
		pool := r.pool
		r.mu.RUnlock()
		if pool == nil {
			return fmt.Errorf("%s::%s: %w", f.Class, f.Name, ErrNoStringPool)
		}
		var ptr uintptr
		if ptr, err = pool.Intern(value); err == nil {
			err = memory.Write(r.space, addr, ptr)
		}
	default:
		return fmt.Errorf("%s::%s is %s: %w", f.Class, f.Name, f.Type, ErrNotString)
	}
	if err != nil {
		return err
	}
	if !isStruct {
		r.notify(object, f, 0)
	}
	return nil
}
