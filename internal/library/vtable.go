package library

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/corrreia/nativehook/internal/memory"
)

// itaniumName mangles a possibly nested class name: CFoo is 4CFoo and
// a::b is N1a1bE.
func itaniumName(class string) string {
	parts := strings.Split(class, "::")
	var b strings.Builder
	if len(parts) > 1 {
		b.WriteByte('N')
	}
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteString(p)
	}
	if len(parts) > 1 {
		b.WriteByte('E')
	}
	return b.String()
}

// msvcName is the RTTI type descriptor name: a::b is .?AVb@a@@.
func msvcName(class string) string {
	parts := strings.Split(class, "::")
	var b strings.Builder
	b.WriteString(".?AV")
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
		b.WriteByte('@')
	}
	b.WriteByte('@')
	return b.String()
}

// GetVirtualTableByName returns the address of the first virtual function
// slot of class. With decorated set, name is the mangled vtable symbol or
// RTTI type name instead of a plain class name.
func (m *Module) GetVirtualTableByName(name string, decorated bool) (uintptr, error) {
	var (
		addr uintptr
		err  error
	)
	switch m.Format() {
	case FormatPE:
		addr, err = m.msvcVTable(name, decorated)
	default:
		addr, err = m.itaniumVTable(name, decorated)
	}
	if err != nil {
		return 0, fmt.Errorf("vtable %s in %s: %w", name, m.name, err)
	}
	return addr, nil
}

// The Itanium vtable symbol points at offset-to-top and the typeinfo
// pointer; virtual functions start two slots later.
func (m *Module) itaniumVTable(name string, decorated bool) (uintptr, error) {
	symbol, typeName := name, ""
	if !decorated {
		typeName = itaniumName(name)
		symbol = "_ZTV" + typeName
	} else if strings.HasPrefix(name, "_ZTV") {
		typeName = name[len("_ZTV"):]
	}
	if addr, err := m.GetFunctionByName(symbol); err == nil {
		return addr + 2*8, nil
	}
	if typeName == "" {
		return 0, ErrNotFound
	}

	// stripped: typeinfo name string -> typeinfo -> vtable
	str, err := m.FindString(typeName)
	if err != nil {
		return 0, err
	}
	nameSlot, err := m.FindPtr(str)
	if err != nil {
		return 0, err
	}
	typeinfo := nameSlot - 8
	var found uintptr
	err = m.findPtrs(typeinfo, func(slot uintptr) bool {
		top, err := memory.Read[int64](m.space, slot-8)
		if err != nil || top != 0 {
			return true
		}
		found = slot + 8
		return false
	})
	if err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, ErrNotFound
	}
	return found, nil
}

// MSVC: the type descriptor name leads to the complete object locator,
// which the vtable's meta slot points at.
func (m *Module) msvcVTable(name string, decorated bool) (uintptr, error) {
	typeName := name
	if !decorated {
		typeName = msvcName(name)
	}
	str, err := m.FindString(typeName)
	if err != nil {
		return 0, err
	}
	descriptor := str - 16

	var rva [4]byte
	binary.LittleEndian.PutUint32(rva[:], uint32(descriptor-m.base))
	var locator uintptr
	err = m.searchData(rva[:], 4, func(addr uintptr) bool {
		col := addr - 12
		var hdr [8]byte
		if m.space.Read(col, hdr[:]) != nil {
			return true
		}
		// signature 1 and offset 0 mark the primary locator
		if binary.LittleEndian.Uint32(hdr[0:]) != 1 || binary.LittleEndian.Uint32(hdr[4:]) != 0 {
			return true
		}
		locator = col
		return false
	})
	if err != nil {
		return 0, err
	}
	if locator == 0 {
		return 0, ErrNotFound
	}
	meta, err := m.FindPtr(locator)
	if err != nil {
		return 0, err
	}
	return meta + 8, nil
}
