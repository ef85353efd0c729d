package hook

import "fmt"

// AddressSource resolves named native addresses, typically gamedata.
type AddressSource interface {
	GetAddress(key string) (uintptr, error)
}

// IndexSource resolves virtual slot indices by class and function name.
type IndexSource interface {
	GetMemberVFuncIndex(class, member string) (int, error)
}

// VTableSource locates a class's virtual table in a loaded library.
type VTableSource interface {
	GetVirtualTableByName(name string, decorated bool) (uintptr, error)
}

// PrepareKey prepares a detour of the address named key.
func (d *Detour) PrepareKey(src AddressSource, key string, dest uintptr) error {
	target, err := src.GetAddress(key)
	if err != nil {
		return fmt.Errorf("detour %s: %w", key, err)
	}
	return d.Prepare(target, dest)
}

// PrepareKey prepares a mid-function hook at the address named key.
func (m *MidFunc) PrepareKey(src AddressSource, key string, handler func(*Context)) error {
	target, err := src.GetAddress(key)
	if err != nil {
		return fmt.Errorf("mid-function hook %s: %w", key, err)
	}
	return m.Prepare(target, handler)
}

// PrepareClass prepares a replacement of class::function in the virtual
// table found by tables.
func (v *VirtualSlot) PrepareClass(tables VTableSource, indices IndexSource, class, function string, dest uintptr) error {
	index, err := indices.GetMemberVFuncIndex(class, function)
	if err != nil {
		return fmt.Errorf("virtual slot %s::%s: %w", class, function, err)
	}
	return v.PrepareClassIndex(tables, class, index, dest)
}

// PrepareClassIndex prepares a replacement of slot index in class's
// virtual table.
func (v *VirtualSlot) PrepareClassIndex(tables VTableSource, class string, index int, dest uintptr) error {
	vtable, err := tables.GetVirtualTableByName(class, false)
	if err != nil {
		return fmt.Errorf("virtual table %s: %w", class, err)
	}
	return v.Prepare(vtable, index, dest)
}
