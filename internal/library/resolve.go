package library

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/corrreia/nativehook/internal/abi"
	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/internal/shared"
)

// ResolveAddress locates a gamedata address entry: the exported symbol or
// unique signature match, moved by the entry offset, then optionally
// followed through the rel32 operand found there.
func (s *Set) ResolveAddress(a gamedata.Address) (uintptr, error) {
	m, err := s.Get(a.Library)
	if err != nil {
		return 0, err
	}
	var addr uintptr
	if a.Symbol != "" {
		addr, err = m.GetFunctionByName(a.Symbol)
	} else {
		addr, err = m.FindPatternExactly(a.Signature)
	}
	if err != nil {
		return 0, err
	}
	addr = uintptr(int64(addr) + a.Offset)
	if a.Relative {
		rel, err := memory.Read[int32](m.space, addr)
		if err != nil {
			return 0, fmt.Errorf("follow rel32 at %#x: %w", addr, err)
		}
		addr = uintptr(int64(addr) + 4 + int64(rel))
	}
	shared.LogDebug("library", "resolved %s in %s at %#x", a.Name, m.name, addr)
	return addr, nil
}

// FindInterface asks the module's CreateInterface export for the
// versioned interface name.
func (m *Module) FindInterface(name string) (uintptr, error) {
	create, err := m.GetFunctionByName("CreateInterface")
	if err != nil {
		return 0, err
	}
	if !abi.Supported() {
		return 0, abi.ErrUnsupported
	}
	cstr := append([]byte(name), 0)
	iface := abi.Call(create, uintptr(unsafe.Pointer(&cstr[0])), 0)
	runtime.KeepAlive(cstr)
	if iface == 0 {
		return 0, fmt.Errorf("interface %s in %s: %w", name, m.name, ErrNotFound)
	}
	return iface, nil
}
