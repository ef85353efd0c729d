//go:build windows

package memory

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func patchProtected(addr uintptr, src []byte, _ Prot) error {
	var old uint32
	size := uintptr(len(src))
	if err := windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
		return fmt.Errorf("VirtualProtect %#x+%#x: %w", addr, size, err)
	}
	copy(raw(addr, len(src)), src)
	return windows.VirtualProtect(addr, size, old, &old)
}
