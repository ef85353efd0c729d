//go:build unix

package memory

import (
	"fmt"

	"golang.org/x/sys/unix"
)

var pageSize = uintptr(unix.Getpagesize())

func unixProt(p Prot) int {
	switch p {
	case ProtReadOnly:
		return unix.PROT_READ
	case ProtReadWrite:
		return unix.PROT_READ | unix.PROT_WRITE
	}
	return unix.PROT_READ | unix.PROT_EXEC
}

func setPages(addr, size uintptr, prot int) error {
	start := pageSize * (addr / pageSize)
	length := pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	if err := unix.Mprotect(raw(start, int(length)), prot); err != nil {
		return fmt.Errorf("mprotect %#x+%#x: %w", start, length, err)
	}
	return nil
}

func patchProtected(addr uintptr, src []byte, restore Prot) error {
	size := uintptr(len(src))
	if err := setPages(addr, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return err
	}
	copy(raw(addr, len(src)), src)
	return setPages(addr, size, unixProt(restore))
}
