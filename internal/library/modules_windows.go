package library

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/corrreia/nativehook/internal/memory"
)

func enumerate(space memory.Space) ([]*Module, error) {
	proc := windows.CurrentProcess()
	handles := make([]windows.Handle, 1024)
	var needed uint32
	for {
		size := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
		if err := windows.EnumProcessModules(proc, &handles[0], size, &needed); err != nil {
			return nil, fmt.Errorf("enumerate modules: %w", err)
		}
		if needed <= size {
			handles = handles[:needed/uint32(unsafe.Sizeof(handles[0]))]
			break
		}
		handles = make([]windows.Handle, needed/uint32(unsafe.Sizeof(handles[0])))
	}

	mods := make([]*Module, 0, len(handles))
	var name [windows.MAX_PATH]uint16
	for _, h := range handles {
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(proc, h, &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}
		if err := windows.GetModuleFileNameEx(proc, h, &name[0], uint32(len(name))); err != nil {
			continue
		}
		path := windows.UTF16ToString(name[:])
		// images are committed whole; sections are not told apart
		mods = append(mods, NewModule(space, path, path, []Segment{{
			Addr: info.BaseOfDll,
			Size: uintptr(info.SizeOfImage),
			Exec: true,
		}}))
	}
	return mods, nil
}
