package library

import (
	"debug/elf"
	"fmt"

	"github.com/saferwall/pe"
)

// Define records name at addr, taking precedence over the module's own
// symbol table.
func (m *Module) Define(name string, addr uintptr) {
	m.symMu.Lock()
	m.symbols[name] = addr
	m.symMu.Unlock()
}

// GetFunctionByName returns the address of an exported or symbolized
// function, like dlsym or GetProcAddress.
func (m *Module) GetFunctionByName(name string) (uintptr, error) {
	m.loadSymbols()
	m.symMu.RLock()
	addr, ok := m.symbols[name]
	err := m.symErr
	m.symMu.RUnlock()
	if ok {
		return addr, nil
	}
	if err != nil {
		return 0, fmt.Errorf("symbol %s in %s: %w", name, m.name, err)
	}
	return 0, fmt.Errorf("symbol %s in %s: %w", name, m.name, ErrNotFound)
}

func (m *Module) loadSymbols() {
	m.symOnce.Do(func() {
		if m.path == "" {
			return
		}
		var syms map[string]uintptr
		var err error
		switch m.Format() {
		case FormatELF:
			syms, err = elfSymbols(m.path, m.base)
		case FormatPE:
			syms, err = peExports(m.path, m.base)
		default:
			err = ErrNoSymbols
		}
		m.symMu.Lock()
		defer m.symMu.Unlock()
		m.symErr = err
		for name, addr := range syms {
			if _, ok := m.symbols[name]; !ok {
				m.symbols[name] = addr
			}
		}
	})
}

// elfSymbols reads the dynamic and static symbol tables of the file at
// path, relocated to a module mapped at base.
func elfSymbols(path string, base uintptr) (map[string]uintptr, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	var first *elf.Prog
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			first = p
			break
		}
	}
	if first == nil {
		return nil, ErrNoSymbols
	}
	align := first.Align
	if align == 0 {
		align = 1
	}
	bias := uint64(base) - first.Vaddr&^(align-1)

	out := make(map[string]uintptr)
	add := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Value == 0 || s.Name == "" || s.Section == elf.SHN_UNDEF {
				continue
			}
			switch elf.ST_TYPE(s.Info) {
			case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_GNU_IFUNC:
			default:
				continue
			}
			if _, ok := out[s.Name]; !ok {
				out[s.Name] = uintptr(s.Value + bias)
			}
		}
	}
	dyn, dynErr := f.DynamicSymbols()
	add(dyn)
	static, staticErr := f.Symbols()
	add(static)
	if dynErr != nil && staticErr != nil {
		return nil, ErrNoSymbols
	}
	return out, nil
}

// peExports reads the export directory of the PE file at path, relocated
// to a module loaded at base.
func peExports(path string, base uintptr) (map[string]uintptr, error) {
	f, err := pe.New(path, &pe.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pe: %w", err)
	}
	defer f.Close()
	if err := f.Parse(); err != nil {
		return nil, fmt.Errorf("parse pe: %w", err)
	}
	if len(f.Export.Functions) == 0 {
		return nil, ErrNoSymbols
	}
	out := make(map[string]uintptr, len(f.Export.Functions))
	for _, fn := range f.Export.Functions {
		if fn.Name == "" || fn.Forwarder != "" {
			continue
		}
		out[fn.Name] = base + uintptr(fn.FunctionRVA)
	}
	return out, nil
}
