// Package library models the native libraries loaded into the process:
// their mapped segments, exported symbols and virtual tables, and the
// IDA-style signature scanning used to locate unexported functions.
package library

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/corrreia/nativehook/internal/memory"
)

var (
	// ErrNotFound means no match in the module
	ErrNotFound = errors.New("not found in module")
	// ErrAmbiguous means a pattern expected to be unique matched more than once
	ErrAmbiguous = errors.New("pattern matched more than once")
	// ErrBadPattern means the signature text could not be parsed
	ErrBadPattern = errors.New("malformed pattern")
	// ErrNoModule means the library is not loaded or not registered
	ErrNoModule = errors.New("library not loaded")
	// ErrNoSymbols means the module has no readable symbol table
	ErrNoSymbols = errors.New("module has no symbol table")
)

// Format is the executable format of a module.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPE
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatPE:
		return "pe"
	default:
		return "unknown"
	}
}

// Segment is one mapped range of a module.
type Segment struct {
	Addr  uintptr
	Size  uintptr
	Exec  bool
	Write bool
}

func (s Segment) end() uintptr { return s.Addr + s.Size }

// Module is one loaded library.
type Module struct {
	name     string
	path     string
	base     uintptr
	size     uintptr
	segments []Segment
	space    memory.Space

	symOnce sync.Once
	symMu   sync.RWMutex
	symbols map[string]uintptr
	symErr  error
}

// NewModule describes a module mapped in space. Its base is the lowest
// segment address. Symbols are read from path on first use.
func NewModule(space memory.Space, name, path string, segments []Segment) *Module {
	segs := append([]Segment(nil), segments...)
	sort.Slice(segs, func(i, j int) bool { return segs[i].Addr < segs[j].Addr })
	m := &Module{
		name:     name,
		path:     path,
		segments: segs,
		space:    space,
		symbols:  make(map[string]uintptr),
	}
	if len(segs) > 0 {
		m.base = segs[0].Addr
		m.size = segs[len(segs)-1].end() - m.base
	}
	return m
}

func (m *Module) Name() string            { return m.name }
func (m *Module) Path() string            { return m.path }
func (m *Module) Base() uintptr           { return m.base }
func (m *Module) Size() uintptr           { return m.size }
func (m *Module) Segments() []Segment     { return append([]Segment(nil), m.segments...) }
func (m *Module) Space() memory.Space     { return m.space }
func (m *Module) Contains(a uintptr) bool { return a >= m.base && a < m.base+m.size }

// Format reads the module header to tell ELF and PE images apart.
func (m *Module) Format() Format {
	var magic [4]byte
	if err := m.space.Read(m.base, magic[:]); err != nil {
		return FormatUnknown
	}
	switch {
	case string(magic[:]) == "\x7fELF":
		return FormatELF
	case string(magic[:2]) == "MZ":
		return FormatPE
	}
	return FormatUnknown
}

func (m *Module) String() string {
	return fmt.Sprintf("%s [%#x, %#x)", m.name, m.base, m.base+m.size)
}

// Normalize reduces a library file name to its lookup key: no directory,
// no "lib" prefix, no extension or version suffix, lower case.
func Normalize(name string) string {
	name = strings.ToLower(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	for _, ext := range []string{".so", ".dll", ".exe", ".dylib"} {
		if i := strings.Index(name, ext); i > 0 {
			name = name[:i]
			break
		}
	}
	if strings.HasPrefix(name, "lib") && len(name) > 3 {
		name = name[3:]
	}
	return name
}

// Set is the table of known modules, addressed by normalized name or
// alias.
type Set struct {
	mu      sync.RWMutex
	space   memory.Space
	modules map[string]*Module
	aliases map[string]string
}

// NewSet returns an empty set over space.
func NewSet(space memory.Space) *Set {
	return &Set{
		space:   space,
		modules: make(map[string]*Module),
		aliases: make(map[string]string),
	}
}

// Add registers m under its normalized name, replacing an earlier module
// of the same name.
func (s *Set) Add(m *Module) {
	s.mu.Lock()
	s.modules[Normalize(m.name)] = m
	s.mu.Unlock()
}

// Alias makes alias resolve to the module registered as name.
func (s *Set) Alias(alias, name string) {
	s.mu.Lock()
	s.aliases[Normalize(alias)] = Normalize(name)
	s.mu.Unlock()
}

// Get returns the module known as name.
func (s *Set) Get(name string) (*Module, error) {
	key := Normalize(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if target, ok := s.aliases[key]; ok {
		key = target
	}
	m, ok := s.modules[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoModule)
	}
	return m, nil
}

// Modules lists the registered modules by base address.
func (s *Set) Modules() []*Module {
	s.mu.RLock()
	out := make([]*Module, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].base < out[j].base })
	return out
}

// ModuleAt returns the module containing addr.
func (s *Set) ModuleAt(addr uintptr) (*Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.modules {
		if m.Contains(addr) {
			return m, true
		}
	}
	return nil, false
}

// Load adds every library mapped into the running process and returns how
// many were found.
func (s *Set) Load() (int, error) {
	mods, err := enumerate(s.space)
	if err != nil {
		return 0, err
	}
	for _, m := range mods {
		s.Add(m)
	}
	return len(mods), nil
}
