package library

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Pattern is a parsed IDA-style signature such as "48 89 ? 24 ??".
type Pattern struct {
	text  string
	bytes []byte
	fixed []bool
	// anchor is the first non-wildcard byte
	anchor int
}

// ParsePattern parses space separated hex bytes. "?" and "??" match any
// byte.
func ParsePattern(s string) (Pattern, error) {
	p := Pattern{text: s, anchor: -1}
	for _, tok := range strings.Fields(s) {
		if tok == "?" || tok == "??" {
			p.bytes = append(p.bytes, 0)
			p.fixed = append(p.fixed, false)
			continue
		}
		if len(tok) != 2 {
			return Pattern{}, fmt.Errorf("%q: token %q: %w", s, tok, ErrBadPattern)
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return Pattern{}, fmt.Errorf("%q: token %q: %w", s, tok, ErrBadPattern)
		}
		if p.anchor < 0 {
			p.anchor = len(p.bytes)
		}
		p.bytes = append(p.bytes, b[0])
		p.fixed = append(p.fixed, true)
	}
	if p.anchor < 0 {
		return Pattern{}, fmt.Errorf("%q: no fixed bytes: %w", s, ErrBadPattern)
	}
	return p, nil
}

// MustPattern is ParsePattern for signatures known at compile time.
func MustPattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Len() int       { return len(p.bytes) }
func (p Pattern) String() string { return p.text }

func (p Pattern) matchAt(data []byte, i int) bool {
	if i < 0 || i+len(p.bytes) > len(data) {
		return false
	}
	for j, b := range p.bytes {
		if p.fixed[j] && data[i+j] != b {
			return false
		}
	}
	return true
}

// scan calls fn with the offset of every match in data at or after from
// until fn returns false.
func (p Pattern) scan(data []byte, from int, fn func(off int) bool) {
	a := p.bytes[p.anchor]
	for pos := from + p.anchor; pos < len(data); {
		i := bytes.IndexByte(data[pos:], a)
		if i < 0 {
			return
		}
		pos += i
		if off := pos - p.anchor; p.matchAt(data, off) && !fn(off) {
			return
		}
		pos++
	}
}

// each visits every match of p in the module's executable segments that
// starts at or after start.
func (m *Module) each(p Pattern, start uintptr, fn func(addr uintptr) bool) error {
	for _, seg := range m.segments {
		if !seg.Exec || seg.end() <= start {
			continue
		}
		data, err := m.space.Slice(seg.Addr, int(seg.Size))
		if err != nil {
			return fmt.Errorf("read %s segment at %#x: %w", m.name, seg.Addr, err)
		}
		from := 0
		if start > seg.Addr {
			from = int(start - seg.Addr)
		}
		stop := false
		p.scan(data, from, func(off int) bool {
			stop = !fn(seg.Addr + uintptr(off))
			return !stop
		})
		if stop {
			return nil
		}
	}
	return nil
}

// FindPattern returns the first match of pattern at or after start. A
// zero start scans from the beginning of the module.
func (m *Module) FindPattern(pattern string, start uintptr) (uintptr, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return 0, err
	}
	return m.Find(p, start)
}

// Find is FindPattern for a parsed pattern.
func (m *Module) Find(p Pattern, start uintptr) (uintptr, error) {
	var found uintptr
	if err := m.each(p, start, func(addr uintptr) bool {
		found = addr
		return false
	}); err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, fmt.Errorf("pattern %q in %s: %w", p.text, m.name, ErrNotFound)
	}
	return found, nil
}

// FindPatternExactly returns the only match of pattern, failing when
// there is none or more than one.
func (m *Module) FindPatternExactly(pattern string) (uintptr, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return 0, err
	}
	var found []uintptr
	if err := m.each(p, 0, func(addr uintptr) bool {
		found = append(found, addr)
		return len(found) < 2
	}); err != nil {
		return 0, err
	}
	switch len(found) {
	case 0:
		return 0, fmt.Errorf("pattern %q in %s: %w", pattern, m.name, ErrNotFound)
	case 1:
		return found[0], nil
	}
	return 0, fmt.Errorf("pattern %q in %s at %#x and %#x: %w", pattern, m.name, found[0], found[1], ErrAmbiguous)
}

// FindPatternMulti returns every match of pattern.
func (m *Module) FindPatternMulti(pattern string) ([]uintptr, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return nil, err
	}
	var found []uintptr
	err = m.each(p, 0, func(addr uintptr) bool {
		found = append(found, addr)
		return true
	})
	return found, err
}

// searchData visits every occurrence of needle in the readable segments.
// With step greater than one only aligned offsets are reported.
func (m *Module) searchData(needle []byte, step int, fn func(addr uintptr) bool) error {
	for _, seg := range m.segments {
		data, err := m.space.Slice(seg.Addr, int(seg.Size))
		if err != nil {
			return fmt.Errorf("read %s segment at %#x: %w", m.name, seg.Addr, err)
		}
		for pos := 0; pos < len(data); {
			i := bytes.Index(data[pos:], needle)
			if i < 0 {
				break
			}
			pos += i
			if (seg.Addr+uintptr(pos))%uintptr(step) == 0 && !fn(seg.Addr+uintptr(pos)) {
				return nil
			}
			pos++
		}
	}
	return nil
}

// FindString returns the address of the NUL-terminated string s that
// starts at a string boundary.
func (m *Module) FindString(s string) (uintptr, error) {
	needle := append([]byte(s), 0)
	var found uintptr
	err := m.searchData(needle, 1, func(addr uintptr) bool {
		if addr != m.base {
			var prev [1]byte
			if m.space.Read(addr-1, prev[:]) != nil || prev[0] != 0 {
				return true
			}
		}
		found = addr
		return false
	})
	if err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, fmt.Errorf("string %q in %s: %w", s, m.name, ErrNotFound)
	}
	return found, nil
}

// FindPtr returns the first pointer-aligned slot holding ptr.
func (m *Module) FindPtr(ptr uintptr) (uintptr, error) {
	var found uintptr
	err := m.findPtrs(ptr, func(addr uintptr) bool {
		found = addr
		return false
	})
	if err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, fmt.Errorf("pointer %#x in %s: %w", ptr, m.name, ErrNotFound)
	}
	return found, nil
}

func (m *Module) findPtrs(ptr uintptr, fn func(addr uintptr) bool) error {
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], uint64(ptr))
	return m.searchData(word[:], 8, fn)
}
