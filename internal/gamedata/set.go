package gamedata

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corrreia/nativehook/internal/shared"
)

// file is the on-disk layout of a gamedata set. JSON files are read with
// the same decoder.
type file struct {
	Offsets   map[string]Platformed[int64]  `yaml:"offsets"`
	VFuncs    map[string]Platformed[int]    `yaml:"vfuncs"`
	Addresses map[string]addressFile        `yaml:"addresses"`
	Schema    map[string]classFile          `yaml:"schema"`
}

type addressFile struct {
	Library   Platformed[string] `yaml:"library"`
	Signature Platformed[string] `yaml:"signature"`
	Symbol    Platformed[string] `yaml:"symbol"`
	Offset    Platformed[int64]  `yaml:"offset"`
	Relative  bool               `yaml:"relative"`
}

type classFile struct {
	Parent string               `yaml:"parent"`
	Size   Platformed[uint32]   `yaml:"size"`
	Struct bool                 `yaml:"struct"`
	Fields map[string]fieldFile `yaml:"fields"`
}

type fieldFile struct {
	Offset    Platformed[uint32] `yaml:"offset"`
	Type      string             `yaml:"type"`
	Width     uint32             `yaml:"width"`
	Networked bool               `yaml:"networked"`
}

// Address is how a named native address is located.
type Address struct {
	Name      string
	Library   string
	Signature string
	Symbol    string
	// Offset is added to the match
	Offset int64
	// Relative follows a rel32 operand at the adjusted match
	Relative bool
}

// Class is a schema class declaration.
type Class struct {
	Name   string
	Parent string
	Size   uint32
	Struct bool
}

// Field is a validated schema field record.
type Field struct {
	Class     string
	Name      string
	Type      string
	Offset    uint32
	Width     uint32
	Elem      uint32
	Count     uint32
	Networked bool
	// Struct is set when the declaring class is embedded in other objects
	// rather than being a networked entity itself
	Struct bool
}

type fieldKey struct {
	class, name string
}

// Set is one registered gamedata file, resolved for a platform and
// validated as a whole.
type Set struct {
	Name      string
	offsets   map[string]int64
	vfuncs    map[string]int
	addresses map[string]Address
	classes   map[string]Class
	fields    []Field
	index     map[fieldKey]int32
}

var typeWidths = map[string]uint32{
	"bool": 1, "int8": 1, "uint8": 1, "char": 1,
	"int16": 2, "uint16": 2,
	"int32": 4, "uint32": 4, "float32": 4, "handle": 4, "color": 4,
	"int64": 8, "uint64": 8, "float64": 8, "pointer": 8,
	"utlsymbol": 8, "utlstring": 8, "vector2d": 8,
	"vector": 12, "qangle": 12,
}

// fieldWidth returns element width and count for a type such as int32 or
// char[128].
func fieldWidth(typ string, explicit uint32) (elem, count uint32, err error) {
	base, count := typ, uint32(1)
	if i := strings.IndexByte(typ, '['); i > 0 && strings.HasSuffix(typ, "]") {
		n, err := strconv.ParseUint(typ[i+1:len(typ)-1], 0, 32)
		if err != nil || n == 0 {
			return 0, 0, fmt.Errorf("bad array length in %q", typ)
		}
		base, count = typ[:i], uint32(n)
	}
	elem, ok := typeWidths[base]
	if explicit != 0 {
		if ok && explicit != elem*count {
			return 0, 0, fmt.Errorf("width %d contradicts type %q", explicit, typ)
		}
		if !ok {
			elem, count = explicit/count, count
			if elem*count != explicit {
				return 0, 0, fmt.Errorf("width %d is not a multiple of length in %q", explicit, typ)
			}
		}
		return elem, count, nil
	}
	if !ok {
		return 0, 0, fmt.Errorf("unknown type %q without width", typ)
	}
	return elem, count, nil
}

// Parse decodes and validates a set for platform.
func Parse(name string, data []byte, platform shared.Platform) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Set: name, Err: err}
	}
	s, err := build(name, f, platform)
	if err != nil {
		return nil, &LoadError{Set: name, Err: err}
	}
	return s, nil
}

func build(name string, f file, pl shared.Platform) (*Set, error) {
	s := &Set{
		Name:      name,
		offsets:   make(map[string]int64),
		vfuncs:    make(map[string]int),
		addresses: make(map[string]Address),
		classes:   make(map[string]Class),
		index:     make(map[fieldKey]int32),
	}
	var errs []error

	for key, v := range f.Offsets {
		if off, ok := v.For(pl); ok {
			s.offsets[key] = off
		}
	}
	for key, v := range f.VFuncs {
		idx, ok := v.For(pl)
		if !ok {
			continue
		}
		if idx < 0 {
			errs = append(errs, fmt.Errorf("vfunc %s: negative index %d", key, idx))
			continue
		}
		s.vfuncs[key] = idx
	}
	for key, a := range f.Addresses {
		addr := Address{Name: key, Relative: a.Relative}
		addr.Library, _ = a.Library.For(pl)
		addr.Signature, _ = a.Signature.For(pl)
		addr.Symbol, _ = a.Symbol.For(pl)
		addr.Offset, _ = a.Offset.For(pl)
		if addr.Signature == "" && addr.Symbol == "" {
			if a.Signature.IsSet() || a.Symbol.IsSet() {
				// defined for another platform only
				continue
			}
			errs = append(errs, fmt.Errorf("address %s: needs a signature or symbol", key))
			continue
		}
		if addr.Library == "" {
			errs = append(errs, fmt.Errorf("address %s: missing library", key))
			continue
		}
		s.addresses[key] = addr
	}

	classNames := make([]string, 0, len(f.Schema))
	for cn := range f.Schema {
		classNames = append(classNames, cn)
	}
	sort.Strings(classNames)
	for _, cn := range classNames {
		c := f.Schema[cn]
		size, _ := c.Size.For(pl)
		s.classes[cn] = Class{Name: cn, Parent: c.Parent, Size: size, Struct: c.Struct}

		fieldNames := make([]string, 0, len(c.Fields))
		for fn := range c.Fields {
			fieldNames = append(fieldNames, fn)
		}
		sort.Strings(fieldNames)
		for _, fn := range fieldNames {
			ff := c.Fields[fn]
			off, ok := ff.Offset.For(pl)
			if !ok {
				continue
			}
			elem, count, err := fieldWidth(ff.Type, ff.Width)
			if err != nil {
				errs = append(errs, fmt.Errorf("schema %s::%s: %w", cn, fn, err))
				continue
			}
			width := elem * count
			if size != 0 && uint64(off)+uint64(width) > uint64(size) {
				errs = append(errs, fmt.Errorf("schema %s::%s: %d bytes at %#x overrun class size %#x", cn, fn, width, off, size))
				continue
			}
			s.index[fieldKey{cn, fn}] = int32(len(s.fields))
			s.fields = append(s.fields, Field{
				Class:     cn,
				Name:      fn,
				Type:      ff.Type,
				Offset:    off,
				Width:     width,
				Elem:      elem,
				Count:     count,
				Networked: ff.Networked,
				Struct:    c.Struct,
			})
		}
	}
	for _, cn := range classNames {
		if err := checkParents(s.classes, cn); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func checkParents(classes map[string]Class, name string) error {
	seen := map[string]bool{name: true}
	for c := classes[name]; c.Parent != ""; c = classes[c.Parent] {
		if seen[c.Parent] {
			return fmt.Errorf("schema %s: parent cycle through %s", name, c.Parent)
		}
		seen[c.Parent] = true
	}
	return nil
}

// Offset returns a named offset.
func (s *Set) Offset(key string) (int64, bool) {
	v, ok := s.offsets[key]
	return v, ok
}

// VFunc returns a named virtual slot index.
func (s *Set) VFunc(key string) (int, bool) {
	v, ok := s.vfuncs[key]
	return v, ok
}

// Address returns a named address entry.
func (s *Set) Address(key string) (Address, bool) {
	v, ok := s.addresses[key]
	return v, ok
}

// Class returns a schema class declaration.
func (s *Set) Class(name string) (Class, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Field returns the field declared directly on class.
func (s *Set) Field(class, name string) (Field, bool) {
	i, ok := s.index[fieldKey{class, name}]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Fields returns every schema field, ordered by class then name.
func (s *Set) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Counts reports the number of entries per section.
func (s *Set) Counts() (offsets, vfuncs, addresses, fields int) {
	return len(s.offsets), len(s.vfuncs), len(s.addresses), len(s.fields)
}

// AddressNames returns the address keys, sorted.
func (s *Set) AddressNames() []string {
	names := make([]string, 0, len(s.addresses))
	for k := range s.addresses {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
