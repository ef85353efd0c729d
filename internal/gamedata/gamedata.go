// Package gamedata holds the registered gamedata sets: named offsets,
// virtual slot indices, native addresses located by signature or symbol,
// and the schema field table. Member keys use the class::member form.
package gamedata

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/corrreia/nativehook/internal/shared"
)

// Scanner resolves an address entry to a live address.
type Scanner interface {
	ResolveAddress(a Address) (uintptr, error)
}

// EventKind tells registrations and removals apart.
type EventKind int

const (
	SetRegistered EventKind = iota
	SetUnregistered
)

// Event is delivered to OnChange listeners after the set list changed.
type Event struct {
	Kind EventKind
	Set  string
}

// Provider is the registry of loaded gamedata sets. Lookups search the
// most recently registered set first.
type Provider struct {
	mu        sync.RWMutex
	platform  shared.Platform
	sets      []*Set
	scanner   Scanner
	addrCache map[string]uintptr
	listeners []func(Event)
}

// NewProvider returns an empty provider resolving values for platform.
func NewProvider(platform shared.Platform) *Provider {
	if platform == "" {
		platform = shared.CurrentPlatform()
	}
	return &Provider{
		platform:  platform,
		addrCache: make(map[string]uintptr),
	}
}

// Platform is the platform values are selected for.
func (p *Provider) Platform() shared.Platform { return p.platform }

// SetScanner installs the address scanner used by GetAddress.
func (p *Provider) SetScanner(s Scanner) {
	p.mu.Lock()
	p.scanner = s
	p.addrCache = make(map[string]uintptr)
	p.mu.Unlock()
}

// OnChange registers fn to run after every Register and Unregister.
func (p *Provider) OnChange(fn func(Event)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Register loads the set at path. The set is known by its cleaned path.
func (p *Provider) Register(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read gamedata: %w", err)
	}
	return p.RegisterData(filepath.Clean(path), data)
}

// RegisterDir registers every .yaml, .yml and .json file in dir in name
// order.
func (p *Provider) RegisterDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read gamedata dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		if e.IsDir() {
			continue
		}
		if err := p.Register(filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RegisterData parses and registers a set under name.
func (p *Provider) RegisterData(name string, data []byte) error {
	s, err := Parse(name, data, p.platform)
	if err != nil {
		return err
	}
	return p.RegisterSet(s)
}

// RegisterSet registers an already parsed set.
func (p *Provider) RegisterSet(s *Set) error {
	p.mu.Lock()
	for _, cur := range p.sets {
		if cur.Name == s.Name {
			p.mu.Unlock()
			return fmt.Errorf("%s: %w", s.Name, ErrAlreadyRegistered)
		}
	}
	p.sets = append(p.sets, s)
	p.addrCache = make(map[string]uintptr)
	listeners := p.listeners
	p.mu.Unlock()

	o, v, a, f := s.Counts()
	shared.LogInfo("gamedata", "registered %s: %d offsets, %d vfuncs, %d addresses, %d schema fields", s.Name, o, v, a, f)
	notify(listeners, Event{Kind: SetRegistered, Set: s.Name})
	return nil
}

// Unregister removes the set registered under name.
func (p *Provider) Unregister(name string) error {
	if name != "" && filepath.Ext(name) != "" {
		name = filepath.Clean(name)
	}
	p.mu.Lock()
	i := slices.IndexFunc(p.sets, func(s *Set) bool { return s.Name == name })
	if i < 0 {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrNotRegistered)
	}
	p.sets = slices.Delete(p.sets, i, i+1)
	p.addrCache = make(map[string]uintptr)
	listeners := p.listeners
	p.mu.Unlock()

	shared.LogInfo("gamedata", "unregistered %s", name)
	notify(listeners, Event{Kind: SetUnregistered, Set: name})
	return nil
}

func notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

// Registered lists the registered set names in registration order.
func (p *Provider) Registered() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.sets))
	for i, s := range p.sets {
		names[i] = s.Name
	}
	return names
}

// Sets returns the registered sets in registration order.
func (p *Provider) Sets() []*Set {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.sets)
}

func find[T any](p *Provider, get func(*Set) (T, bool)) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := len(p.sets) - 1; i >= 0; i-- {
		if v, ok := get(p.sets[i]); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Member joins a class and member into a lookup key.
func Member(class, member string) string {
	return class + "::" + member
}

// ============================================================
// Offsets
// ============================================================

// TryGetOffset returns a named offset.
func (p *Provider) TryGetOffset(key string) (int64, bool) {
	return find(p, func(s *Set) (int64, bool) { return s.Offset(key) })
}

// GetOffset returns a named offset or a *NotFoundError.
func (p *Provider) GetOffset(key string) (int64, error) {
	if v, ok := p.TryGetOffset(key); ok {
		return v, nil
	}
	return 0, &NotFoundError{Kind: "offset", Key: key}
}

// GetMemberOffset returns the offset stored under class::member.
func (p *Provider) GetMemberOffset(class, member string) (int64, error) {
	return p.GetOffset(Member(class, member))
}

// ============================================================
// Virtual functions
// ============================================================

// TryGetVFuncIndex returns a named virtual slot index.
func (p *Provider) TryGetVFuncIndex(key string) (int, bool) {
	return find(p, func(s *Set) (int, bool) { return s.VFunc(key) })
}

// GetVFuncIndex returns a named virtual slot index or a *NotFoundError.
func (p *Provider) GetVFuncIndex(key string) (int, error) {
	if v, ok := p.TryGetVFuncIndex(key); ok {
		return v, nil
	}
	return 0, &NotFoundError{Kind: "vfunc", Key: key}
}

// GetMemberVFuncIndex returns the slot index stored under class::member.
func (p *Provider) GetMemberVFuncIndex(class, member string) (int, error) {
	return p.GetVFuncIndex(Member(class, member))
}

// ============================================================
// Addresses
// ============================================================

// AddressEntry returns how a named address is located.
func (p *Provider) AddressEntry(key string) (Address, error) {
	if a, ok := find(p, func(s *Set) (Address, bool) { return s.Address(key) }); ok {
		return a, nil
	}
	return Address{}, &NotFoundError{Kind: "address", Key: key}
}

// GetAddress resolves a named address through the scanner. Results are
// cached until the set list changes.
func (p *Provider) GetAddress(key string) (uintptr, error) {
	p.mu.RLock()
	addr, cached := p.addrCache[key]
	scanner := p.scanner
	p.mu.RUnlock()
	if cached {
		return addr, nil
	}

	entry, err := p.AddressEntry(key)
	if err != nil {
		return 0, err
	}
	if scanner == nil {
		return 0, fmt.Errorf("address %s: %w", key, ErrNoScanner)
	}
	addr, err = scanner.ResolveAddress(entry)
	if err != nil {
		return 0, fmt.Errorf("address %s: %w", key, err)
	}
	if addr == 0 {
		return 0, &NotFoundError{Kind: "address", Key: key}
	}

	p.mu.Lock()
	p.addrCache[key] = addr
	p.mu.Unlock()
	return addr, nil
}

// TryGetAddress resolves a named address, reporting failure as false.
func (p *Provider) TryGetAddress(key string) (uintptr, bool) {
	addr, err := p.GetAddress(key)
	return addr, err == nil
}

// GetMemberAddress resolves the address stored under class::member.
func (p *Provider) GetMemberAddress(class, member string) (uintptr, error) {
	return p.GetAddress(Member(class, member))
}

// ============================================================
// Schema
// ============================================================

// Class returns a schema class declaration.
func (p *Provider) Class(name string) (Class, bool) {
	return find(p, func(s *Set) (Class, bool) { return s.Class(name) })
}

// Field returns the schema field for class and name, following declared
// parent classes when the class itself does not declare it.
func (p *Provider) Field(class, name string) (Field, error) {
	seen := make(map[string]bool)
	for c := class; c != "" && !seen[c]; {
		seen[c] = true
		if f, ok := find(p, func(s *Set) (Field, bool) { return s.Field(c, name) }); ok {
			return f, nil
		}
		decl, ok := p.Class(c)
		if !ok {
			break
		}
		c = decl.Parent
	}
	return Field{}, &NotFoundError{Kind: "schema field", Key: Member(class, name)}
}
