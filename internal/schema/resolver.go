// Package schema resolves symbolic (class, field) pairs to offsets and
// reads and writes native object fields through width-checked accessors.
package schema

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/internal/shared"
)

var (
	// ErrNotFound matches every failed lookup
	ErrNotFound = gamedata.ErrNotFound
	// ErrWidthMismatch means the accessor type does not fit the field
	ErrWidthMismatch = errors.New("accessor width does not match field")
	// ErrNoStringPool means a pooled string write without a pool
	ErrNoStringPool = errors.New("no string pool configured")
	// ErrNotString means a string accessor was used on a non-string field
	ErrNotString = errors.New("field is not a string")
)

// LookupError reports a failed (class, field) resolution.
type LookupError struct {
	Class string
	Field string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("schema %s::%s: %v", e.Class, e.Field, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// StateNotifier is the host's change tracking for networked fields.
type StateNotifier interface {
	StateChanged(object uintptr, field gamedata.Field, extraOffset uintptr)
}

// StringPool interns strings in the host's symbol table and returns the
// pooled pointer.
type StringPool interface {
	Intern(s string) (uintptr, error)
}

type key struct {
	class, field string
}

type entry struct {
	field gamedata.Field
	size  uint32
	err   error
}

// Resolver memoizes schema lookups, including misses, until the gamedata
// set list changes.
type Resolver struct {
	data  *gamedata.Provider
	space memory.Space

	mu       sync.RWMutex
	gen      uint64
	cache    map[key]entry
	group    singleflight.Group
	notifier StateNotifier
	pool     StringPool

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResolver returns a resolver over data. Field accessors operate on
// space.
func NewResolver(data *gamedata.Provider, space memory.Space) *Resolver {
	r := &Resolver{
		data:  data,
		space: space,
		cache: make(map[key]entry),
	}
	data.OnChange(func(ev gamedata.Event) {
		r.Invalidate()
		shared.LogDebug("schema", "cache cleared after %s change", ev.Set)
	})
	return r
}

// Space is the memory space accessors operate on.
func (r *Resolver) Space() memory.Space { return r.space }

// SetNotifier installs the state change hook.
func (r *Resolver) SetNotifier(n StateNotifier) {
	r.mu.Lock()
	r.notifier = n
	r.mu.Unlock()
}

// SetStringPool installs the pool used for pooled string writes.
func (r *Resolver) SetStringPool(p StringPool) {
	r.mu.Lock()
	r.pool = p
	r.mu.Unlock()
}

// Invalidate drops every memoized result.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.gen++
	r.cache = make(map[key]entry)
	r.mu.Unlock()
}

// Stats reports cache hits and misses.
func (r *Resolver) Stats() (hits, misses uint64) {
	return r.hits.Load(), r.misses.Load()
}

// Resolve returns the field record for class and field. Unknown pairs fail
// with a *LookupError every time until gamedata changes.
func (r *Resolver) Resolve(class, field string) (gamedata.Field, error) {
	e := r.lookup(class, field)
	return e.field, e.err
}

// GetOffset returns the byte offset of class::field.
func (r *Resolver) GetOffset(class, field string) (uint32, error) {
	f, err := r.Resolve(class, field)
	if err != nil {
		return 0, err
	}
	return f.Offset, nil
}

// FindField reports whether class::field is known.
func (r *Resolver) FindField(class, field string) (gamedata.Field, bool) {
	f, err := r.Resolve(class, field)
	return f, err == nil
}

func (r *Resolver) lookup(class, field string) entry {
	k := key{class, field}
	r.mu.RLock()
	e, ok := r.cache[k]
	gen := r.gen
	r.mu.RUnlock()
	if ok {
		r.hits.Add(1)
		return e
	}

	r.misses.Add(1)
	flight := fmt.Sprintf("%d/%s", gen, gamedata.Member(class, field))
	v, _, _ := r.group.Do(flight, func() (interface{}, error) {
		var e entry
		f, err := r.data.Field(class, field)
		if err != nil {
			e.err = &LookupError{Class: class, Field: field, Err: err}
		} else {
			e.field = f
			if c, ok := r.data.Class(f.Class); ok {
				e.size = c.Size
			}
		}
		r.mu.Lock()
		// results computed against older gamedata are not kept
		if r.gen == gen {
			r.cache[k] = e
		}
		r.mu.Unlock()
		return e, nil
	})
	return v.(entry)
}

// view bounds accesses to the object when its class size is known.
func (r *Resolver) view(object uintptr, e entry) memory.View {
	size := memory.Unbounded
	if e.size != 0 {
		size = uintptr(e.size)
	}
	return memory.NewView(r.space, object, size)
}

// NetworkStateChanged fires the state change hook for class::field on
// object unless isStruct is set. Callers that batch struct writes use it
// once after the last write.
func (r *Resolver) NetworkStateChanged(object uintptr, class, field string, extraOffset uintptr, isStruct bool) error {
	f, err := r.Resolve(class, field)
	if err != nil {
		return err
	}
	if !isStruct {
		r.notify(object, f, extraOffset)
	}
	return nil
}

func (r *Resolver) notify(object uintptr, f gamedata.Field, extraOffset uintptr) {
	r.mu.RLock()
	n := r.notifier
	r.mu.RUnlock()
	if n == nil {
		shared.LogDebug("schema", "no state notifier for %s::%s", f.Class, f.Name)
		return
	}
	n.StateChanged(object, f, extraOffset)
}
