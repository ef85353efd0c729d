package chain

import (
	"errors"
	"slices"
	"sync/atomic"
	"unsafe"
)

var (
	// ErrDuplicateCallback means the callback is already in the list
	ErrDuplicateCallback = errors.New("callback already registered")
	// ErrNilCallback means a nil callback was registered
	ErrNilCallback = errors.New("nil callback")
)

// funcKey is the identity of a func value: the closure it points at. A
// top-level function, or a literal that captures nothing, has one key for
// every evaluation. Method values and capturing literals allocate a new
// closure per evaluation, so store them once to remove them later.
func funcKey[F any](fn F) uintptr {
	return *(*uintptr)(unsafe.Pointer(&fn))
}

type registration[F any] struct {
	owner    string
	fn       F
	key      uintptr
	priority int
	seq      uint64
}

// list is a priority-ordered callback list. Writers replace the whole slice
// under the owner's lock; readers iterate an immutable snapshot.
type list[F any] struct {
	entries atomic.Pointer[[]registration[F]]
}

func (l *list[F]) snapshot() []registration[F] {
	if p := l.entries.Load(); p != nil {
		return *p
	}
	return nil
}

func (l *list[F]) contains(key uintptr) bool {
	for _, r := range l.snapshot() {
		if r.key == key {
			return true
		}
	}
	return false
}

// insert places r after every entry of equal or higher priority.
func (l *list[F]) insert(r registration[F]) {
	cur := l.snapshot()
	next := make([]registration[F], 0, len(cur)+1)
	inserted := false
	for _, e := range cur {
		if !inserted && r.priority > e.priority {
			next = append(next, r)
			inserted = true
		}
		next = append(next, e)
	}
	if !inserted {
		next = append(next, r)
	}
	l.entries.Store(&next)
}

func (l *list[F]) removeFunc(match func(registration[F]) bool) int {
	cur := l.snapshot()
	next := slices.DeleteFunc(slices.Clone(cur), match)
	if len(next) == len(cur) {
		return 0
	}
	l.entries.Store(&next)
	return len(cur) - len(next)
}

func (l *list[F]) remove(key uintptr) bool {
	return l.removeFunc(func(r registration[F]) bool { return r.key == key }) > 0
}

func (l *list[F]) removeOwner(owner string) int {
	return l.removeFunc(func(r registration[F]) bool { return r.owner == owner })
}

func (l *list[F]) count() int { return len(l.snapshot()) }

func (l *list[F]) clear() { l.entries.Store(nil) }
