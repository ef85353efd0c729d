package hook

import (
	"sort"
	"sync"
)

// ID identifies a hook instance across the native boundary. Generated code
// carries the ID instead of a Go pointer and resolves it through Lookup.
type ID uint64

var (
	instances = make(map[ID]Installer)
	nextID    ID
	lock      sync.RWMutex
)

func register(inst Installer) ID {
	lock.Lock()
	defer lock.Unlock()
	nextID++
	instances[nextID] = inst
	return nextID
}

func release(id ID) {
	lock.Lock()
	defer lock.Unlock()
	delete(instances, id)
}

// Lookup returns the live instance registered under id.
func Lookup(id ID) (Installer, bool) {
	lock.RLock()
	defer lock.RUnlock()
	inst, ok := instances[id]
	return inst, ok && inst != nil
}

// Instances returns every live instance ordered by ID.
func Instances() []Installer {
	lock.RLock()
	ids := make([]ID, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	lock.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Installer, 0, len(ids))
	for _, id := range ids {
		if inst, ok := Lookup(id); ok {
			out = append(out, inst)
		}
	}
	return out
}
