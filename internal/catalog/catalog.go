// Package catalog is the process-wide table of named hook points. Each
// name is bound once to a typed chain and a native target; modules only
// add and remove callbacks on the shared point.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/corrreia/nativehook/internal/abi"
	"github.com/corrreia/nativehook/internal/chain"
	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/hook"
	"github.com/corrreia/nativehook/internal/library"
	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/internal/shared"
)

var (
	// ErrUnknownPoint means no definition exists for the name
	ErrUnknownPoint = errors.New("unknown hook point")
	// ErrDuplicatePoint means the name is already defined
	ErrDuplicatePoint = errors.New("hook point already defined")
	// ErrTypeMismatch means the point was defined with other types
	ErrTypeMismatch = errors.New("hook point type mismatch")
	// ErrNoTarget means the definition does not say where to hook
	ErrNoTarget = errors.New("hook point has no target")
	// ErrClosed means the catalog was shut down
	ErrClosed = errors.New("catalog is shut down")
)

// Definition says where a hook point intercepts native code.
type Definition struct {
	Name string
	Kind hook.Kind
	// Address is the gamedata address key of a detour target
	Address string
	// Library and Class locate the virtual table of a slot hook
	Library string
	Class   string
	// VFunc is the function name looked up as Class::VFunc in gamedata;
	// Index is used when it is empty
	VFunc string
	Index int
	// Target is a fixed address: the function for a detour, the vtable
	// for a slot hook. Used when no key is set.
	Target uintptr
}

func (d Definition) String() string {
	switch {
	case d.Address != "":
		return fmt.Sprintf("%s %s", d.Kind, d.Address)
	case d.Class != "" && d.VFunc != "":
		return fmt.Sprintf("%s %s!%s::%s", d.Kind, d.Library, d.Class, d.VFunc)
	case d.Class != "":
		return fmt.Sprintf("%s %s!%s[%d]", d.Kind, d.Library, d.Class, d.Index)
	}
	return fmt.Sprintf("%s %#x", d.Kind, d.Target)
}

// Codec converts between the native integer register arguments of a
// point and its Go parameter bundle and result.
type Codec[P, R any] struct {
	Arity  int
	Decode func(args []uintptr) P
	Encode func(p P) []uintptr
	// Result converts the final value for the native caller
	Result func(r R) uintptr
	// Raw converts the original's native result
	Raw func(ret uintptr) R
}

// ForwardCodec is the codec of a notification point. The original's
// result is passed through untouched.
type ForwardCodec[P any] struct {
	Arity  int
	Decode func(args []uintptr) P
	Encode func(p P) []uintptr
}

type point interface {
	Name() string
	Info() chain.Info
	State() hook.State
	RemoveOwner(owner string) int
	Fail(err error)
	Close() error
}

type entry struct {
	def    Definition
	create func(e *entry) point

	mu     sync.Mutex
	native uintptr
	p      point
}

// Catalog owns every defined hook point.
type Catalog struct {
	space memory.Space
	data  *gamedata.Provider
	libs  *library.Set

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// New returns an empty catalog resolving targets through data and libs
// and patching space.
func New(space memory.Space, data *gamedata.Provider, libs *library.Set) *Catalog {
	return &Catalog{
		space:   space,
		data:    data,
		libs:    libs,
		entries: make(map[string]*entry),
	}
}

func (c *Catalog) define(def Definition, create func(e *entry) point) error {
	if def.Name == "" {
		return fmt.Errorf("define: empty name: %w", ErrUnknownPoint)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.entries[def.Name]; ok {
		return fmt.Errorf("%s: %w", def.Name, ErrDuplicatePoint)
	}
	c.entries[def.Name] = &entry{def: def, create: create}
	return nil
}

// get returns the point for name, creating it on first access.
func (c *Catalog) get(name string) (point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownPoint)
	}
	if e.p == nil {
		e.p = e.create(e)
		shared.LogDebug("catalog", "created %s (%s)", name, e.def)
	}
	return e.p, nil
}

// Define adds a hook point with override semantics.
func Define[P, R any](c *Catalog, def Definition, codec Codec[P, R]) error {
	return c.define(def, func(e *entry) point {
		hp := chain.NewHookPoint[P, R](def.Name)
		hp.SetActivator(func() error {
			return c.activate(e, hp,
				func(args []uintptr) uintptr {
					rv := hp.Dispatch(codec.Decode(args))
					return codec.Result(rv.Value())
				},
				codec.Arity,
				func(inst hook.Installer) error {
					return hp.Attach(inst, func(tramp uintptr, p P) R {
						return codec.Raw(abi.Call(tramp, codec.Encode(p)...))
					})
				})
		})
		return hp
	})
}

// DefineForward adds a notification point.
func DefineForward[P any](c *Catalog, def Definition, codec ForwardCodec[P]) error {
	return c.define(def, func(e *entry) point {
		fw := chain.NewForward[P](def.Name)
		fw.SetActivator(func() error {
			return c.activate(e, fw,
				func(args []uintptr) uintptr {
					return fw.Dispatch(codec.Decode(args))
				},
				codec.Arity,
				func(inst hook.Installer) error {
					return fw.Attach(inst, func(tramp uintptr, p P) uintptr {
						return abi.Call(tramp, codec.Encode(p)...)
					})
				})
		})
		return fw
	})
}

// Hook returns the hook point defined as name. The types must match the
// definition.
func Hook[P, R any](c *Catalog, name string) (*chain.HookPoint[P, R], error) {
	p, err := c.get(name)
	if err != nil {
		return nil, err
	}
	hp, ok := p.(*chain.HookPoint[P, R])
	if !ok {
		return nil, fmt.Errorf("%s is %T, not %T: %w", name, p, hp, ErrTypeMismatch)
	}
	return hp, nil
}

// Forward returns the notification point defined as name.
func Forward[P any](c *Catalog, name string) (*chain.Forward[P], error) {
	p, err := c.get(name)
	if err != nil {
		return nil, err
	}
	fw, ok := p.(*chain.Forward[P])
	if !ok {
		return nil, fmt.Errorf("%s is %T, not %T: %w", name, p, fw, ErrTypeMismatch)
	}
	return fw, nil
}

// activate builds the native entry once and installs the point. It runs
// on the first registration and again after a failed install.
func (c *Catalog) activate(e *entry, p point, handler abi.Handler, arity int, attach func(hook.Installer) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.State() == hook.StateInstalled {
		return nil
	}
	if e.native == 0 {
		addr, err := abi.Entry(arity, handler)
		if err != nil {
			return err
		}
		e.native = addr
	}
	inst, err := c.prepare(e.def, e.native)
	if err != nil {
		p.Fail(err)
		return err
	}
	if err := attach(inst); err != nil {
		inst.Dispose()
		if errors.Is(err, chain.ErrAlreadyAttached) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Catalog) prepare(def Definition, dest uintptr) (hook.Installer, error) {
	switch def.Kind {
	case hook.KindDetour:
		d := hook.NewDetour(c.space)
		var err error
		switch {
		case def.Address != "":
			err = d.PrepareKey(c.data, def.Address, dest)
		case def.Target != 0:
			err = d.Prepare(def.Target, dest)
		default:
			err = ErrNoTarget
		}
		if err != nil {
			d.Dispose()
			return nil, fmt.Errorf("%s: %w", def.Name, err)
		}
		return d, nil

	case hook.KindVirtualSlot:
		v := hook.NewVirtualSlot(c.space)
		var err error
		switch {
		case def.Class != "":
			var mod *library.Module
			if mod, err = c.libs.Get(def.Library); err != nil {
				break
			}
			if def.VFunc != "" {
				err = v.PrepareClass(mod, c.data, def.Class, def.VFunc, dest)
			} else {
				err = v.PrepareClassIndex(mod, def.Class, def.Index, dest)
			}
		case def.Target != 0:
			err = v.Prepare(def.Target, def.Index, dest)
		default:
			err = ErrNoTarget
		}
		if err != nil {
			v.Dispose()
			return nil, fmt.Errorf("%s: %w", def.Name, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%s: cannot host %s hooks: %w", def.Name, def.Kind, ErrNoTarget)
}

// ReleaseOwner removes every registration owner made on any point and
// returns how many were removed. Points stay installed.
func (c *Catalog) ReleaseOwner(owner string) int {
	n := 0
	for _, p := range c.created() {
		n += p.RemoveOwner(owner)
	}
	if n > 0 {
		shared.LogInfo("catalog", "released %d callbacks of %s", n, owner)
	}
	return n
}

func (c *Catalog) created() []point {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]point, 0, len(c.entries))
	for _, e := range c.entries {
		if e.p != nil {
			out = append(out, e.p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Definitions lists every defined point by name.
func (c *Catalog) Definitions() []Definition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Definition, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Points describes every point created so far.
func (c *Catalog) Points() []chain.Info {
	pts := c.created()
	out := make([]chain.Info, len(pts))
	for i, p := range pts {
		out[i] = p.Info()
	}
	return out
}

// Shutdown uninstalls every point. The catalog accepts no further use.
func (c *Catalog) Shutdown() error {
	pts := c.created()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for _, p := range pts {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	shared.LogInfo("catalog", "shut down %d hook points", len(pts))
	return errors.Join(errs...)
}
