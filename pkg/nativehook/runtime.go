package nativehook

import (
	"errors"
	"fmt"
	"sync"

	"github.com/corrreia/nativehook/internal/catalog"
	"github.com/corrreia/nativehook/internal/config"
	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/hook"
	"github.com/corrreia/nativehook/internal/library"
	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/internal/schema"
	"github.com/corrreia/nativehook/internal/shared"
)

// Runtime ties gamedata, loaded libraries, the schema resolver and the
// hook point catalog together over one memory space.
type Runtime struct {
	cfg     *config.Core
	space   memory.Space
	data    *gamedata.Provider
	libs    *library.Set
	schema  *schema.Resolver
	catalog *catalog.Catalog

	mu   sync.Mutex
	mids []*hook.MidFunc
}

// Open starts the runtime in the live process: it configures logging,
// enumerates loaded libraries and registers the configured gamedata.
func Open(cfg *config.Core) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	l, err := shared.NewLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, err
	}
	shared.SetLogger(l)

	rt, err := New(memory.Process(), cfg)
	if err != nil {
		return nil, err
	}
	n, err := rt.libs.Load()
	if err != nil {
		return nil, fmt.Errorf("load libraries: %w", err)
	}
	shared.LogInfo("runtime", "found %d loaded libraries", n)
	return rt, nil
}

// New builds a runtime over space without enumerating libraries. Modules
// are added through Libraries.
func New(space memory.Space, cfg *config.Core) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	platform, ok := shared.ParsePlatform(cfg.Platform)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}

	rt := &Runtime{
		cfg:   cfg,
		space: space,
		data:  gamedata.NewProvider(platform),
		libs:  library.NewSet(space),
	}
	rt.data.SetScanner(rt.libs)
	rt.schema = schema.NewResolver(rt.data, space)
	rt.catalog = catalog.New(space, rt.data, rt.libs)
	for alias, name := range cfg.Libraries {
		rt.libs.Alias(alias, name)
	}

	if cfg.GamedataDir != "" {
		n, err := rt.data.RegisterDir(cfg.GamedataDir)
		switch {
		case err == nil:
			shared.LogInfo("runtime", "registered %d gamedata files from %s", n, cfg.GamedataDir)
		case rt.cfg.Path() == "" && n == 0:
			// default directory may be absent
			shared.LogDebug("runtime", "no gamedata directory: %v", err)
		default:
			return nil, err
		}
	}
	for _, path := range cfg.Gamedata {
		if err := rt.data.Register(path); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func (r *Runtime) Config() *config.Core         { return r.cfg }
func (r *Runtime) Space() memory.Space          { return r.space }
func (r *Runtime) Gamedata() *gamedata.Provider { return r.data }
func (r *Runtime) Libraries() *library.Set      { return r.libs }
func (r *Runtime) Schema() *schema.Resolver     { return r.schema }
func (r *Runtime) Catalog() *catalog.Catalog    { return r.catalog }

// DefineHook adds a hook point with override semantics.
func DefineHook[P, R any](r *Runtime, def Definition, codec Codec[P, R]) error {
	return catalog.Define(r.catalog, def, codec)
}

// DefineForward adds a notification point.
func DefineForward[P any](r *Runtime, def Definition, codec ForwardCodec[P]) error {
	return catalog.DefineForward(r.catalog, def, codec)
}

// Hook returns the hook point defined as name.
func Hook[P, R any](r *Runtime, name string) (*HookPoint[P, R], error) {
	return catalog.Hook[P, R](r.catalog, name)
}

// Forward returns the notification point defined as name.
func Forward[P any](r *Runtime, name string) (*ForwardPoint[P], error) {
	return catalog.Forward[P](r.catalog, name)
}

// ReleaseModule removes every callback the module registered.
func (r *Runtime) ReleaseModule(module string) int {
	return r.catalog.ReleaseOwner(module)
}

// Points lists the hook points in use.
func (r *Runtime) Points() []PointInfo {
	return r.catalog.Points()
}

// MidHook installs handler in the middle of the function at the gamedata
// address key. The hook lives until Close.
func (r *Runtime) MidHook(key string, handler func(*Context)) (*MidFuncHook, error) {
	m := hook.NewMidFunc(r.space, hook.MidOptions{})
	if err := m.PrepareKey(r.data, key, handler); err != nil {
		m.Dispose()
		return nil, err
	}
	if err := m.Install(); err != nil {
		m.Dispose()
		return nil, fmt.Errorf("mid-function hook %s: %w", key, err)
	}
	r.mu.Lock()
	r.mids = append(r.mids, m)
	r.mu.Unlock()
	return m, nil
}

// Close removes every hook.
func (r *Runtime) Close() error {
	r.mu.Lock()
	mids := r.mids
	r.mids = nil
	r.mu.Unlock()

	var errs []error
	for _, m := range mids {
		if err := m.Dispose(); err != nil && !errors.Is(err, hook.ErrDisposed) {
			errs = append(errs, err)
		}
	}
	if err := r.catalog.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
