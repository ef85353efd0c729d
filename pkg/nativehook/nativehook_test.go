package nativehook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corrreia/nativehook/internal/config"
	"github.com/corrreia/nativehook/internal/library"
	"github.com/corrreia/nativehook/internal/memory"
)

const testGamedata = `
offsets:
  CBaseEntity::m_iTeam: 0x3E3
addresses:
  Probe:
    library: server
    symbol: probe_fn
schema:
  CBaseEntity:
    size: 0x100
    fields:
      m_iHealth: {offset: 0x10, type: int32, networked: true}
      m_flSpeed: {offset: 0x14, type: float32}
      m_bAlive: {offset: 0x18, type: bool}
      m_hOwner: {offset: 0x1C, type: handle}
      m_vecOrigin: {offset: 0x20, type: vector, networked: true}
      m_szName: {offset: 0x30, type: "char[16]"}
      m_pNext: {offset: 0x40, type: pointer}
      m_Body: {offset: 0x48, type: CBody, width: 0x10}
      m_iAmmo: {offset: 0x60, type: "int32[4]"}
  CBody:
    size: 0x10
    struct: true
    fields:
      m_nModel: {offset: 0x4, type: int32}
`

func newRuntime(t *testing.T) (*Runtime, *memory.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testGamedata), 0o644))

	cfg := config.Default()
	cfg.GamedataDir = ""
	cfg.Platform = "linux"
	cfg.Gamedata = []string{path}
	cfg.Libraries = map[string]string{"game": "server"}

	buf := memory.NewBuffer()
	rt, err := New(buf, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rt.Close()) })
	return rt, buf
}

func TestObjectProps(t *testing.T) {
	rt, buf := newRuntime(t)
	ent := rt.Wrap(buf.MapBytes(make([]byte, 0x100)), "CBaseEntity")
	require.True(t, ent.IsValid())

	require.NoError(t, ent.SetPropInt("CBaseEntity", "m_iHealth", 100))
	hp, err := ent.GetPropInt("CBaseEntity", "m_iHealth")
	require.NoError(t, err)
	require.Equal(t, int32(100), hp)

	require.NoError(t, ent.SetPropFloat("CBaseEntity", "m_flSpeed", 1.5))
	speed, err := ent.GetPropFloat("CBaseEntity", "m_flSpeed")
	require.NoError(t, err)
	require.Equal(t, float32(1.5), speed)

	require.NoError(t, ent.SetPropBool("CBaseEntity", "m_bAlive", true))
	alive, err := ent.GetPropBool("CBaseEntity", "m_bAlive")
	require.NoError(t, err)
	require.True(t, alive)

	origin := Vector{X: 1, Y: 2, Z: 3}
	require.NoError(t, ent.SetPropVector("CBaseEntity", "m_vecOrigin", origin))
	got, err := ent.GetPropVector("CBaseEntity", "m_vecOrigin")
	require.NoError(t, err)
	require.Equal(t, origin, got)

	require.NoError(t, ent.SetPropString("CBaseEntity", "m_szName", "player"))
	name, err := ent.GetPropString("CBaseEntity", "m_szName")
	require.NoError(t, err)
	require.Equal(t, "player", name)

	require.NoError(t, Set(ent, "CBaseEntity", "m_hOwner", Handle(0x8003)))
	h, err := ent.GetPropHandle("CBaseEntity", "m_hOwner")
	require.NoError(t, err)
	require.Equal(t, uint32(3), h.Index())
	require.Equal(t, uint32(1), h.Serial())

	// width mismatch
	_, err = Get[int64](ent, "CBaseEntity", "m_iHealth")
	require.Error(t, err)
}

func TestObjectNested(t *testing.T) {
	rt, buf := newRuntime(t)
	next := buf.MapBytes(make([]byte, 0x100))
	ent := rt.Wrap(buf.MapBytes(make([]byte, 0x100)), "CBaseEntity")

	require.NoError(t, Set(ent, "CBaseEntity", "m_pNext", next))
	other, err := ent.GetPropObject("CBaseEntity", "m_pNext", "CBaseEntity")
	require.NoError(t, err)
	require.Equal(t, next, other.Ptr())

	body, err := ent.Embedded("CBaseEntity", "m_Body", "CBody")
	require.NoError(t, err)
	require.Equal(t, ent.Ptr()+0x48, body.Ptr())
	require.NoError(t, body.SetPropInt("CBody", "m_nModel", 7))
	raw, err := memory.Read[int32](buf, ent.Ptr()+0x4C)
	require.NoError(t, err)
	require.Equal(t, int32(7), raw)

	ammo, err := Array[int32](ent, "CBaseEntity", "m_iAmmo")
	require.NoError(t, err)
	require.Equal(t, 4, ammo.Len())
	require.NoError(t, ammo.Set(2, 30, false))
	vals, err := ammo.Slice()
	require.NoError(t, err)
	require.Equal(t, []int32{0, 0, 30, 0}, vals)
}

func TestNilObject(t *testing.T) {
	rt, _ := newRuntime(t)
	ent := rt.Wrap(0, "CBaseEntity")
	require.False(t, ent.IsValid())
	_, err := ent.GetPropInt("CBaseEntity", "m_iHealth")
	require.ErrorIs(t, err, ErrNilObject)

	var none *Object
	require.Zero(t, none.Ptr())
	require.False(t, none.IsValid())
}

func TestGamedataUtility(t *testing.T) {
	rt, buf := newRuntime(t)

	off, networked, err := rt.GetSchemaOffset("CBaseEntity", "m_vecOrigin")
	require.NoError(t, err)
	require.Equal(t, uint32(0x20), off)
	require.True(t, networked)

	_, _, err = rt.GetSchemaOffset("CBaseEntity", "m_missing")
	require.Error(t, err)

	require.Equal(t, int64(0x3E3), rt.GetGamedataOffset("CBaseEntity::m_iTeam"))
	require.Equal(t, int64(-1), rt.GetGamedataOffset("nope"))

	require.Zero(t, rt.ResolveGamedata("Probe"))

	base := buf.MapBytes(make([]byte, 0x100))
	mod := library.NewModule(buf, "libserver.so", "", []library.Segment{{Addr: base, Size: 0x100, Exec: true}})
	mod.Define("probe_fn", base+0x40)
	rt.Libraries().Add(mod)
	require.Equal(t, base+0x40, rt.ResolveGamedata("Probe"))

	m, err := rt.Libraries().Get("game")
	require.NoError(t, err)
	require.Equal(t, mod, m)
}

func TestCombine(t *testing.T) {
	var rv ReturnValue[int, int]
	got := Combine(rv.Skip(1), rv.ChangeParams(5), rv.Ignore())
	require.Equal(t, Ignored, got.Action())
	p, ok := got.Params()
	require.True(t, ok)
	require.Equal(t, 5, p)

	got = Combine(rv.ChangeParams(5), rv.Skip(9))
	require.Equal(t, SkipCallReturnOverride, got.Action())
	require.Equal(t, 9, got.Value())
}
