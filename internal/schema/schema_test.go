package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/memory"
	"github.com/corrreia/nativehook/internal/shared"
)

const sample = `
schema:
  Foo:
    size: 0x80
    fields:
      bar: {offset: 8, type: int32, networked: true}
      wide: {offset: 0x10, type: int64}
      origin: {offset: 0x20, type: vector, networked: true}
      name: {offset: 0x30, type: "char[16]"}
      label: {offset: 0x40, type: utlsymbol}
      ammo: {offset: 0x48, type: "int32[4]"}
  Baz:
    parent: Foo
    fields:
      qux: {offset: 0x70, type: float32}
`

type recorder struct {
	calls []string
	extra []uintptr
}

func (r *recorder) StateChanged(object uintptr, f gamedata.Field, extraOffset uintptr) {
	r.calls = append(r.calls, gamedata.Member(f.Class, f.Name))
	r.extra = append(r.extra, extraOffset)
}

type pool struct {
	buf  *memory.Buffer
	seen map[string]uintptr
}

func (p *pool) Intern(s string) (uintptr, error) {
	if a, ok := p.seen[s]; ok {
		return a, nil
	}
	a := p.buf.MapBytes(append([]byte(s), 0))
	p.seen[s] = a
	return a, nil
}

func setup(t *testing.T) (*Resolver, *gamedata.Provider, *memory.Buffer, uintptr) {
	t.Helper()
	data := gamedata.NewProvider(shared.PlatformLinux)
	require.NoError(t, data.RegisterData("core", []byte(sample)))
	buf := memory.NewBuffer()
	obj := buf.MapBytes(make([]byte, 0x80))
	return NewResolver(data, buf), data, buf, obj
}

func TestResolve(t *testing.T) {
	r, data, _, _ := setup(t)

	off, err := r.GetOffset("Foo", "bar")
	require.NoError(t, err)
	require.Equal(t, uint32(8), off)

	off, err = r.GetOffset("Baz", "bar")
	require.NoError(t, err)
	require.Equal(t, uint32(8), off)

	require.NoError(t, data.Unregister("core"))
	_, err = r.GetOffset("Foo", "bar")
	require.ErrorIs(t, err, ErrNotFound)
	var le *LookupError
	require.True(t, errors.As(err, &le))
	require.Equal(t, "bar", le.Field)
}

func TestNegativeMemo(t *testing.T) {
	r, data, _, _ := setup(t)

	for i := 0; i < 3; i++ {
		_, ok := r.FindField("Foo", "missing")
		require.False(t, ok)
	}
	hits, misses := r.Stats()
	require.Equal(t, uint64(2), hits)
	require.Equal(t, uint64(1), misses)

	require.NoError(t, data.RegisterData("extra", []byte(`
schema:
  Foo:
    fields:
      missing: {offset: 4, type: uint8}
`)))
	f, ok := r.FindField("Foo", "missing")
	require.True(t, ok)
	require.Equal(t, uint32(4), f.Offset)
}

func TestGetSet(t *testing.T) {
	r, _, buf, obj := setup(t)
	rec := &recorder{}
	r.SetNotifier(rec)

	require.NoError(t, Set(r, obj, "Foo", "bar", int32(100), false))
	v, err := Get[int32](r, obj, "Foo", "bar")
	require.NoError(t, err)
	require.Equal(t, int32(100), v)
	require.Equal(t, []byte{100, 0, 0, 0}, buf.Bytes(obj+8, 4))

	require.NoError(t, Set(r, obj, "Foo", "origin", Vector{1, 2, 3}, false))
	vec, err := Get[Vector](r, obj, "Foo", "origin")
	require.NoError(t, err)
	require.Equal(t, Vector{1, 2, 3}, vec)

	require.NoError(t, SetAt(r, obj, "Foo", "origin", 8, float32(9), true))
	z, err := GetAt[float32](r, obj, "Foo", "origin", 8)
	require.NoError(t, err)
	require.Equal(t, float32(9), z)

	require.Equal(t, []string{"Foo::bar", "Foo::origin"}, rec.calls)

	require.NoError(t, r.NetworkStateChanged(obj, "Foo", "origin", 4, false))
	require.NoError(t, r.NetworkStateChanged(obj, "Foo", "origin", 4, true))
	require.Len(t, rec.calls, 3)
	require.Equal(t, uintptr(4), rec.extra[2])
}

func TestWidthMismatch(t *testing.T) {
	r, _, _, obj := setup(t)

	_, err := Get[int64](r, obj, "Foo", "bar")
	require.ErrorIs(t, err, ErrWidthMismatch)
	require.ErrorIs(t, Set(r, obj, "Foo", "bar", uint8(1), false), ErrWidthMismatch)

	_, err = GetAt[float32](r, obj, "Foo", "origin", 10)
	require.ErrorIs(t, err, ErrWidthMismatch)

	_, err = Get[int32](r, obj, "Foo", "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNullObject(t *testing.T) {
	r, _, _, _ := setup(t)
	_, err := Get[int32](r, 0, "Foo", "bar")
	require.ErrorIs(t, err, memory.ErrNullPointer)
}

func TestStrings(t *testing.T) {
	r, _, buf, obj := setup(t)

	require.NoError(t, SetString(r, obj, "Foo", "name", "a name that is far too long", true))
	s, err := GetString(r, obj, "Foo", "name")
	require.NoError(t, err)
	require.Equal(t, "a name that is ", s)
	require.Equal(t, byte(0), buf.Bytes(obj+0x3f, 1)[0])

	require.ErrorIs(t, SetString(r, obj, "Foo", "label", "x", true), ErrNoStringPool)
	r.SetStringPool(&pool{buf: buf, seen: map[string]uintptr{}})
	require.NoError(t, SetString(r, obj, "Foo", "label", "weapon_ak47", true))
	s, err = GetString(r, obj, "Foo", "label")
	require.NoError(t, err)
	require.Equal(t, "weapon_ak47", s)

	_, err = GetString(r, obj, "Foo", "bar")
	require.ErrorIs(t, err, ErrNotString)
}

func TestFixedArray(t *testing.T) {
	r, _, _, obj := setup(t)
	rec := &recorder{}
	r.SetNotifier(rec)

	arr, err := Array[int32](r, obj, "Foo", "ammo")
	require.NoError(t, err)
	require.Equal(t, 4, arr.Len())

	for i := 0; i < arr.Len(); i++ {
		require.NoError(t, arr.Set(i, int32(i*10), false))
	}
	all, err := arr.Slice()
	require.NoError(t, err)
	require.Equal(t, []int32{0, 10, 20, 30}, all)
	require.Equal(t, []uintptr{0, 4, 8, 12}, rec.extra)

	_, err = arr.Get(4)
	require.ErrorIs(t, err, memory.ErrOutOfRange)

	_, err = Array[int64](r, obj, "Foo", "ammo")
	require.ErrorIs(t, err, ErrWidthMismatch)
}

func TestHandle(t *testing.T) {
	h := Handle(3<<15 | 42)
	require.True(t, h.Valid())
	require.Equal(t, uint32(42), h.Index())
	require.Equal(t, uint32(3), h.Serial())
	require.False(t, InvalidHandle.Valid())
}
