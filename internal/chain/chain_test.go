package chain

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corrreia/nativehook/internal/hook"
)

type args3 struct {
	A, B, C int
}

type counter struct {
	calls int
	last  args3
}

func (c *counter) sum(p args3) int {
	c.calls++
	c.last = p
	return p.A + p.B + p.C
}

func newPoint(t *testing.T) (*HookPoint[args3, int], *counter) {
	t.Helper()
	h := NewHookPoint[args3, int]("test.sum")
	c := &counter{}
	require.NoError(t, h.Bind(c.sum))
	return h, c
}

func abstain(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] { return cur }

func TestCombine(t *testing.T) {
	var rv ReturnValue[args3, int]
	p := args3{A: 1}

	tests := []struct {
		name    string
		reqs    []ReturnValue[args3, int]
		action  Action
		value   int
		changed bool
	}{
		{name: "empty", action: Ignored},
		{name: "skip", reqs: []ReturnValue[args3, int]{rv.Skip(7)}, action: SkipCallReturnOverride, value: 7},
		{name: "later skip wins value", reqs: []ReturnValue[args3, int]{rv.Skip(7), rv.Skip(9)}, action: SkipCallReturnOverride, value: 9},
		{name: "ignore after skip", reqs: []ReturnValue[args3, int]{rv.Skip(7), rv.Ignore()}, action: Ignored},
		{name: "params stick", reqs: []ReturnValue[args3, int]{rv.ChangeParams(p), rv.Ignore()}, action: Ignored, changed: true},
		{name: "override with params", reqs: []ReturnValue[args3, int]{rv.ChangeParamsOverride(p, 3)}, action: ChangeParamReturnOverride, value: 3, changed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(tt.reqs...)
			require.Equal(t, tt.action, got.Action())
			require.Equal(t, tt.value, got.Value())
			params, changed := got.Params()
			require.Equal(t, tt.changed, changed)
			if changed {
				require.Equal(t, p, params)
			}
		})
	}
}

func TestDispatchOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		h, _ := newPoint(t)
		n := 1 + rng.Intn(40)

		type entry struct {
			id, priority int
		}
		entries := make([]entry, n)
		var order []int
		for i := 0; i < n; i++ {
			id := i
			entries[i] = entry{id: id, priority: rng.Intn(5) - 2}
			require.NoError(t, h.InstallHookPre("owner", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
				order = append(order, id)
				return cur
			}, entries[i].priority))
		}

		sort.SliceStable(entries, func(i, j int) bool { return entries[i].priority > entries[j].priority })
		want := make([]int, n)
		for i, e := range entries {
			want[i] = e.id
		}

		h.Dispatch(args3{})
		require.Equal(t, want, order, "round %d", round)
	}
}

func TestDispatchSkip(t *testing.T) {
	h, c := newPoint(t)
	require.NoError(t, h.InstallHookPre("a", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		return cur.Skip(99)
	}, 0))

	rv := h.Dispatch(args3{A: 1, B: 2, C: 3})
	require.Equal(t, 0, c.calls)
	require.Equal(t, SkipCallReturnOverride, rv.Action())
	require.Equal(t, 99, rv.Value())
}

func TestDispatchCallsOriginalOnce(t *testing.T) {
	h, c := newPoint(t)
	require.NoError(t, h.InstallHookPre("a", abstain, 0))

	rv := h.Dispatch(args3{A: 1, B: 2, C: 3})
	require.Equal(t, 1, c.calls)
	require.Equal(t, 6, rv.Value())
}

func TestDispatchChangeParams(t *testing.T) {
	h, c := newPoint(t)
	require.NoError(t, h.InstallHookPre("a", func(p args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		p.A = 0
		return cur.ChangeParams(p)
	}, 10))

	var seen args3
	require.NoError(t, h.InstallHookPost("a", func(p args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		seen = p
		return cur
	}, 0))

	rv := h.Dispatch(args3{A: 5, B: 2, C: 3})
	require.Equal(t, 5, rv.Value())
	require.Equal(t, 1, c.calls)
	require.Equal(t, args3{A: 0, B: 2, C: 3}, c.last)
	require.Equal(t, c.last, seen)
}

func TestDispatchChangeParamsOverride(t *testing.T) {
	h, c := newPoint(t)
	require.NoError(t, h.InstallHookPre("a", func(p args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		p.B = 10
		return cur.ChangeParamsOverride(p, -1)
	}, 0))

	rv := h.Dispatch(args3{A: 1, B: 2, C: 3})
	require.Equal(t, 1, c.calls)
	require.Equal(t, 10, c.last.B)
	require.Equal(t, -1, rv.Value())
}

// Pre callbacks keep running after a skip and the last decision wins, so
// a later Ignore re-enables the original call.
func TestDispatchLastDecisionWins(t *testing.T) {
	h, c := newPoint(t)
	ran := 0
	require.NoError(t, h.InstallHookPre("skipper", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		ran++
		return cur.Skip(1)
	}, 10))
	ignore := func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		ran++
		require.Equal(t, SkipCallReturnOverride, cur.Action())
		return cur.Ignore()
	}
	require.NoError(t, h.InstallHookPre("ignorer", ignore, 5))

	rv := h.Dispatch(args3{A: 1, B: 1, C: 1})
	require.Equal(t, 2, ran)
	require.Equal(t, 1, c.calls)
	require.Equal(t, 3, rv.Value())

	// abstaining keeps the earlier skip
	h.RemoveHookPre(ignore)
	require.NoError(t, h.InstallHookPre("abstainer", abstain, 5))
	rv = h.Dispatch(args3{A: 1, B: 1, C: 1})
	require.Equal(t, 1, c.calls)
	require.Equal(t, 1, rv.Value())
}

func TestDispatchContainsPanics(t *testing.T) {
	h, c := newPoint(t)
	var trace []string
	require.NoError(t, h.InstallHookPre("broken", func(args3, ReturnValue[args3, int]) ReturnValue[args3, int] {
		trace = append(trace, "broken")
		panic("boom")
	}, 10))
	require.NoError(t, h.InstallHookPre("later", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		trace = append(trace, "later")
		return cur
	}, 1))
	require.NoError(t, h.InstallHookPost("broken", func(args3, ReturnValue[args3, int]) ReturnValue[args3, int] {
		trace = append(trace, "post-broken")
		panic("boom")
	}, 10))
	require.NoError(t, h.InstallHookPost("post", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		trace = append(trace, "post")
		return cur
	}, 1))

	var rv ReturnValue[args3, int]
	require.NotPanics(t, func() { rv = h.Dispatch(args3{A: 1, B: 2, C: 3}) })
	require.Equal(t, []string{"broken", "later", "post-broken", "post"}, trace)
	require.Equal(t, 1, c.calls)
	require.Equal(t, 6, rv.Value())
}

func TestPostObservesAndOverrides(t *testing.T) {
	h, c := newPoint(t)
	var observed int
	require.NoError(t, h.InstallHookPost("observer", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		observed = cur.Value()
		return cur
	}, 10))
	require.NoError(t, h.InstallHookPost("rewriter", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
		return cur.Skip(100)
	}, 0))

	rv := h.Dispatch(args3{A: 1, B: 2, C: 3})
	require.Equal(t, 6, observed)
	require.Equal(t, 1, c.calls)
	require.Equal(t, 100, rv.Value())
}

func TestRegistration(t *testing.T) {
	h, c := newPoint(t)

	require.ErrorIs(t, h.InstallHookPre("a", nil, 0), ErrNilCallback)
	require.NoError(t, h.InstallHookPre("a", abstain, 0))
	require.ErrorIs(t, h.InstallHookPre("b", abstain, 5), ErrDuplicateCallback)
	require.NoError(t, h.InstallHookPost("a", abstain, 0))

	other := func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] { return cur.Skip(0) }
	h.RemoveHookPre(other)
	h.RemoveHookPost(other)
	pre, post, _ := h.Counts()
	require.Equal(t, 1, pre)
	require.Equal(t, 1, post)

	h.RemoveHookPre(abstain)
	h.RemoveHookPre(abstain)
	pre, post, _ = h.Counts()
	require.Equal(t, 0, pre)
	require.Equal(t, 1, post)

	h.Dispatch(args3{})
	require.Equal(t, 1, c.calls)
}

func TestRemoveOwner(t *testing.T) {
	h, _ := newPoint(t)
	hits := make([]int, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.InstallHookPre("mod-a", func(_ args3, cur ReturnValue[args3, int]) ReturnValue[args3, int] {
			hits[i]++
			return cur
		}, i))
	}
	require.NoError(t, h.InstallHookPost("mod-b", abstain, 0))
	require.NoError(t, h.InstallForward("mod-a", func(args3) {}, 0))

	require.Equal(t, 4, h.RemoveOwner("mod-a"))
	require.Equal(t, 0, h.RemoveOwner("mod-a"))
	pre, post, fwd := h.Counts()
	require.Equal(t, 0, pre)
	require.Equal(t, 1, post)
	require.Equal(t, 0, fwd)

	regs := h.Registrations()
	require.Len(t, regs, 1)
	require.Equal(t, "post", regs[0].Phase)
	require.Equal(t, "mod-b", regs[0].Owner)
}

func TestDispatchWithoutOriginal(t *testing.T) {
	h := NewHookPoint[args3, int]("test.unbound")
	rv := h.Dispatch(args3{A: 1})
	require.Equal(t, Ignored, rv.Action())
	require.Zero(t, rv.Value())
}

type fakeInstaller struct {
	installErr error
	installed  bool
	uninstalls int
	disposed   bool
	trampoline uintptr
}

func (f *fakeInstaller) ID() hook.ID       { return 0 }
func (f *fakeInstaller) Kind() hook.Kind   { return hook.KindDetour }
func (f *fakeInstaller) Target() uintptr   { return 0x1000 }
func (f *fakeInstaller) State() hook.State { return hook.StateUninstalled }

func (f *fakeInstaller) Dispose() error {
	f.disposed = true
	return nil
}

func (f *fakeInstaller) Trampoline() uintptr {
	if !f.installed {
		return 0
	}
	return f.trampoline
}

func (f *fakeInstaller) Install() error {
	if f.installErr != nil {
		return f.installErr
	}
	f.installed = true
	return nil
}

func (f *fakeInstaller) Uninstall() error {
	f.uninstalls++
	f.installed = false
	return nil
}

func TestAttachDetach(t *testing.T) {
	h := NewHookPoint[args3, int]("test.native")
	inst := &fakeInstaller{trampoline: 0x2000}
	var gotTramp uintptr
	require.NoError(t, h.Attach(inst, func(tramp uintptr, p args3) int {
		gotTramp = tramp
		return p.A * 2
	}))
	require.Equal(t, hook.StateInstalled, h.State())
	require.Equal(t, uintptr(0x2000), h.Trampoline())
	require.ErrorIs(t, h.Bind(func(args3) int { return 0 }), ErrAlreadyAttached)

	require.Equal(t, 8, h.Dispatch(args3{A: 4}).Value())
	require.Equal(t, uintptr(0x2000), gotTramp)

	require.NoError(t, h.Detach())
	require.NoError(t, h.Detach())
	require.Equal(t, 1, inst.uninstalls)
	require.Equal(t, hook.StateUninstalled, h.State())
	require.Zero(t, h.Dispatch(args3{A: 4}).Value())

	require.NoError(t, h.Close())
	require.True(t, inst.disposed)
}

func TestAttachFailure(t *testing.T) {
	h := NewHookPoint[args3, int]("test.failing")
	inst := &fakeInstaller{installErr: hook.ErrTooShort}
	err := h.Attach(inst, func(uintptr, args3) int { return 1 })
	require.ErrorIs(t, err, hook.ErrTooShort)
	require.Equal(t, hook.StateFailed, h.State())
	require.Zero(t, h.Dispatch(args3{}).Value())
}

func TestActivator(t *testing.T) {
	h := NewHookPoint[args3, int]("test.lazy")
	activations := 0
	fail := errors.New("no gamedata")
	h.SetActivator(func() error {
		activations++
		return fail
	})
	require.ErrorIs(t, h.InstallHookPre("a", abstain, 0), fail)
	pre, _, _ := h.Counts()
	require.Zero(t, pre)

	c := &counter{}
	h.SetActivator(func() error {
		activations++
		return h.Bind(c.sum)
	})
	require.NoError(t, h.InstallHookPre("a", abstain, 0))
	require.NoError(t, h.InstallHookPost("a", abstain, 0))
	require.Equal(t, 2, activations)

	require.Equal(t, 3, h.Dispatch(args3{A: 1, B: 1, C: 1}).Value())
	require.Equal(t, 1, c.calls)
}

func TestForward(t *testing.T) {
	f := NewForward[args3]("test.notify")
	var order []string
	require.NoError(t, f.InstallForward("low", func(args3) { order = append(order, "low") }, 0))
	require.NoError(t, f.InstallForward("broken", func(args3) {
		order = append(order, "broken")
		panic("boom")
	}, 5))
	high := func(p args3) { order = append(order, "high") }
	require.NoError(t, f.InstallForward("high", high, 10))
	require.ErrorIs(t, f.InstallForward("high", high, 1), ErrDuplicateCallback)

	require.NoError(t, f.Bind(func(p args3) uintptr { return uintptr(p.A) }))
	require.Equal(t, uintptr(7), f.Dispatch(args3{A: 7}))
	require.Equal(t, []string{"high", "broken", "low"}, order)

	f.RemoveForward(high)
	f.RemoveForward(high)
	require.Equal(t, 1, f.RemoveOwner("low"))
	require.Equal(t, 1, f.Info().Forwards)
}
