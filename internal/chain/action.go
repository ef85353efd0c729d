// Package chain runs ordered callback chains around intercepted native
// calls and folds the callbacks' requests into one decision.
package chain

import "fmt"

// Action is the outcome a callback requests for the intercepted call.
type Action int

const (
	// Ignored calls the original and uses its real result
	Ignored Action = iota
	// SkipCallReturnOverride skips the original and returns the override
	SkipCallReturnOverride
	// ChangeParamReturnDefault calls the original with new parameters and
	// uses its real result
	ChangeParamReturnDefault
	// ChangeParamReturnOverride calls the original with new parameters and
	// returns the override
	ChangeParamReturnOverride
)

func (a Action) String() string {
	switch a {
	case Ignored:
		return "Ignored"
	case SkipCallReturnOverride:
		return "SkipCallReturnOverride"
	case ChangeParamReturnDefault:
		return "ChangeParamReturnDefault"
	case ChangeParamReturnOverride:
		return "ChangeParamReturnOverride"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

func (a Action) changesParams() bool {
	return a == ChangeParamReturnDefault || a == ChangeParamReturnOverride
}

func (a Action) overrides() bool {
	return a == SkipCallReturnOverride || a == ChangeParamReturnOverride
}

// ReturnValue is a decision about one call. Callbacks receive the current
// combined decision and return their own request built from it; returning
// the argument unchanged abstains.
type ReturnValue[P, R any] struct {
	action  Action
	value   R
	params  P
	changed bool
}

// Action is the requested or final action.
func (r ReturnValue[P, R]) Action() Action { return r.action }

// Value is the override value, or the value returned to the native caller
// once the chain has finished.
func (r ReturnValue[P, R]) Value() R { return r.value }

// Params returns the latest replacement parameters, if any were requested.
func (r ReturnValue[P, R]) Params() (P, bool) { return r.params, r.changed }

// Ignore requests the original call with its real result.
func (r ReturnValue[P, R]) Ignore() ReturnValue[P, R] {
	return ReturnValue[P, R]{action: Ignored}
}

// Skip requests that the original is not called and v is returned.
func (r ReturnValue[P, R]) Skip(v R) ReturnValue[P, R] {
	return ReturnValue[P, R]{action: SkipCallReturnOverride, value: v}
}

// ChangeParams requests the original be called with p.
func (r ReturnValue[P, R]) ChangeParams(p P) ReturnValue[P, R] {
	return ReturnValue[P, R]{action: ChangeParamReturnDefault, params: p, changed: true}
}

// ChangeParamsOverride requests the original be called with p and v be
// returned instead of its result.
func (r ReturnValue[P, R]) ChangeParamsOverride(p P, v R) ReturnValue[P, R] {
	return ReturnValue[P, R]{action: ChangeParamReturnOverride, value: v, params: p, changed: true}
}

func (r ReturnValue[P, R]) String() string {
	return fmt.Sprintf("%s(%v)", r.action, r.value)
}

// combiner folds pre-callback requests. The latest request wins the action
// and override value; replacement parameters stick once requested.
type combiner[P, R any] struct {
	current ReturnValue[P, R]
}

func (c *combiner[P, R]) apply(req ReturnValue[P, R]) {
	c.current.action = req.action
	c.current.value = req.value
	if req.action.changesParams() {
		c.current.params = req.params
		c.current.changed = true
	}
}

// callsOriginal reports whether the original runs under the current decision.
func (c *combiner[P, R]) callsOriginal() bool {
	return c.current.action != SkipCallReturnOverride
}

// args picks the parameters the original is called with.
func (c *combiner[P, R]) args(original P) P {
	if c.current.changed {
		return c.current.params
	}
	return original
}

// settle records the original's result unless an override was requested.
func (c *combiner[P, R]) settle(result R) {
	if !c.current.action.overrides() {
		c.current.value = result
	}
}

// Combine folds requests in order, exactly as a pre-callback chain would.
func Combine[P, R any](requests ...ReturnValue[P, R]) ReturnValue[P, R] {
	var c combiner[P, R]
	for _, r := range requests {
		c.apply(r)
	}
	return c.current
}
