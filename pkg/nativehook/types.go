package nativehook

import (
	"github.com/corrreia/nativehook/internal/catalog"
	"github.com/corrreia/nativehook/internal/chain"
	"github.com/corrreia/nativehook/internal/gamedata"
	"github.com/corrreia/nativehook/internal/hook"
	"github.com/corrreia/nativehook/internal/schema"
)

type (
	Vector   = schema.Vector
	QAngle   = schema.QAngle
	Vector2D = schema.Vector2D
	Color    = schema.Color
	Handle   = schema.Handle
	Field    = gamedata.Field

	Action                = chain.Action
	ReturnValue[P, R any] = chain.ReturnValue[P, R]
	Callback[P, R any]    = chain.Callback[P, R]
	ForwardFunc[P any]    = chain.ForwardFunc[P]
	HookPoint[P, R any]   = chain.HookPoint[P, R]
	ForwardPoint[P any]   = chain.Forward[P]
	PointInfo             = chain.Info

	Definition          = catalog.Definition
	Codec[P, R any]     = catalog.Codec[P, R]
	ForwardCodec[P any] = catalog.ForwardCodec[P]

	Context       = hook.Context
	MidFuncHook   = hook.MidFunc
	StateNotifier = schema.StateNotifier
	StringPool    = schema.StringPool
)

const (
	Ignored                   = chain.Ignored
	SkipCallReturnOverride    = chain.SkipCallReturnOverride
	ChangeParamReturnDefault  = chain.ChangeParamReturnDefault
	ChangeParamReturnOverride = chain.ChangeParamReturnOverride

	Detour      = hook.KindDetour
	VirtualSlot = hook.KindVirtualSlot

	InvalidHandle = schema.InvalidHandle
)

// Combine folds requests in order into one decision.
func Combine[P, R any](reqs ...ReturnValue[P, R]) ReturnValue[P, R] {
	return chain.Combine(reqs...)
}
