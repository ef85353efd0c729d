package schema

import "math"

// Vector is a native three-component float vector.
type Vector struct {
	X, Y, Z float32
}

// Length returns the euclidean length.
func (v Vector) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

func (v Vector) Add(o Vector) Vector {
	return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// QAngle is pitch, yaw and roll in degrees.
type QAngle struct {
	Pitch, Yaw, Roll float32
}

// Vector2D is a native two-component float vector.
type Vector2D struct {
	X, Y float32
}

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// Handle is an entity handle: 15 bits of index and a serial number.
type Handle uint32

const (
	handleIndexBits = 15
	handleIndexMask = 1<<handleIndexBits - 1
	// InvalidHandle is the handle of no entity
	InvalidHandle Handle = 0xFFFFFFFF
)

func (h Handle) Valid() bool   { return h != InvalidHandle }
func (h Handle) Index() uint32 { return uint32(h) & handleIndexMask }
func (h Handle) Serial() uint32 {
	return uint32(h) >> handleIndexBits
}
