// Package spatial holds the transform types shared by the replication runtime.
// Vectors and orientations are mgl64 values; this package only adds the
// operations the runtime needs on top of them.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// Forward is the local facing direction of an avatar.
	Forward = mgl64.Vec3{0, 0, 1}
	// WorldUp is the default up vector.
	WorldUp = mgl64.Vec3{0, 1, 0}
)

// Transform is the full replicated transform of a scene node.
type Transform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Scale       mgl64.Vec3
	Up          mgl64.Vec3
}

// Identity returns a transform at the origin with unit scale.
func Identity() Transform {
	return Transform{
		Orientation: mgl64.QuatIdent(),
		Scale:       mgl64.Vec3{1, 1, 1},
		Up:          WorldUp,
	}
}

// Pose is the read-only position/orientation pair exposed to UI and camera code.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

func (t Transform) Pose() Pose {
	return Pose{Position: t.Position, Orientation: t.Orientation}
}

// Distance is the straight-line distance between two points.
func Distance(a, b mgl64.Vec3) float64 {
	return b.Sub(a).Len()
}

// StepToward moves from towards to by at most maxStep and returns the new
// point with the distance still left. It never overshoots to.
func StepToward(from, to mgl64.Vec3, maxStep float64) (mgl64.Vec3, float64) {
	delta := to.Sub(from)
	dist := delta.Len()
	if dist == 0 {
		return to, 0
	}
	step := math.Min(dist, math.Max(maxStep, 0))
	if step == dist {
		return to, 0
	}
	next := from.Add(delta.Mul(step / dist))
	return next, Distance(next, to)
}

// Angle returns the rotation angle in radians separating two orientations.
func Angle(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Normalize().Dot(b.Normalize()))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}

// Slerp moves a toward b by the fraction t along the shorter arc.
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// FromEuler converts XYZ-ordered Euler angles (radians) to an orientation.
func FromEuler(x, y, z float64) mgl64.Quat {
	return mgl64.AnglesToQuat(x, y, z, mgl64.XYZ).Normalize()
}

// Yaw is an orientation rotated about the world up axis.
func Yaw(radians float64) mgl64.Quat {
	return mgl64.QuatRotate(radians, WorldUp)
}

// Facing returns the world-space forward vector of an orientation.
func Facing(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(Forward)
}

// ToEuler is the inverse of FromEuler, used by the wire codecs.
func ToEuler(q mgl64.Quat) (x, y, z float64) {
	m := q.Normalize().Mat4()
	// XYZ order: R = Rx * Ry * Rz
	m13 := m.At(0, 2)
	if m13 > 1 {
		m13 = 1
	} else if m13 < -1 {
		m13 = -1
	}
	y = math.Asin(m13)
	if math.Abs(m13) < 0.9999999 {
		x = math.Atan2(-m.At(1, 2), m.At(2, 2))
		z = math.Atan2(-m.At(0, 1), m.At(0, 0))
	} else {
		x = math.Atan2(m.At(2, 1), m.At(1, 1))
		z = 0
	}
	return x, y, z
}
