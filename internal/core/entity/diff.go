package entity

import "github.com/go-gl/mathgl/mgl64"

// Diff is a sparse patch of an entity's state. Nil fields are absent and leave
// the corresponding metadata untouched.
type Diff struct {
	Revision    *int64
	Animateable *bool
	Movable     *bool

	Position *mgl64.Vec3
	Rotation *mgl64.Quat
	Scale    *mgl64.Vec3
	Up       *mgl64.Vec3

	Color   *uint32
	Speed   *float64
	AssetID *int
	Action  *Action

	// Deleted removes the entity; every other field is ignored.
	Deleted bool
}

// Ptr returns a pointer to v, for building diffs inline.
func Ptr[T any](v T) *T {
	return &v
}

// IsEmpty reports whether the diff carries nothing.
func (d Diff) IsEmpty() bool {
	return d == Diff{}
}

// Merge overlays the fields present in next on top of d. Later values win
// field by field, and a deletion absorbs everything.
func (d Diff) Merge(next Diff) Diff {
	if next.Deleted {
		return Diff{Deleted: true, Revision: next.Revision}
	}
	if d.Deleted {
		return d
	}
	if next.Revision != nil {
		d.Revision = next.Revision
	}
	if next.Animateable != nil {
		d.Animateable = next.Animateable
	}
	if next.Movable != nil {
		d.Movable = next.Movable
	}
	if next.Position != nil {
		d.Position = next.Position
	}
	if next.Rotation != nil {
		d.Rotation = next.Rotation
	}
	if next.Scale != nil {
		d.Scale = next.Scale
	}
	if next.Up != nil {
		d.Up = next.Up
	}
	if next.Color != nil {
		d.Color = next.Color
	}
	if next.Speed != nil {
		d.Speed = next.Speed
	}
	if next.AssetID != nil {
		d.AssetID = next.AssetID
	}
	if next.Action != nil {
		d.Action = next.Action
	}
	return d
}
