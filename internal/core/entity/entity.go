// Package entity defines the replicated entity model: identifiers, per-entity
// metadata, and the sparse diffs that patch it.
package entity

import (
	"github.com/zeusync/replica/internal/core/spatial"
)

// ID identifies a replicated entity.
type ID uint64

// NeverMoved is the LastTickMoved value of an entity that has not moved since
// its last stop notification.
const NeverMoved int64 = -1

// Playing records the action whose clip is active on the entity's mixer.
type Playing struct {
	Type ActionType
	Clip string
}

// Metadata is the replicated state of one entity. The reconciler owns it;
// motion and animation only touch LastTickMoved and Playing.
type Metadata struct {
	Animateable bool
	Movable     bool

	// Target is the transform a non-movable entity is approaching.
	Target spatial.Transform

	Color uint32
	Speed float64

	// AssetID is the most recently requested asset, nil until a diff names one.
	AssetID *int

	Action  Action
	Playing *Playing

	Revision      int64
	LastTickMoved int64
}

// NewMetadata returns metadata for a freshly created entity.
func NewMetadata(speed float64) *Metadata {
	return &Metadata{
		Animateable:   true,
		Target:        spatial.Identity(),
		Speed:         speed,
		Action:        Action{Type: Idle, State: LoopForever},
		LastTickMoved: NeverMoved,
	}
}

// Update is one entity's diff as delivered by the network.
type Update struct {
	ID   ID
	Diff Diff
}

// Snapshot is a full-state resync keyed by entity.
type Snapshot map[ID]Diff
