// Package codec serializes batches of entity updates for the network link.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/spatial"
)

var ErrUnknownCodec = errors.New("unknown codec")

// Codec converts update batches to and from bytes.
type Codec interface {
	Name() string
	Encode(updates []entity.Update) ([]byte, error)
	// Decode returns a nil batch when the message itself is malformed. When
	// only some updates carry undecodable fields it returns the batch with
	// those fields dropped and an UpdateErrors.
	Decode(data []byte) ([]entity.Update, error)
}

// ByName returns the codec registered under name ("json" or "msgpack").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "":
		return &JSONCodec{}, nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// message is the wire envelope shared by every codec.
type message struct {
	Updates []wireUpdate `json:"updates" codec:"updates"`
}

type wireAction struct {
	Type  string `json:"type" codec:"type"`
	State int    `json:"state" codec:"state"`
}

// wireUpdate is one entity diff on the wire. Vectors are [x,y,z] arrays and
// rotation is XYZ Euler angles in radians.
type wireUpdate struct {
	ID          uint64      `json:"id" codec:"id"`
	Revision    *int64      `json:"revision,omitempty" codec:"revision"`
	Animateable *bool       `json:"animateable,omitempty" codec:"animateable"`
	Movable     *bool       `json:"movable,omitempty" codec:"movable"`
	Position    *[3]float64 `json:"position,omitempty" codec:"position"`
	Rotation    *[3]float64 `json:"rotation,omitempty" codec:"rotation"`
	Scale       *[3]float64 `json:"scale,omitempty" codec:"scale"`
	Up          *[3]float64 `json:"up,omitempty" codec:"up"`
	Color       *uint32     `json:"color,omitempty" codec:"color"`
	Speed       *float64    `json:"speed,omitempty" codec:"speed"`
	AssetID     *int        `json:"assetId,omitempty" codec:"assetId"`
	Action      *wireAction `json:"action,omitempty" codec:"action"`
	Deleted     bool        `json:"deleted,omitempty" codec:"deleted,omitempty"`
}

func vecToWire(v *mgl64.Vec3) *[3]float64 {
	if v == nil {
		return nil
	}
	w := [3]float64(*v)
	return &w
}

func vecFromWire(w *[3]float64) *mgl64.Vec3 {
	if w == nil {
		return nil
	}
	v := mgl64.Vec3(*w)
	return &v
}

func toWire(updates []entity.Update) message {
	msg := message{Updates: make([]wireUpdate, 0, len(updates))}
	for _, u := range updates {
		d := u.Diff
		w := wireUpdate{
			ID:          uint64(u.ID),
			Revision:    d.Revision,
			Animateable: d.Animateable,
			Movable:     d.Movable,
			Position:    vecToWire(d.Position),
			Scale:       vecToWire(d.Scale),
			Up:          vecToWire(d.Up),
			Color:       d.Color,
			Speed:       d.Speed,
			AssetID:     d.AssetID,
			Deleted:     d.Deleted,
		}
		if d.Rotation != nil {
			x, y, z := spatial.ToEuler(*d.Rotation)
			w.Rotation = &[3]float64{x, y, z}
		}
		if d.Action != nil {
			w.Action = &wireAction{Type: d.Action.Type.String(), State: d.Action.State}
		}
		msg.Updates = append(msg.Updates, w)
	}
	return msg
}

// UpdateError reports a field dropped from one decoded update. The rest of
// that update and the rest of the batch are kept.
type UpdateError struct {
	ID  entity.ID
	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("entity %d: %v", e.ID, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// UpdateErrors is returned by Decode alongside the decoded batch when some
// updates carried fields that could not be decoded.
type UpdateErrors []*UpdateError

func (e UpdateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ue := range e {
		msgs[i] = ue.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e UpdateErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, ue := range e {
		errs[i] = ue
	}
	return errs
}

func fromWire(msg message) ([]entity.Update, error) {
	updates := make([]entity.Update, 0, len(msg.Updates))
	var bad UpdateErrors
	for _, w := range msg.Updates {
		d := entity.Diff{
			Revision:    w.Revision,
			Animateable: w.Animateable,
			Movable:     w.Movable,
			Position:    vecFromWire(w.Position),
			Scale:       vecFromWire(w.Scale),
			Up:          vecFromWire(w.Up),
			Color:       w.Color,
			Speed:       w.Speed,
			AssetID:     w.AssetID,
			Deleted:     w.Deleted,
		}
		if w.Rotation != nil {
			q := spatial.FromEuler(w.Rotation[0], w.Rotation[1], w.Rotation[2])
			d.Rotation = &q
		}
		if w.Action != nil {
			if typ, err := entity.ParseActionType(w.Action.Type); err != nil {
				bad = append(bad, &UpdateError{ID: entity.ID(w.ID), Err: err})
			} else {
				d.Action = &entity.Action{Type: typ, State: w.Action.State}
			}
		}
		updates = append(updates, entity.Update{ID: entity.ID(w.ID), Diff: d})
	}
	if len(bad) > 0 {
		return updates, bad
	}
	return updates, nil
}
