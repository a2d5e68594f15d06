// Package tween runs short, duration-bounded interpolations of a scene node's
// position, orientation or opacity. Tweens are for one-shot visual effects
// and never touch replicated entity state.
package tween

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/zeusync/replica/internal/core/scene"
	"github.com/zeusync/replica/internal/core/spatial"
)

// Target lists the properties to tween. Nil fields are left alone.
type Target struct {
	Position    *mgl64.Vec3
	Orientation *mgl64.Quat
	Opacity     *float64
}

type Option func(h *Handle)

// WithEasing replaces the default linear curve.
func WithEasing(fn ease.TweenFunc) Option {
	return func(h *Handle) {
		h.easing = fn
	}
}

type snapshot struct {
	position    mgl64.Vec3
	orientation mgl64.Quat
	opacity     float64
}

// Handle is one registered tween.
type Handle struct {
	id       string
	node     scene.Node
	target   Target
	from     snapshot
	duration float64
	progress float64
	ended    bool
	easing   ease.TweenFunc
	curve    *gween.Tween
}

func (h *Handle) ID() string        { return h.id }
func (h *Handle) Node() scene.Node  { return h.node }
func (h *Handle) Ended() bool       { return h.ended }
func (h *Handle) Progress() float64 { return h.progress }

// fraction maps progress onto [0, 1] through the easing curve.
func (h *Handle) fraction() float64 {
	if h.duration <= 0 {
		return 1
	}
	f, _ := h.curve.Set(float32(h.progress))
	return float64(f)
}

// Scheduler owns the active tweens of one scene graph.
type Scheduler struct {
	graph  *scene.Graph
	active []*Handle
}

func NewScheduler(graph *scene.Graph) *Scheduler {
	return &Scheduler{graph: graph}
}

// Tween snapshots the node's current state and registers a tween towards
// target over seconds.
func (s *Scheduler) Tween(node scene.Node, target Target, seconds float64, opts ...Option) *Handle {
	tr, _ := s.graph.Transform(node)
	h := &Handle{
		id:     uuid.NewString(),
		node:   node,
		target: target,
		from: snapshot{
			position:    tr.Position,
			orientation: tr.Orientation,
			opacity:     s.graph.Opacity(node),
		},
		duration: max(seconds, 0),
		easing:   ease.Linear,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.curve = gween.New(0, 1, float32(h.duration), h.easing)
	s.active = append(s.active, h)
	return h
}

// Advance prunes tweens that ended last frame, then moves the rest forward by
// dt seconds and writes their values to the graph.
func (s *Scheduler) Advance(dt float64) {
	live := s.active[:0]
	for _, h := range s.active {
		if !h.ended {
			live = append(live, h)
		}
	}
	clear(s.active[len(live):])
	s.active = live

	for _, h := range s.active {
		if !s.graph.Valid(h.node) {
			h.ended = true
			continue
		}
		h.progress = min(h.progress+dt, h.duration)
		s.apply(h, h.fraction())
		if h.progress >= h.duration {
			h.ended = true
		}
	}
}

func (s *Scheduler) apply(h *Handle, f float64) {
	if p := h.target.Position; p != nil {
		s.graph.SetPosition(h.node, h.from.position.Add(p.Sub(h.from.position).Mul(f)))
	}
	if q := h.target.Orientation; q != nil {
		s.graph.SetOrientation(h.node, spatial.Slerp(h.from.orientation, *q, f))
	}
	if o := h.target.Opacity; o != nil {
		s.graph.SetOpacity(h.node, h.from.opacity+(*o-h.from.opacity)*f)
	}
}

// Cancel ends a tween where it stands.
func (s *Scheduler) Cancel(h *Handle) {
	h.ended = true
}

// Active returns the tweens that have not ended.
func (s *Scheduler) Active() []*Handle {
	out := make([]*Handle, 0, len(s.active))
	for _, h := range s.active {
		if !h.ended {
			out = append(out, h)
		}
	}
	return out
}

// Len counts registered tweens, including ended ones not yet pruned.
func (s *Scheduler) Len() int {
	return len(s.active)
}
