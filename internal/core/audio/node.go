package audio

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Panner is the positional state of a fully spatialized source.
type Panner struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
}

// Node is one entity's audio source: source -> volume -> stereo pan. A node
// created with a Panner is positional; otherwise it is attenuated by distance
// only.
type Node struct {
	ctrl   *beep.Ctrl
	volume *effects.Volume
	pan    *effects.Pan
	panner *Panner

	gain      float64
	updatedAt time.Duration
}

// NewNode wraps a source streamer. positional selects panner mode.
func NewNode(source beep.Streamer, positional bool) *Node {
	n := &Node{
		volume: &effects.Volume{Streamer: source, Base: 2},
		gain:   1,
	}
	n.pan = &effects.Pan{Streamer: n.volume}
	n.ctrl = &beep.Ctrl{Streamer: n.pan}
	if positional {
		n.panner = &Panner{Forward: mgl64.Vec3{0, 0, 1}}
	}
	return n
}

// Streamer is the node's output.
func (n *Node) Streamer() beep.Streamer {
	return n.ctrl
}

// Panner returns the positional state, or nil in attenuation mode.
func (n *Node) Panner() *Panner {
	return n.panner
}

func (n *Node) Gain() float64 {
	return n.gain
}

func (n *Node) Pan() float64 {
	return n.pan.Pan
}

// UpdatedAt is the audio clock time of the last parameter change.
func (n *Node) UpdatedAt() time.Duration {
	return n.updatedAt
}

func (n *Node) setGain(g float64, at time.Duration) {
	n.gain = g
	n.updatedAt = at
	if g <= 0 {
		n.volume.Silent = true
		n.volume.Volume = 0
		return
	}
	n.volume.Silent = false
	n.volume.Volume = math.Log2(g)
}

func (n *Node) setPan(p float64, at time.Duration) {
	n.pan.Pan = max(-1, min(1, p))
	n.updatedAt = at
}

func (n *Node) release() {
	n.ctrl.Streamer = nil
}

// Gain is the inverse power-law falloff used in attenuation mode. It is 1
// inside the reference distance.
func Gain(d, ref, rolloff float64) float64 {
	if ref <= 0 {
		return 1
	}
	return math.Pow(max(d, ref)/ref, -rolloff)
}

// InverseGain is the inverse distance model of a positional panner.
func InverseGain(d, ref, rolloff float64) float64 {
	if ref <= 0 {
		return 1
	}
	return ref / (ref + rolloff*(max(d, ref)-ref))
}
