// Package audio keeps each entity's audio source consistent with its visual
// pose relative to the listener.
package audio

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gopxl/beep"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/spatial"
)

// Clock is the audio clock parameter changes are stamped with.
type Clock interface {
	Now() time.Duration
}

type Config struct {
	RefDistance   float64
	RollOffFactor float64
	SampleRate    beep.SampleRate
}

func DefaultConfig() Config {
	return Config{RefDistance: 3, RollOffFactor: 6, SampleRate: 44100}
}

// PoseFunc resolves an entity's current pose.
type PoseFunc func(id entity.ID) (spatial.Pose, bool)

// Environment is the spatial audio environment. It is also the mixed output
// streamer, pulled by the audio device goroutine.
type Environment struct {
	cfg    Config
	logger log.Log

	mx       sync.Mutex
	nodes    map[entity.ID]*Node
	mixer    beep.Mixer
	clock    Clock
	streamed int
}

var _ beep.Streamer = (*Environment)(nil)

func NewEnvironment(cfg Config, logger log.Log) *Environment {
	return &Environment{
		cfg:    cfg,
		logger: logger.With(log.String("component", "audio")),
		nodes:  make(map[entity.ID]*Node),
	}
}

// SetContext establishes the audio clock. Sync does nothing until it is set.
func (e *Environment) SetContext(clock Clock) {
	e.mx.Lock()
	e.clock = clock
	e.mx.Unlock()
}

// Register attaches an entity's audio node and starts mixing it.
func (e *Environment) Register(id entity.ID, n *Node) {
	e.mx.Lock()
	defer e.mx.Unlock()
	if prev, ok := e.nodes[id]; ok {
		prev.release()
	}
	e.nodes[id] = n
	e.mixer.Add(n.Streamer())
}

// Unregister releases an entity's node. Unknown ids are ignored.
func (e *Environment) Unregister(id entity.ID) {
	e.mx.Lock()
	defer e.mx.Unlock()
	if n, ok := e.nodes[id]; ok {
		n.release()
		delete(e.nodes, id)
	}
}

func (e *Environment) Node(id entity.ID) (*Node, bool) {
	e.mx.Lock()
	defer e.mx.Unlock()
	n, ok := e.nodes[id]
	return n, ok
}

// Sync updates the audio nodes of the entities touched this frame, or of
// every registered entity when the listener itself moved. Entities without
// a node are skipped.
func (e *Environment) Sync(listener spatial.Pose, listenerMoved bool, touched []entity.ID, pose PoseFunc) {
	e.mx.Lock()
	defer e.mx.Unlock()
	if e.clock == nil {
		return
	}
	at := e.clock.Now()

	if listenerMoved {
		for id, n := range e.nodes {
			e.update(id, n, listener, pose, at)
		}
		return
	}
	for _, id := range touched {
		if n, ok := e.nodes[id]; ok {
			e.update(id, n, listener, pose, at)
		}
	}
}

func (e *Environment) update(id entity.ID, n *Node, listener spatial.Pose, pose PoseFunc, at time.Duration) {
	p, ok := pose(id)
	if !ok {
		return
	}
	d := spatial.Distance(listener.Position, p.Position)

	if n.panner == nil {
		n.setGain(Gain(d, e.cfg.RefDistance, e.cfg.RollOffFactor), at)
		return
	}
	n.panner.Position = p.Position
	n.panner.Forward = spatial.Facing(p.Orientation)
	n.setGain(InverseGain(d, e.cfg.RefDistance, e.cfg.RollOffFactor), at)
	n.setPan(stereoPan(listener, p.Position), at)
}

// stereoPan is the sideways component of the direction from the listener to
// a source, in the listener's frame: -1 full left, 1 full right.
func stereoPan(listener spatial.Pose, source mgl64.Vec3) float64 {
	dir := source.Sub(listener.Position)
	if dir.Len() == 0 {
		return 0
	}
	right := spatial.Facing(listener.Orientation).Cross(spatial.WorldUp)
	if right.Len() == 0 {
		return 0
	}
	return dir.Normalize().Dot(right.Normalize())
}

// Stream mixes every registered node.
func (e *Environment) Stream(samples [][2]float64) (int, bool) {
	e.mx.Lock()
	defer e.mx.Unlock()
	n, _ := e.mixer.Stream(samples)
	e.streamed += n
	return n, true
}

func (e *Environment) Err() error {
	return nil
}

// OutputClock is a Clock driven by the samples this environment has streamed.
func (e *Environment) OutputClock() Clock {
	return outputClock{env: e}
}

type outputClock struct {
	env *Environment
}

// Now is read under the environment lock held by Sync.
func (c outputClock) Now() time.Duration {
	return c.env.cfg.SampleRate.D(c.env.streamed)
}
