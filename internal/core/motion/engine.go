// Package motion smooths non-movable entities toward their target transform
// once per frame and detects when an entity has stopped moving.
package motion

import (
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/events/bus"
	"github.com/zeusync/replica/internal/core/fault"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/scene"
	"github.com/zeusync/replica/internal/core/spatial"
)

// Stopped is published once when an entity has not moved for StopTicks ticks.
type Stopped struct {
	ID   entity.ID
	Tick int64
}

// Entities is the entity table the engine iterates.
type Entities interface {
	Each(fn func(id entity.ID, md *entity.Metadata, node scene.Node))
}

type Config struct {
	// Epsilon is the remaining distance below which a position snaps to target.
	Epsilon float64
	// OrientationSmoothing is the slerp fraction applied per frame.
	OrientationSmoothing float64
	// OrientationThreshold is the angle, in radians, below which orientation snaps.
	OrientationThreshold float64
	// StopTicks is how many ticks without movement count as stopped.
	StopTicks int64
}

func DefaultConfig() Config {
	return Config{
		Epsilon:              0.005,
		OrientationSmoothing: 0.2,
		OrientationThreshold: 0.001,
		StopTicks:            10,
	}
}

// Engine is the motion interpolation engine.
type Engine struct {
	cfg      Config
	entities Entities
	graph    *scene.Graph
	stopped  bus.Publisher[Stopped]
	guard    *fault.Guard
	logger   log.Log
}

func NewEngine(cfg Config, entities Entities, graph *scene.Graph, stopped bus.Publisher[Stopped], guard *fault.Guard, logger log.Log) *Engine {
	return &Engine{
		cfg:      cfg,
		entities: entities,
		graph:    graph,
		stopped:  stopped,
		guard:    guard,
		logger:   logger.With(log.String("component", "motion")),
	}
}

// Step advances every animateable entity by dt seconds at the given tick and
// returns the entities whose pose changed. Movable entities are never
// interpolated; they are reported as touched when they were written
// directly during this tick.
func (e *Engine) Step(tick int64, dt float64) *Touched {
	touched := NewTouched()
	e.entities.Each(func(id entity.ID, md *entity.Metadata, node scene.Node) {
		e.guard.Run("motion", id, func() {
			if !md.Animateable {
				return
			}
			if md.Movable {
				if md.LastTickMoved == tick {
					touched.Add(id)
				}
			} else if e.interpolate(tick, dt, md, node) {
				touched.Add(id)
			}
			e.detectStop(id, tick, md)
		})
	})
	return touched
}

func (e *Engine) interpolate(tick int64, dt float64, md *entity.Metadata, node scene.Node) bool {
	current, ok := e.graph.Transform(node)
	if !ok {
		return false
	}
	target := md.Target
	changed := false

	if current.Position != target.Position {
		next, left := spatial.StepToward(current.Position, target.Position, md.Speed*dt)
		if left <= e.cfg.Epsilon {
			next = target.Position
		}
		if next != current.Position {
			e.graph.SetPosition(node, next)
			md.LastTickMoved = tick
			changed = true
		}
	}

	if current.Orientation != target.Orientation {
		next := target.Orientation
		if spatial.Angle(current.Orientation, target.Orientation) > e.cfg.OrientationThreshold {
			next = spatial.Slerp(current.Orientation, target.Orientation, e.cfg.OrientationSmoothing)
		}
		e.graph.SetOrientation(node, next)
		changed = true
	}

	if current.Scale != target.Scale {
		e.graph.SetScale(node, target.Scale)
		changed = true
	}
	if current.Up != target.Up {
		e.graph.SetUp(node, target.Up)
	}
	return changed
}

func (e *Engine) detectStop(id entity.ID, tick int64, md *entity.Metadata) {
	if md.LastTickMoved == entity.NeverMoved || tick-md.LastTickMoved < e.cfg.StopTicks {
		return
	}
	md.LastTickMoved = entity.NeverMoved
	if e.stopped == nil {
		return
	}
	if err := e.stopped.Publish(Stopped{ID: id, Tick: tick}); err != nil {
		e.logger.Warn("stop notification handler failed", log.Entity(uint64(id)), log.Error(err))
	}
}
