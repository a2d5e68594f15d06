// Package input turns held directions into locally predicted motion of the
// controlled entity and rate-limits the resulting outbound updates.
package input

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/spatial"
)

// Direction is a set of held movement keys.
type Direction uint8

const (
	Forward Direction = 1 << iota
	Back
	Left
	Right
)

// Vector is the unnormalized world-space heading of a direction set. Forward
// is -Z and Right is +X, matching a top-down view with north up.
func (d Direction) Vector() mgl64.Vec3 {
	var v mgl64.Vec3
	if d&Forward != 0 {
		v[2]--
	}
	if d&Back != 0 {
		v[2]++
	}
	if d&Left != 0 {
		v[0]--
	}
	if d&Right != 0 {
		v[0]++
	}
	return v
}

// Target is where predicted motion is written: the reconciler.
type Target interface {
	Metadata(id entity.ID) (*entity.Metadata, bool)
	Apply(id entity.ID, diff entity.Diff) error
}

// PoseFunc resolves the rendered pose of an entity.
type PoseFunc func(id entity.ID) (spatial.Pose, bool)

// Sink receives local diffs for outbound delivery.
type Sink interface {
	Push(update entity.Update)
}

// Controller is the local input/prediction loop. Press and Release may be
// called from an input goroutine; Step runs on the frame goroutine.
type Controller struct {
	target Target
	pose   PoseFunc
	sink   Sink
	logger log.Log

	mx   sync.Mutex
	held Direction
}

func NewController(target Target, pose PoseFunc, sink Sink, logger log.Log) *Controller {
	return &Controller{
		target: target,
		pose:   pose,
		sink:   sink,
		logger: logger.With(log.String("component", "input")),
	}
}

func (c *Controller) Press(d Direction) {
	c.mx.Lock()
	c.held |= d
	c.mx.Unlock()
}

func (c *Controller) Release(d Direction) {
	c.mx.Lock()
	c.held &^= d
	c.mx.Unlock()
}

func (c *Controller) Held() Direction {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.held
}

// Step moves the controlled entity along the held direction for dt seconds,
// applies the move locally and queues it for sending. It reports whether the
// entity moved.
func (c *Controller) Step(id entity.ID, dt float64) bool {
	heading := c.Held().Vector()
	if heading.Len() == 0 || dt <= 0 {
		return false
	}
	md, ok := c.target.Metadata(id)
	if !ok || !md.Movable {
		return false
	}
	pose, ok := c.pose(id)
	if !ok {
		return false
	}

	dir := heading.Normalize()
	position := pose.Position.Add(dir.Mul(md.Speed * dt))
	rotation := spatial.Yaw(math.Atan2(dir.X(), dir.Z()))
	diff := entity.Diff{Position: &position, Rotation: &rotation}

	if err := c.target.Apply(id, diff); err != nil {
		c.logger.Warn("applying local move failed", log.Entity(uint64(id)), log.Error(err))
		return false
	}
	if c.sink != nil {
		c.sink.Push(entity.Update{ID: id, Diff: diff})
	}
	return true
}
