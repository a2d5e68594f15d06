package input

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/spatial"
)

type localEntity struct {
	md      *entity.Metadata
	pose    spatial.Pose
	applied []entity.Diff
}

func (l *localEntity) Metadata(id entity.ID) (*entity.Metadata, bool) {
	return l.md, id == 1
}

func (l *localEntity) Apply(_ entity.ID, diff entity.Diff) error {
	l.applied = append(l.applied, diff)
	if diff.Position != nil {
		l.pose.Position = *diff.Position
	}
	if diff.Rotation != nil {
		l.pose.Orientation = *diff.Rotation
	}
	return nil
}

func (l *localEntity) lookup(id entity.ID) (spatial.Pose, bool) {
	return l.pose, id == 1
}

type recordingSender struct {
	mx   sync.Mutex
	sent []entity.Update
	err  error
}

func (r *recordingSender) SendLocalUpdate(_ context.Context, u entity.Update) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.sent = append(r.sent, u)
	return r.err
}

func (r *recordingSender) count() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return len(r.sent)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, mgl64.Vec3{0, 0, -1}, Forward.Vector())
	assert.Equal(t, mgl64.Vec3{1, 0, 1}, (Right | Back).Vector())
	assert.Equal(t, mgl64.Vec3{}, (Left | Right).Vector())
}

func TestController(t *testing.T) {
	newLocal := func() *localEntity {
		md := entity.NewMetadata(2)
		md.Movable = true
		return &localEntity{md: md, pose: spatial.Pose{Orientation: mgl64.QuatIdent()}}
	}

	t.Run("Moves Along Held Direction", func(t *testing.T) {
		local := newLocal()
		throttle := NewThrottle(&recordingSender{}, 10, log.NewNop())
		c := NewController(local, local.lookup, throttle, log.NewNop())

		c.Press(Right)
		require.True(t, c.Step(1, 0.5))
		assert.InDelta(t, 1, local.pose.Position.X(), 1e-12)
		assert.InDelta(t, 1, spatial.Facing(local.pose.Orientation).X(), 1e-9)
		assert.Equal(t, 1, throttle.Pending())

		c.Press(Back)
		require.True(t, c.Step(1, 0.5))
		step := 1 / math.Sqrt2
		assert.InDelta(t, 1+step, local.pose.Position.X(), 1e-9)
		assert.InDelta(t, step, local.pose.Position.Z(), 1e-9)

		c.Release(Right | Back)
		assert.False(t, c.Step(1, 0.5))
		assert.Len(t, local.applied, 2)
	})

	t.Run("Requires Movable Entity", func(t *testing.T) {
		local := newLocal()
		local.md.Movable = false
		c := NewController(local, local.lookup, nil, log.NewNop())
		c.Press(Forward)
		assert.False(t, c.Step(1, 0.1))
		assert.False(t, c.Step(2, 0.1), "unknown entity")
		assert.Empty(t, local.applied)
	})
}

func TestThrottle(t *testing.T) {
	t.Run("Coalesces Between Flushes", func(t *testing.T) {
		sender := &recordingSender{}
		th := NewThrottle(sender, 10, log.NewNop())
		assert.Equal(t, 100*time.Millisecond, th.Interval())

		for i := 1; i <= 5; i++ {
			th.Push(entity.Update{ID: 1, Diff: entity.Diff{Position: entity.Ptr(mgl64.Vec3{float64(i), 0, 0})}})
		}
		th.Push(entity.Update{ID: 1, Diff: entity.Diff{Action: &entity.Action{Type: entity.Idle, State: entity.LoopForever}}})

		require.NoError(t, th.Flush(context.Background()))
		require.Len(t, sender.sent, 1)
		u := sender.sent[0]
		assert.Equal(t, entity.ID(1), u.ID)
		assert.Equal(t, mgl64.Vec3{5, 0, 0}, *u.Diff.Position)
		assert.Equal(t, entity.Idle, u.Diff.Action.Type)
		assert.Equal(t, int64(1), *u.Diff.Revision)

		require.NoError(t, th.Flush(context.Background()))
		assert.Len(t, sender.sent, 1, "nothing pending, nothing sent")

		th.Push(entity.Update{ID: 1, Diff: entity.Diff{Color: entity.Ptr(uint32(7))}})
		require.NoError(t, th.Flush(context.Background()))
		assert.Equal(t, int64(2), *sender.sent[1].Diff.Revision)
		assert.Nil(t, sender.sent[1].Diff.Position)
	})

	t.Run("Send Errors Are Joined", func(t *testing.T) {
		boom := errors.New("link down")
		th := NewThrottle(&recordingSender{err: boom}, 10, log.NewNop())
		th.Push(entity.Update{ID: 1, Diff: entity.Diff{Color: entity.Ptr(uint32(1))}})
		th.Push(entity.Update{ID: 2, Diff: entity.Diff{Color: entity.Ptr(uint32(2))}})
		assert.ErrorIs(t, th.Flush(context.Background()), boom)
		assert.Zero(t, th.Pending())
	})

	t.Run("Run Flushes Periodically", func(t *testing.T) {
		sender := &recordingSender{}
		th := NewThrottle(sender, 200, log.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- th.Run(ctx) }()

		th.Push(entity.Update{ID: 1, Diff: entity.Diff{Color: entity.Ptr(uint32(1))}})
		require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, time.Millisecond)

		th.Push(entity.Update{ID: 1, Diff: entity.Diff{Color: entity.Ptr(uint32(2))}})
		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, 2, sender.count(), "pending changes are flushed on shutdown")
	})
}
