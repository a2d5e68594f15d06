package motion

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/events/bus"
	"github.com/zeusync/replica/internal/core/fault"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/scene"
	"github.com/zeusync/replica/internal/core/spatial"
)

type row struct {
	id   entity.ID
	md   *entity.Metadata
	node scene.Node
}

type table []row

type fixture struct {
	graph   *scene.Graph
	rows    table
	stopped []Stopped
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{graph: scene.NewGraph()}
	b := bus.New[Stopped]()
	b.Subscribe(func(s Stopped) error {
		f.stopped = append(f.stopped, s)
		return nil
	})
	logger := log.NewNop()
	f.engine = NewEngine(DefaultConfig(), &f.rows, f.graph, b, fault.NewGuard(logger, nil), logger)
	return f
}

func (t *table) Each(fn func(id entity.ID, md *entity.Metadata, node scene.Node)) {
	for _, r := range *t {
		fn(r.id, r.md, r.node)
	}
}

func (f *fixture) add(id entity.ID, md *entity.Metadata) scene.Node {
	n := f.graph.Create()
	f.rows = append(f.rows, row{id: id, md: md, node: n})
	return n
}

func (f *fixture) position(n scene.Node) mgl64.Vec3 {
	tr, _ := f.graph.Transform(n)
	return tr.Position
}

func TestWalkThenStop(t *testing.T) {
	f := newFixture(t)
	md := entity.NewMetadata(2)
	md.Target.Position = mgl64.Vec3{5, 0, 0}
	n := f.add(1, md)

	var tick int64
	for tick = 1; tick <= 24; tick++ {
		touched := f.engine.Step(tick, 0.1)
		require.True(t, touched.Has(1), "tick %d", tick)
		require.NotEqual(t, mgl64.Vec3{5, 0, 0}, f.position(n), "tick %d", tick)
	}

	f.engine.Step(25, 0.1)
	assert.Equal(t, mgl64.Vec3{5, 0, 0}, f.position(n))
	assert.Equal(t, int64(25), md.LastTickMoved)

	for tick = 26; tick <= 34; tick++ {
		touched := f.engine.Step(tick, 0.1)
		assert.False(t, touched.Has(1))
		assert.Empty(t, f.stopped, "tick %d", tick)
	}

	f.engine.Step(35, 0.1)
	require.Len(t, f.stopped, 1)
	assert.Equal(t, Stopped{ID: 1, Tick: 35}, f.stopped[0])
	assert.Equal(t, entity.NeverMoved, md.LastTickMoved)

	for tick = 36; tick <= 60; tick++ {
		f.engine.Step(tick, 0.1)
	}
	assert.Len(t, f.stopped, 1)
	assert.Equal(t, mgl64.Vec3{5, 0, 0}, f.position(n))
}

func TestNoOvershoot(t *testing.T) {
	target := mgl64.Vec3{3, 0, -4}
	for _, speed := range []float64{0.1, 1, 7, 50, 1e6} {
		for _, dt := range []float64{0.001, 0.016, 0.1, 1, 10} {
			f := newFixture(t)
			md := entity.NewMetadata(speed)
			md.Target.Position = target
			n := f.add(1, md)

			prev := spatial.Distance(f.position(n), target)
			for tick := int64(1); tick <= 50; tick++ {
				f.engine.Step(tick, dt)
				d := spatial.Distance(f.position(n), target)
				require.LessOrEqual(t, d, prev, "speed %v dt %v tick %d", speed, dt, tick)
				prev = d
			}
		}
	}
}

func TestSnapConvergence(t *testing.T) {
	f := newFixture(t)
	md := entity.NewMetadata(1)
	md.Target.Position = mgl64.Vec3{0.004, 0, 0}
	n := f.add(1, md)

	touched := f.engine.Step(1, 0.0001)
	assert.True(t, touched.Has(1))
	assert.Equal(t, md.Target.Position, f.position(n))

	touched = f.engine.Step(2, 1)
	assert.False(t, touched.Has(1))
	assert.Equal(t, md.Target.Position, f.position(n))
}

func TestMovableExclusivity(t *testing.T) {
	f := newFixture(t)
	md := entity.NewMetadata(2)
	md.Movable = true
	md.Target.Position = mgl64.Vec3{5, 0, 0}
	md.Target.Orientation = spatial.Yaw(1)
	n := f.add(1, md)

	written := mgl64.Vec3{1.25, 0, -3.5}
	f.graph.SetPosition(n, written)
	md.LastTickMoved = 1

	touched := f.engine.Step(1, 0.1)
	assert.True(t, touched.Has(1), "direct writes of this tick count as touched")

	for tick := int64(2); tick < 40; tick++ {
		touched = f.engine.Step(tick, 0.1)
		assert.False(t, touched.Has(1))
	}
	tr, _ := f.graph.Transform(n)
	assert.Equal(t, written, tr.Position)
	assert.Equal(t, mgl64.QuatIdent(), tr.Orientation)
	assert.Len(t, f.stopped, 1, "movable entities still report stops")
}

func TestOrientation(t *testing.T) {
	f := newFixture(t)
	md := entity.NewMetadata(2)
	md.Target.Orientation = spatial.Yaw(math.Pi / 2)
	n := f.add(1, md)

	touched := f.engine.Step(1, 0.1)
	assert.True(t, touched.Has(1))
	tr, _ := f.graph.Transform(n)
	assert.InDelta(t, 0.8*math.Pi/2, spatial.Angle(tr.Orientation, md.Target.Orientation), 1e-9)
	assert.Equal(t, entity.NeverMoved, md.LastTickMoved, "rotation alone is not movement")

	for tick := int64(2); tick < 100; tick++ {
		f.engine.Step(tick, 0.1)
	}
	tr, _ = f.graph.Transform(n)
	assert.Equal(t, md.Target.Orientation, tr.Orientation)
	assert.False(t, f.engine.Step(100, 0.1).Has(1))
}

func TestSkipsAndFaults(t *testing.T) {
	f := newFixture(t)

	decor := entity.NewMetadata(2)
	decor.Animateable = false
	decor.Target.Position = mgl64.Vec3{1, 0, 0}
	dn := f.add(1, decor)

	f.add(2, nil)

	walker := entity.NewMetadata(2)
	walker.Target.Position = mgl64.Vec3{1, 0, 0}
	wn := f.add(3, walker)

	touched := f.engine.Step(1, 0.1)
	assert.Equal(t, []entity.ID{3}, touched.IDs())
	assert.Equal(t, mgl64.Vec3{}, f.position(dn))
	assert.InDelta(t, 0.2, f.position(wn).X(), 1e-9)
}
