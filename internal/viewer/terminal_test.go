package viewer

import (
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/asset"
	"github.com/zeusync/replica/internal/core/input"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/scene"
	"github.com/zeusync/replica/internal/core/spatial"
)

type steering struct {
	mx   sync.Mutex
	held input.Direction
}

func (s *steering) Press(d input.Direction) {
	s.mx.Lock()
	s.held |= d
	s.mx.Unlock()
}

func (s *steering) Release(d input.Direction) {
	s.mx.Lock()
	s.held &^= d
	s.mx.Unlock()
}

func (s *steering) Held() input.Direction {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.held
}

func newTerminal(t *testing.T, graph *scene.Graph, camera CameraFunc) (*Terminal, tcell.SimulationScreen, *steering) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(20, 10)
	t.Cleanup(screen.Fini)

	s := &steering{}
	return NewTerminal(screen, graph, s, camera, DefaultOptions(), log.NewNop()), screen, s
}

func cell(screen tcell.SimulationScreen, x, y int) rune {
	r, _, _, _ := screen.GetContent(x, y)
	return r
}

func TestDraw(t *testing.T) {
	graph := scene.NewGraph()
	avatar := graph.Create()
	graph.SetPosition(avatar, mgl64.Vec3{1, 0, -1})
	graph.SetColor(avatar, 0x33aa55)
	graph.Attach(avatar, &asset.Model{ID: 1, Name: "avatar"})

	graph.Create()

	t.Run("Centered On Origin", func(t *testing.T) {
		term, screen, _ := newTerminal(t, graph, nil)
		term.Draw()

		assert.Equal(t, 'a', cell(screen, 14, 3))
		assert.Equal(t, '·', cell(screen, 10, 5))
	})

	t.Run("Follows Camera", func(t *testing.T) {
		camera := func() (spatial.Pose, bool) {
			return spatial.Pose{Position: mgl64.Vec3{1, 0, -1}}, true
		}
		term, screen, _ := newTerminal(t, graph, camera)
		term.Draw()

		assert.Equal(t, 'a', cell(screen, 10, 5))
		assert.Equal(t, '·', cell(screen, 6, 7))
	})

	t.Run("Off Screen Skipped", func(t *testing.T) {
		far := scene.NewGraph()
		n := far.Create()
		far.SetPosition(n, mgl64.Vec3{100, 0, 0})
		term, screen, _ := newTerminal(t, far, nil)
		term.Draw()

		for y := 0; y < 10; y++ {
			for x := 0; x < 20; x++ {
				assert.Equal(t, ' ', cell(screen, x, y))
			}
		}
	})
}

func TestKeys(t *testing.T) {
	t.Run("Held Until Timeout", func(t *testing.T) {
		term, _, s := newTerminal(t, scene.NewGraph(), nil)
		now := time.Unix(100, 0)
		term.now = func() time.Time { return now }

		term.Handle(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone))
		term.Handle(tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone))
		assert.Equal(t, input.Forward|input.Right, s.Held())

		now = now.Add(100 * time.Millisecond)
		term.Handle(tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone))
		now = now.Add(60 * time.Millisecond)
		term.Expire()
		assert.Equal(t, input.Right, s.Held())

		now = now.Add(time.Second)
		term.Expire()
		assert.Zero(t, s.Held())
	})

	t.Run("Bindings", func(t *testing.T) {
		term, _, s := newTerminal(t, scene.NewGraph(), nil)
		var waved, quit bool
		term.Bind('1', func() { waved = true })
		term.OnQuit(func() { quit = true })

		term.Handle(tcell.NewEventKey(tcell.KeyRune, '1', tcell.ModNone))
		assert.True(t, waved)
		assert.Zero(t, s.Held())

		term.Handle(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
		assert.True(t, quit)
	})
}
