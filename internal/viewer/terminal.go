// Package viewer rasterizes the scene graph top-down into a terminal and
// turns key presses into held movement directions.
package viewer

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/zeusync/replica/internal/core/asset"
	"github.com/zeusync/replica/internal/core/input"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/scene"
	"github.com/zeusync/replica/internal/core/spatial"
)

// Steering receives held directions.
type Steering interface {
	Press(d input.Direction)
	Release(d input.Direction)
}

// CameraFunc returns the pose the view is centered on.
type CameraFunc func() (spatial.Pose, bool)

type Options struct {
	// Scale is the number of rows per world unit. Columns use twice as many.
	Scale float64
	// Release is how long a direction stays held after its last key repeat.
	// Terminals report presses only.
	Release time.Duration
}

func DefaultOptions() Options {
	return Options{Scale: 2, Release: 150 * time.Millisecond}
}

// Terminal is the rasterization collaborator. Draw must run on the frame
// goroutine; Run polls keys on its own goroutine.
type Terminal struct {
	screen   tcell.Screen
	graph    *scene.Graph
	steering Steering
	camera   CameraFunc
	opts     Options
	logger   log.Log

	mx       sync.Mutex
	pressed  map[input.Direction]time.Time
	bindings map[rune]func()
	quit     func()
	now      func() time.Time
}

func NewTerminal(screen tcell.Screen, graph *scene.Graph, steering Steering, camera CameraFunc, opts Options, logger log.Log) *Terminal {
	return &Terminal{
		screen:   screen,
		graph:    graph,
		steering: steering,
		camera:   camera,
		opts:     opts,
		logger:   logger.With(log.String("component", "viewer")),
		pressed:  make(map[input.Direction]time.Time),
		bindings: make(map[rune]func()),
		now:      time.Now,
	}
}

// Bind runs fn on the input goroutine whenever r is typed.
func (t *Terminal) Bind(r rune, fn func()) {
	t.mx.Lock()
	t.bindings[r] = fn
	t.mx.Unlock()
}

// OnQuit sets the callback for Esc, Ctrl-C and q.
func (t *Terminal) OnQuit(fn func()) {
	t.mx.Lock()
	t.quit = fn
	t.mx.Unlock()
}

// Run polls terminal events until ctx is done, then finalizes the screen.
func (t *Terminal) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, t.screen.Fini)
	defer stop()
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return nil
		}
		t.Handle(ev)
	}
}

// Handle processes one terminal event.
func (t *Terminal) Handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		t.key(ev)
	case *tcell.EventResize:
		t.screen.Sync()
	}
}

func (t *Terminal) key(ev *tcell.EventKey) {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
		(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
		t.mx.Lock()
		quit := t.quit
		t.mx.Unlock()
		if quit != nil {
			quit()
		}
		return
	}

	if d, ok := direction(ev); ok {
		t.mx.Lock()
		t.pressed[d] = t.now()
		t.mx.Unlock()
		t.steering.Press(d)
		return
	}

	if ev.Key() == tcell.KeyRune {
		t.mx.Lock()
		fn := t.bindings[ev.Rune()]
		t.mx.Unlock()
		if fn != nil {
			fn()
		}
	}
}

func direction(ev *tcell.EventKey) (input.Direction, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return input.Forward, true
	case tcell.KeyDown:
		return input.Back, true
	case tcell.KeyLeft:
		return input.Left, true
	case tcell.KeyRight:
		return input.Right, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'w', 'W':
			return input.Forward, true
		case 's', 'S':
			return input.Back, true
		case 'a', 'A':
			return input.Left, true
		case 'd', 'D':
			return input.Right, true
		}
	}
	return 0, false
}

// Expire releases directions whose key has not repeated within the release
// timeout.
func (t *Terminal) Expire() {
	now := t.now()
	t.mx.Lock()
	var released []input.Direction
	for d, at := range t.pressed {
		if now.Sub(at) >= t.opts.Release {
			released = append(released, d)
			delete(t.pressed, d)
		}
	}
	t.mx.Unlock()
	for _, d := range released {
		t.steering.Release(d)
	}
}

// Draw expires held keys and renders every node.
func (t *Terminal) Draw() {
	t.Expire()

	w, h := t.screen.Size()
	var center spatial.Pose
	if t.camera != nil {
		if p, ok := t.camera(); ok {
			center = p
		}
	}

	t.screen.Clear()
	t.graph.Each(func(_ scene.Node, tr spatial.Transform, a scene.Appearance, m *asset.Model) {
		rel := tr.Position.Sub(center.Position)
		x, y := t.project(rel.X(), rel.Z(), w, h)
		if x < 0 || y < 0 || x >= w || y >= h {
			return
		}
		t.screen.SetContent(x, y, glyph(m), nil, style(a))
	})
	t.screen.Show()
}

// project maps world XZ offsets to a cell. Forward (-Z) is up.
func (t *Terminal) project(dx, dz float64, w, h int) (int, int) {
	x := w/2 + int(math.Round(dx*t.opts.Scale*2))
	y := h/2 + int(math.Round(dz*t.opts.Scale))
	return x, y
}

// glyph is the first letter of the model name, or a dot while the asset
// is unresolved.
func glyph(m *asset.Model) rune {
	if m == nil || m.Name == "" {
		return '·'
	}
	for _, r := range m.Name {
		return r
	}
	return '·'
}

func style(a scene.Appearance) tcell.Style {
	s := tcell.StyleDefault.Foreground(tcell.NewHexColor(int32(a.Color & 0xffffff)))
	if a.Color == 0 {
		s = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	}
	if a.Opacity < 0.5 {
		s = s.Dim(true)
	}
	return s
}
