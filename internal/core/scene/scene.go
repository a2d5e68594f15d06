// Package scene is the rendering projection of the replicated entities. Each
// node is a donburi entity carrying its rendered transform and appearance.
// The reconciler's entity table is the source of truth; this graph is only
// written from it and read by rasterizers.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"

	"github.com/zeusync/replica/internal/core/asset"
	"github.com/zeusync/replica/internal/core/spatial"
)

// Node is an opaque handle to a scene node.
type Node donburi.Entity

// Appearance holds the non-spatial render state of a node.
type Appearance struct {
	Color   uint32
	Opacity float64
}

type attachment struct {
	Model *asset.Model
}

var (
	transformComponent  = donburi.NewComponentType[spatial.Transform]()
	appearanceComponent = donburi.NewComponentType[Appearance]()
	modelComponent      = donburi.NewComponentType[attachment]()
)

// Graph owns the donburi world backing the scene.
type Graph struct {
	world donburi.World
}

func NewGraph() *Graph {
	return &Graph{world: donburi.NewWorld()}
}

// Create adds a node at the identity transform, fully opaque.
func (g *Graph) Create() Node {
	entity := g.world.Create(transformComponent, appearanceComponent, modelComponent)
	e := g.world.Entry(entity)
	transformComponent.SetValue(e, spatial.Identity())
	appearanceComponent.SetValue(e, Appearance{Opacity: 1})
	return Node(entity)
}

// Remove detaches the node and releases its model.
func (g *Graph) Remove(n Node) {
	if !g.Valid(n) {
		return
	}
	g.world.Remove(donburi.Entity(n))
}

func (g *Graph) Valid(n Node) bool {
	return g.world.Valid(donburi.Entity(n))
}

func (g *Graph) entry(n Node) (*donburi.Entry, bool) {
	if !g.Valid(n) {
		return nil, false
	}
	return g.world.Entry(donburi.Entity(n)), true
}

// Transform returns the rendered transform of a node.
func (g *Graph) Transform(n Node) (spatial.Transform, bool) {
	e, ok := g.entry(n)
	if !ok {
		return spatial.Transform{}, false
	}
	return *transformComponent.Get(e), true
}

func (g *Graph) SetTransform(n Node, t spatial.Transform) {
	if e, ok := g.entry(n); ok {
		transformComponent.SetValue(e, t)
	}
}

func (g *Graph) update(n Node, fn func(t *spatial.Transform)) {
	if e, ok := g.entry(n); ok {
		fn(transformComponent.Get(e))
	}
}

func (g *Graph) SetPosition(n Node, p mgl64.Vec3) {
	g.update(n, func(t *spatial.Transform) { t.Position = p })
}

func (g *Graph) SetOrientation(n Node, q mgl64.Quat) {
	g.update(n, func(t *spatial.Transform) { t.Orientation = q })
}

func (g *Graph) SetScale(n Node, s mgl64.Vec3) {
	g.update(n, func(t *spatial.Transform) { t.Scale = s })
}

func (g *Graph) SetUp(n Node, up mgl64.Vec3) {
	g.update(n, func(t *spatial.Transform) { t.Up = up })
}

// Appearance returns the color and opacity of a node.
func (g *Graph) Appearance(n Node) (Appearance, bool) {
	e, ok := g.entry(n)
	if !ok {
		return Appearance{}, false
	}
	return *appearanceComponent.Get(e), true
}

func (g *Graph) Opacity(n Node) float64 {
	a, _ := g.Appearance(n)
	return a.Opacity
}

func (g *Graph) SetOpacity(n Node, opacity float64) {
	if e, ok := g.entry(n); ok {
		appearanceComponent.Get(e).Opacity = opacity
	}
}

func (g *Graph) SetColor(n Node, color uint32) {
	if e, ok := g.entry(n); ok {
		appearanceComponent.Get(e).Color = color
	}
}

// Attach puts a loaded model on the node, replacing any previous one.
func (g *Graph) Attach(n Node, m *asset.Model) {
	if e, ok := g.entry(n); ok {
		modelComponent.SetValue(e, attachment{Model: m})
	}
}

// Model returns the attached model, or nil while the asset is unresolved.
func (g *Graph) Model(n Node) *asset.Model {
	e, ok := g.entry(n)
	if !ok {
		return nil
	}
	return modelComponent.Get(e).Model
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	return g.world.Len()
}

// Each visits every node. The callback must not add or remove nodes.
func (g *Graph) Each(fn func(n Node, t spatial.Transform, a Appearance, m *asset.Model)) {
	transformComponent.Each(g.world, func(e *donburi.Entry) {
		fn(Node(e.Entity()), *transformComponent.Get(e), *appearanceComponent.Get(e), modelComponent.Get(e).Model)
	})
}
