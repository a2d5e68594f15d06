// Package reconcile applies incoming entity diffs to the entity table and the
// scene graph, and resolves entity assets asynchronously.
package reconcile

import (
	"context"
	"sync"

	"github.com/zeusync/replica/internal/core/animation"
	"github.com/zeusync/replica/internal/core/asset"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/events/queue"
	"github.com/zeusync/replica/internal/core/fault"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/scene"
	"github.com/zeusync/replica/internal/core/spatial"
)

// Animator is the part of the animation state machine the reconciler drives.
type Animator interface {
	Bind(id entity.ID, clips map[string]*animation.Clip) *animation.Mixer
	Unbind(id entity.ID)
	StartAction(id entity.ID, typ entity.ActionType, state int)
	ResumeAction(id entity.ID, typ entity.ActionType)
}

// Recorder receives reconciliation counters.
type Recorder interface {
	DiffApplied()
	DiffRejected(reason string)
	AssetDiscarded()
}

type Config struct {
	// DefaultSpeed is the speed of entities whose diffs never set one.
	DefaultSpeed float64
	// WalkThreshold is the minimum target displacement that starts walking.
	WalkThreshold float64
}

func DefaultConfig() Config {
	return Config{DefaultSpeed: 2, WalkThreshold: 0.005}
}

type record struct {
	node scene.Node
	// md stays nil until a diff carrying a revision initializes the entity.
	md *entity.Metadata
	// epoch identifies the most recent asset load requested for the entity.
	epoch uint64
}

type loadResult struct {
	id      entity.ID
	epoch   uint64
	assetID int
	model   *asset.Model
	err     error
}

// Reconciler owns the entity table. Apply, DrainLoads and Remove must be
// called from the frame goroutine; asset loads run on their own goroutines
// and are handed back through a queue.
type Reconciler struct {
	cfg      Config
	graph    *scene.Graph
	loader   asset.Loader
	animator Animator
	recorder Recorder
	guard    *fault.Guard
	logger   log.Log

	records map[entity.ID]*record
	order   []entity.ID
	tick    int64
	epoch   uint64

	loads     *queue.Queue[loadResult]
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	onRemoved []func(entity.ID)
}

func New(cfg Config, graph *scene.Graph, loader asset.Loader, recorder Recorder, guard *fault.Guard, logger log.Log) *Reconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		cfg:      cfg,
		graph:    graph,
		loader:   loader,
		animator: nopAnimator{},
		recorder: recorder,
		guard:    guard,
		logger:   logger.With(log.String("component", "reconciler")),
		records:  make(map[entity.ID]*record),
		loads:    queue.New[loadResult](),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// UseAnimator sets the animation state machine. The machine reads metadata
// back from the reconciler, so it is wired after construction.
func (r *Reconciler) UseAnimator(a Animator) {
	r.animator = a
}

// OnRemoved registers a hook called after an entity is removed.
func (r *Reconciler) OnRemoved(fn func(id entity.ID)) {
	r.onRemoved = append(r.onRemoved, fn)
}

// BeginFrame records the tick that direct position writes are stamped with.
func (r *Reconciler) BeginFrame(tick int64) {
	r.tick = tick
}

// Apply merges a sparse diff into the entity's metadata, creating the entity
// on first reference. Absent fields are left untouched.
func (r *Reconciler) Apply(id entity.ID, diff entity.Diff) error {
	rec, exists := r.records[id]
	if diff.Deleted {
		if exists {
			r.Remove(id)
		}
		r.recorder.DiffApplied()
		return nil
	}

	if !exists {
		rec = &record{node: r.graph.Create()}
		r.records[id] = rec
		r.order = append(r.order, id)
	}

	initializing := rec.md == nil
	if initializing {
		if diff.Revision == nil {
			r.recorder.DiffRejected("missing_revision")
			r.logger.Error("diff for uninitialized entity has no revision", log.Entity(uint64(id)))
			return &entity.MissingRevisionError{ID: id}
		}
		rec.md = entity.NewMetadata(r.cfg.DefaultSpeed)
	}
	md := rec.md

	if diff.Revision != nil {
		md.Revision = *diff.Revision
	}
	if diff.Animateable != nil {
		md.Animateable = *diff.Animateable
	}
	if diff.Movable != nil {
		md.Movable = *diff.Movable
		if md.Movable {
			// Take over from wherever interpolation left the node.
			if tr, ok := r.graph.Transform(rec.node); ok {
				md.Target = tr
			}
		}
	}
	if diff.Color != nil {
		md.Color = *diff.Color
		r.graph.SetColor(rec.node, md.Color)
	}
	if diff.Speed != nil {
		md.Speed = *diff.Speed
	}

	r.applyTransform(id, rec, diff, initializing)

	if diff.Action != nil {
		md.Action = *diff.Action
		r.animator.StartAction(id, md.Action.Type, md.Action.State)
	}

	if diff.AssetID != nil && (md.AssetID == nil || *md.AssetID != *diff.AssetID) {
		assetID := *diff.AssetID
		md.AssetID = &assetID
		r.requestLoad(id, rec, assetID)
	}

	r.recorder.DiffApplied()
	return nil
}

// applyTransform writes position and rotation to the node for movable
// entities and to the target otherwise. A freshly initialized entity is
// placed directly so it does not walk in from the origin.
func (r *Reconciler) applyTransform(id entity.ID, rec *record, diff entity.Diff, initializing bool) {
	md := rec.md
	direct := md.Movable || initializing

	if p := diff.Position; p != nil {
		current, _ := r.graph.Transform(rec.node)
		md.Target.Position = *p
		switch {
		case direct:
			r.graph.SetPosition(rec.node, *p)
			if md.Movable && current.Position != *p {
				md.LastTickMoved = r.tick
				r.walk(id, md)
			}
		case spatial.Distance(current.Position, *p) > r.cfg.WalkThreshold:
			r.walk(id, md)
		}
	}
	if q := diff.Rotation; q != nil {
		md.Target.Orientation = *q
		if direct {
			r.graph.SetOrientation(rec.node, *q)
		}
	}
	if s := diff.Scale; s != nil {
		md.Target.Scale = *s
		if direct {
			r.graph.SetScale(rec.node, *s)
		}
	}
	if up := diff.Up; up != nil {
		md.Target.Up = *up
		if direct {
			r.graph.SetUp(rec.node, *up)
		}
	}
}

// walk switches a translating entity to the looping walk action, resuming
// it if a stall paused it.
func (r *Reconciler) walk(id entity.ID, md *entity.Metadata) {
	md.Action = entity.Action{Type: entity.Walk, State: entity.LoopForever}
	r.animator.StartAction(id, entity.Walk, entity.LoopForever)
	r.animator.ResumeAction(id, entity.Walk)
}

func (r *Reconciler) requestLoad(id entity.ID, rec *record, assetID int) {
	r.epoch++
	rec.epoch = r.epoch
	epoch := r.epoch

	r.wg.Add(1)
	go func(done queue.Sender[loadResult]) {
		defer r.wg.Done()
		m, err := r.loader.Load(r.ctx, assetID)
		done.Push(loadResult{id: id, epoch: epoch, assetID: assetID, model: m, err: err})
	}(r.loads)
}

// DrainLoads applies every asset load that completed since the last call.
// Results superseded by a newer asset request, or for entities removed in
// the meantime, are discarded without touching any state.
func (r *Reconciler) DrainLoads() {
	for _, res := range r.loads.Drain() {
		rec, ok := r.records[res.id]
		if !ok || rec.epoch != res.epoch || rec.md == nil || rec.md.AssetID == nil || *rec.md.AssetID != res.assetID {
			r.recorder.AssetDiscarded()
			r.logger.Debug("discarding stale asset load",
				log.Entity(uint64(res.id)), log.Int("asset", res.assetID))
			continue
		}
		if res.err != nil {
			r.logger.Warn("asset load failed",
				log.Entity(uint64(res.id)), log.Int("asset", res.assetID), log.Error(res.err))
			continue
		}
		r.guard.Run("asset", res.id, func() {
			r.graph.Attach(rec.node, res.model)
			r.animator.Bind(res.id, res.model.Clips)
			// Metadata may have changed while the load was in flight.
			if md, ok := r.Metadata(res.id); ok {
				r.animator.StartAction(res.id, md.Action.Type, md.Action.State)
			}
		})
	}
}

// QueuedLoads counts completed loads waiting for DrainLoads.
func (r *Reconciler) QueuedLoads() int {
	return r.loads.Len()
}

// Remove destroys the entity, its scene node and its animation state, then
// runs the OnRemoved hooks so other owners release their resources.
func (r *Reconciler) Remove(id entity.ID) {
	rec, ok := r.records[id]
	if !ok {
		return
	}
	delete(r.records, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.graph.Remove(rec.node)
	r.animator.Unbind(id)
	for _, fn := range r.onRemoved {
		fn(id)
	}
}

// Metadata returns the metadata of an initialized entity.
func (r *Reconciler) Metadata(id entity.ID) (*entity.Metadata, bool) {
	rec, ok := r.records[id]
	if !ok || rec.md == nil {
		return nil, false
	}
	return rec.md, true
}

// Node returns the scene node of a known entity, initialized or not.
func (r *Reconciler) Node(id entity.ID) (scene.Node, bool) {
	rec, ok := r.records[id]
	if !ok {
		var none scene.Node
		return none, false
	}
	return rec.node, true
}

// Each visits initialized entities in creation order.
func (r *Reconciler) Each(fn func(id entity.ID, md *entity.Metadata, node scene.Node)) {
	for _, id := range r.order {
		if rec := r.records[id]; rec.md != nil {
			fn(id, rec.md, rec.node)
		}
	}
}

// Entities returns the ids of initialized entities in creation order.
func (r *Reconciler) Entities() []entity.ID {
	ids := make([]entity.ID, 0, len(r.order))
	r.Each(func(id entity.ID, _ *entity.Metadata, _ scene.Node) {
		ids = append(ids, id)
	})
	return ids
}

// Close cancels in-flight loads and waits for their goroutines.
func (r *Reconciler) Close() {
	r.cancel()
	r.wg.Wait()
}

type nopRecorder struct{}

func (nopRecorder) DiffApplied()        {}
func (nopRecorder) DiffRejected(string) {}
func (nopRecorder) AssetDiscarded()     {}

type nopAnimator struct{}

func (nopAnimator) Bind(entity.ID, map[string]*animation.Clip) *animation.Mixer { return nil }
func (nopAnimator) Unbind(entity.ID)                                          {}
func (nopAnimator) StartAction(entity.ID, entity.ActionType, int)             {}
func (nopAnimator) ResumeAction(entity.ID, entity.ActionType)                 {}
