// Package runtime wires the replication components into the per-frame
// pipeline and exposes the entry points used by the host: Render, Pose and
// the network-facing diff operations.
package runtime

import (
	"errors"
	"slices"
	"time"

	"github.com/zeusync/replica/internal/core/animation"
	"github.com/zeusync/replica/internal/core/asset"
	"github.com/zeusync/replica/internal/core/audio"
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/events/bus"
	"github.com/zeusync/replica/internal/core/events/queue"
	"github.com/zeusync/replica/internal/core/fault"
	"github.com/zeusync/replica/internal/core/input"
	"github.com/zeusync/replica/internal/core/motion"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
	"github.com/zeusync/replica/internal/core/reconcile"
	"github.com/zeusync/replica/internal/core/scene"
	"github.com/zeusync/replica/internal/core/spatial"
	"github.com/zeusync/replica/internal/core/tween"
)

type Config struct {
	Motion    motion.Config
	Reconcile reconcile.Config
	Audio     audio.Config
	// Crossfade is the animation fade window in seconds.
	Crossfade float64
	// SendRate is the outbound flush rate in messages per second.
	SendRate float64
}

func DefaultConfig() Config {
	return Config{
		Motion:    motion.DefaultConfig(),
		Reconcile: reconcile.DefaultConfig(),
		Audio:     audio.DefaultConfig(),
		Crossfade: animation.DefaultCrossfade,
		SendRate:  10,
	}
}

// inbound is an update waiting for the next frame. echo marks updates for
// the entity the host excluded when the batch was decoded.
type inbound struct {
	update entity.Update
	echo   bool
}

// TouchedFunc observes the entities whose pose changed in a frame.
type TouchedFunc func(tick int64, touched *motion.Touched)

// Runtime is the client-side replication runtime. Render and ApplyDiff must
// be called from a single frame goroutine; ApplySerializedDiff may be called
// from any goroutine and takes effect on the next frame.
type Runtime struct {
	cfg     Config
	logger  log.Log
	metrics *metrics.Frame
	guard   *fault.Guard

	graph      *scene.Graph
	reconciler *reconcile.Reconciler
	machine    *animation.Machine
	motion     *motion.Engine
	tweens     *tween.Scheduler
	audio      *audio.Environment
	controller *input.Controller
	throttle   *input.Throttle
	codec      codec.Codec

	updates *queue.Queue[inbound]
	tasks   *queue.Queue[func()]
	stopped bus.Bus[motion.Stopped]

	onTouched []TouchedFunc

	active    entity.ID
	hasActive bool
	// claimed is set once the active entity has been made movable locally.
	claimed bool
}

// New builds a runtime. sender may be nil, in which case local updates are
// applied but never sent.
func New(cfg Config, loader asset.Loader, c codec.Codec, sender input.Sender, frame *metrics.Frame, logger log.Log) (*Runtime, error) {
	if frame == nil {
		var err error
		if frame, err = metrics.NewFrame(); err != nil {
			return nil, err
		}
	}
	if c == nil {
		c = &codec.JSONCodec{}
	}

	rt := &Runtime{
		cfg:     cfg,
		logger:  logger.With(log.String("component", "runtime")),
		metrics: frame,
		graph:   scene.NewGraph(),
		codec:   c,
		updates: queue.New[inbound](),
		tasks:   queue.New[func()](),
		stopped: bus.New[motion.Stopped](),
	}
	rt.guard = fault.NewGuard(rt.logger, frame)

	rt.reconciler = reconcile.New(cfg.Reconcile, rt.graph, loader, frame, rt.guard, logger)
	rt.machine = animation.NewMachine(rt.reconciler, cfg.Crossfade, rt.guard, logger)
	rt.reconciler.UseAnimator(rt.machine)
	rt.motion = motion.NewEngine(cfg.Motion, rt.reconciler, rt.graph, rt.stopped, rt.guard, logger)
	rt.tweens = tween.NewScheduler(rt.graph)
	rt.audio = audio.NewEnvironment(cfg.Audio, logger)
	rt.reconciler.OnRemoved(rt.audio.Unregister)

	var sink input.Sink
	if sender != nil {
		rt.throttle = input.NewThrottle(sender, cfg.SendRate, logger)
		sink = rt.throttle
	}
	rt.controller = input.NewController(rt.reconciler, rt.Pose, sink, logger)

	rt.stopped.Subscribe(rt.onStopped)
	return rt, nil
}

// onStopped turns a stop notification into an idle action diff for the next
// frame. The local entity's idle is also sent to peers.
func (rt *Runtime) onStopped(ev motion.Stopped) error {
	md, ok := rt.reconciler.Metadata(ev.ID)
	if !ok || md.Action.Type != entity.Walk {
		return nil
	}
	update := entity.Update{
		ID:   ev.ID,
		Diff: entity.Diff{Action: &entity.Action{Type: entity.Idle, State: entity.LoopForever}},
	}
	rt.updates.Push(inbound{update: update})
	if rt.hasActive && ev.ID == rt.active && rt.throttle != nil {
		rt.throttle.Push(update)
	}
	return nil
}

// OnTouched registers a callback run at the end of every frame.
func (rt *Runtime) OnTouched(fn TouchedFunc) {
	rt.onTouched = append(rt.onTouched, fn)
}

// Render runs one frame: tick bookkeeping, pending loads and diffs, local
// input, interpolation, animation and audio, in that order.
func (rt *Runtime) Render(tick int64, dt float64, batch []entity.Update, active entity.ID) {
	start := time.Now()

	rt.reconciler.BeginFrame(tick)
	rt.setActive(active)

	rt.reconciler.DrainLoads()
	for _, fn := range rt.tasks.Drain() {
		rt.guard.Run("task", 0, fn)
	}
	for _, in := range rt.updates.Drain() {
		if in.echo && rt.isEcho(in.update) {
			continue
		}
		rt.apply(in.update)
	}
	for _, u := range batch {
		rt.apply(u)
	}
	rt.claimActive()

	if rt.hasActive {
		rt.guard.Run("input", rt.active, func() {
			rt.controller.Step(rt.active, dt)
		})
	}

	touched := rt.motion.Step(tick, dt)

	rt.advanceAnimation(tick, dt)
	rt.tweens.Advance(dt)

	rt.syncAudio(touched)

	for _, fn := range rt.onTouched {
		fn(tick, touched)
	}

	rt.metrics.Rendered(float64(time.Since(start).Microseconds())/1000, touched.Len())
}

func (rt *Runtime) apply(u entity.Update) {
	rt.guard.Run("reconcile", u.ID, func() {
		if err := rt.reconciler.Apply(u.ID, u.Diff); err != nil {
			rt.logger.Warn("diff rejected", log.Entity(uint64(u.ID)), log.Error(err))
		}
	})
}

// isEcho reports whether an update for the excluded entity only repeats
// state the client already owns. Spawns and deletes always pass.
func (rt *Runtime) isEcho(u entity.Update) bool {
	if u.Diff.Deleted {
		return false
	}
	_, ok := rt.reconciler.Metadata(u.ID)
	return ok
}

func (rt *Runtime) setActive(id entity.ID) {
	if rt.hasActive && rt.active == id {
		return
	}
	if rt.hasActive && rt.claimed {
		if _, ok := rt.reconciler.Metadata(rt.active); ok {
			_ = rt.reconciler.Apply(rt.active, entity.Diff{Movable: entity.Ptr(false)})
		}
	}
	rt.active = id
	rt.hasActive = id != 0
	rt.claimed = false
}

// claimActive makes the active entity movable once its metadata exists.
func (rt *Runtime) claimActive() {
	if !rt.hasActive || rt.claimed {
		return
	}
	if _, ok := rt.reconciler.Metadata(rt.active); !ok {
		return
	}
	if err := rt.reconciler.Apply(rt.active, entity.Diff{Movable: entity.Ptr(true)}); err == nil {
		rt.claimed = true
	}
}

// advanceAnimation freezes WALK on entities that did not move this tick,
// resumes it on those that did, then advances the mixers.
func (rt *Runtime) advanceAnimation(tick int64, dt float64) {
	rt.reconciler.Each(func(id entity.ID, md *entity.Metadata, _ scene.Node) {
		if !md.Animateable || md.Playing == nil || md.Playing.Type != entity.Walk {
			return
		}
		rt.guard.Run("animation", id, func() {
			if md.LastTickMoved == tick {
				rt.machine.ResumeAction(id, entity.Walk)
			} else {
				rt.machine.PauseAction(id, entity.Walk)
			}
		})
	})
	rt.machine.Advance(dt)
}

func (rt *Runtime) syncAudio(touched *motion.Touched) {
	if !rt.hasActive {
		return
	}
	listener, ok := rt.Pose(rt.active)
	if !ok {
		return
	}
	rt.guard.Run("audio", rt.active, func() {
		rt.audio.Sync(listener, touched.Has(rt.active), touched.IDs(), rt.Pose)
	})
}

// Pose returns the rendered pose of an entity, or false if it is unknown.
func (rt *Runtime) Pose(id entity.ID) (spatial.Pose, bool) {
	node, ok := rt.reconciler.Node(id)
	if !ok {
		return spatial.Pose{}, false
	}
	tr, ok := rt.graph.Transform(node)
	if !ok {
		return spatial.Pose{}, false
	}
	return tr.Pose(), true
}

// ApplyDiff applies a full snapshot in entity order. Every entity is
// attempted; failures are joined.
func (rt *Runtime) ApplyDiff(snapshot entity.Snapshot) error {
	ids := make([]entity.ID, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var errs []error
	for _, id := range ids {
		diff := snapshot[id]
		ok := rt.guard.Run("reconcile", id, func() {
			if err := rt.reconciler.Apply(id, diff); err != nil {
				errs = append(errs, err)
			}
		})
		if !ok {
			errs = append(errs, fault.ErrPanicked)
		}
	}
	return errors.Join(errs...)
}

// ApplySerializedDiff decodes an incremental update and queues it for the
// next frame. Updates for exclude are dropped once that entity exists
// locally, unless they delete it, so the locally predicted entity ignores
// echoes of its own state. Updates with undecodable fields keep their other
// fields and do not hold back the rest of the batch.
func (rt *Runtime) ApplySerializedDiff(raw []byte, exclude entity.ID) error {
	updates, err := rt.codec.Decode(raw)
	if err != nil {
		var bad codec.UpdateErrors
		if updates == nil || !errors.As(err, &bad) {
			rt.metrics.DiffRejected("decode")
			return err
		}
		for _, ue := range bad {
			rt.metrics.DiffRejected("field")
			rt.logger.Warn("dropping undecodable field", log.Entity(uint64(ue.ID)), log.Error(ue.Err))
		}
	}
	pending := make([]inbound, len(updates))
	for i, u := range updates {
		pending[i] = inbound{update: u, echo: exclude != 0 && u.ID == exclude}
	}
	rt.updates.Push(pending...)
	return nil
}

// Do runs fn on the frame goroutine at the start of the next frame, before
// queued diffs are applied. Input handlers use it to touch frame-owned state.
func (rt *Runtime) Do(fn func()) {
	rt.tasks.Push(fn)
}

// Act starts an action on the active entity and sends it to peers.
func (rt *Runtime) Act(action entity.Action) {
	rt.Do(func() {
		if !rt.hasActive {
			return
		}
		update := entity.Update{ID: rt.active, Diff: entity.Diff{Action: &action}}
		rt.apply(update)
		if rt.throttle != nil {
			rt.throttle.Push(update)
		}
	})
}

// Queued reports updates waiting for the next frame.
func (rt *Runtime) Queued() int {
	return rt.updates.Len()
}

func (rt *Runtime) Graph() *scene.Graph                     { return rt.graph }
func (rt *Runtime) Reconciler() *reconcile.Reconciler       { return rt.reconciler }
func (rt *Runtime) Animation() *animation.Machine           { return rt.machine }
func (rt *Runtime) Tweens() *tween.Scheduler                { return rt.tweens }
func (rt *Runtime) Audio() *audio.Environment               { return rt.audio }
func (rt *Runtime) Input() *input.Controller                { return rt.controller }
func (rt *Runtime) Stopped() bus.Subscriber[motion.Stopped] { return rt.stopped }

// Throttle returns the outbound throttle, or nil without a sender.
func (rt *Runtime) Throttle() *input.Throttle {
	return rt.throttle
}

// Close cancels in-flight asset loads.
func (rt *Runtime) Close() {
	rt.reconciler.Close()
}
