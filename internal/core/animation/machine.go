package animation

import (
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/fault"
	"github.com/zeusync/replica/internal/core/observability/log"
)

// DefaultCrossfade is the fade window between two actions, in seconds.
const DefaultCrossfade = 0.3

// MetadataSource resolves an entity's current metadata. The machine reads it
// on every call and never caches it.
type MetadataSource interface {
	Metadata(id entity.ID) (*entity.Metadata, bool)
}

type binding struct {
	mixer *Mixer
	clips map[string]*Clip
	fades int
}

// Machine is the per-entity animation action state machine. Entities without
// a bound mixer ignore every action call until their asset resolves.
type Machine struct {
	source    MetadataSource
	crossfade float64
	bindings  map[entity.ID]*binding
	guard     *fault.Guard
	logger    log.Log
}

// NewMachine builds a machine. guard contains panics raised while advancing a
// single entity's mixer and may be nil.
func NewMachine(source MetadataSource, crossfade float64, guard *fault.Guard, logger log.Log) *Machine {
	if crossfade < 0 {
		crossfade = DefaultCrossfade
	}
	return &Machine{
		source:    source,
		crossfade: crossfade,
		bindings:  make(map[entity.ID]*binding),
		guard:     guard,
		logger:    logger.With(log.String("component", "animation")),
	}
}

// Bind attaches a fresh mixer for the clips of a newly resolved asset,
// replacing any previous binding.
func (m *Machine) Bind(id entity.ID, clips map[string]*Clip) *Mixer {
	if prev, ok := m.bindings[id]; ok {
		prev.mixer.StopAll()
	}
	b := &binding{mixer: NewMixer(), clips: clips}
	m.bindings[id] = b
	if md, ok := m.source.Metadata(id); ok {
		md.Playing = nil
	}
	return b.mixer
}

// Unbind stops and forgets the entity's mixer.
func (m *Machine) Unbind(id entity.ID) {
	if b, ok := m.bindings[id]; ok {
		b.mixer.StopAll()
		delete(m.bindings, id)
	}
}

func (m *Machine) Bound(id entity.ID) bool {
	_, ok := m.bindings[id]
	return ok
}

// StartAction switches the entity to the requested action. Requesting the
// clip that is already playing does nothing; anything else crossfades from
// the previous action.
func (m *Machine) StartAction(id entity.ID, typ entity.ActionType, state int) {
	b, ok := m.bindings[id]
	if !ok {
		return
	}
	md, ok := m.source.Metadata(id)
	if !ok {
		return
	}
	m.resync(md, b)

	var prev *ClipAction
	if md.Playing != nil && md.Playing.Clip != "" {
		prev, _ = b.mixer.ExistingAction(md.Playing.Clip)
	}

	name := typ.Clip()
	if name == "" {
		if prev != nil {
			prev.FadeOut(m.crossfade)
			b.fades++
		}
		md.Playing = &entity.Playing{Type: typ}
		return
	}

	clip, ok := b.clips[name]
	if !ok {
		m.logger.Debug("asset has no clip for action",
			log.Entity(uint64(id)), log.String("action", typ.String()))
		return
	}

	if prev != nil && prev.clip == clip && !prev.Finished() {
		return
	}

	next := b.mixer.ClipAction(clip)
	next.Reset()
	if state > 0 {
		next.SetLoop(LoopRepeat, state)
		next.ClampWhenFinished = true
	} else {
		next.SetLoop(LoopRepeat, 0)
		next.ClampWhenFinished = false
	}
	if prev != nil && prev != next {
		prev.FadeOut(m.crossfade)
	}
	next.FadeIn(m.crossfade).Play()
	b.fades++

	md.Playing = &entity.Playing{Type: typ, Clip: name}
}

// PauseAction freezes the play head of the action's clip, if it is running.
func (m *Machine) PauseAction(id entity.ID, typ entity.ActionType) {
	if a := m.action(id, typ); a != nil {
		a.Paused = true
	}
}

// ResumeAction continues a paused action from where it stopped.
func (m *Machine) ResumeAction(id entity.ID, typ entity.ActionType) {
	if a := m.action(id, typ); a != nil {
		a.Paused = false
	}
}

// Advance moves every bound mixer of an animateable entity forward by dt
// seconds and resynchronizes Playing with what the mixer is actually running.
// A panic in one entity's mixer leaves the others advancing.
func (m *Machine) Advance(dt float64) {
	for id, b := range m.bindings {
		m.guard.Run("animation", id, func() {
			md, ok := m.source.Metadata(id)
			if ok && !md.Animateable {
				return
			}
			b.mixer.Update(dt)
			if ok {
				m.resync(md, b)
			}
		})
	}
}

// Playing returns what the entity's mixer is running, or nil.
func (m *Machine) Playing(id entity.ID) *entity.Playing {
	md, ok := m.source.Metadata(id)
	if !ok {
		return nil
	}
	if b, ok := m.bindings[id]; ok {
		m.resync(md, b)
	}
	return md.Playing
}

// Fades counts the crossfades started for the entity since it was bound.
func (m *Machine) Fades(id entity.ID) int {
	if b, ok := m.bindings[id]; ok {
		return b.fades
	}
	return 0
}

func (m *Machine) Mixer(id entity.ID) (*Mixer, bool) {
	b, ok := m.bindings[id]
	if !ok {
		return nil, false
	}
	return b.mixer, true
}

func (m *Machine) action(id entity.ID, typ entity.ActionType) *ClipAction {
	b, ok := m.bindings[id]
	if !ok {
		return nil
	}
	a, ok := b.mixer.ExistingAction(typ.Clip())
	if !ok || !a.IsRunning() {
		return nil
	}
	return a
}

// resync makes md.Playing mirror the mixer's active clip.
func (m *Machine) resync(md *entity.Metadata, b *binding) {
	active := b.mixer.ActiveClip()
	switch {
	case active == nil:
		if md.Playing != nil && md.Playing.Clip != "" {
			md.Playing = nil
		}
	case md.Playing == nil || md.Playing.Clip != active.Name:
		typ := entity.Static
		for t := entity.Static; t <= entity.Sit; t++ {
			if t.Clip() == active.Name {
				typ = t
				break
			}
		}
		md.Playing = &entity.Playing{Type: typ, Clip: active.Name}
	}
}
