// Package animation is a headless clip mixer and the per-entity action state
// machine that drives it.
package animation

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Clip is a named animation of fixed length, in seconds.
type Clip struct {
	Name     string
	Duration float64
}

type LoopMode uint8

const (
	// LoopRepeat plays the clip Repetitions times, or forever when Repetitions <= 0.
	LoopRepeat LoopMode = iota
	// LoopOnce plays the clip a single time.
	LoopOnce
)

// ClipAction is the playback state of one clip on one mixer.
type ClipAction struct {
	clip  *Clip
	mixer *Mixer

	loop        LoopMode
	repetitions int
	// ClampWhenFinished holds the last frame once the final repetition ends
	// instead of stopping the action.
	ClampWhenFinished bool
	// Paused freezes the play head. Fades keep running.
	Paused bool

	running   bool
	finished  bool
	time      float64
	loopCount int

	weight    float64
	fade      *gween.Tween
	fadingOut bool
	playSeq   uint64
}

func (a *ClipAction) Clip() *Clip {
	return a.clip
}

// Play starts the action if it is not already running.
func (a *ClipAction) Play() *ClipAction {
	if !a.running {
		a.running = true
		if a.fade == nil && a.weight == 0 {
			a.weight = 1
		}
	}
	a.mixer.seq++
	a.playSeq = a.mixer.seq
	return a
}

// Stop halts the action immediately and rewinds it.
func (a *ClipAction) Stop() *ClipAction {
	a.running = false
	a.fade = nil
	a.fadingOut = false
	a.weight = 0
	return a.Reset()
}

// Reset rewinds the play head and clears pause and finish state.
func (a *ClipAction) Reset() *ClipAction {
	a.time = 0
	a.loopCount = 0
	a.finished = false
	a.Paused = false
	return a
}

// SetLoop sets the loop mode. Repetitions <= 0 with LoopRepeat loops forever.
func (a *ClipAction) SetLoop(mode LoopMode, repetitions int) *ClipAction {
	a.loop = mode
	a.repetitions = repetitions
	return a
}

// FadeIn ramps the weight from 0 to 1 over d seconds.
func (a *ClipAction) FadeIn(d float64) *ClipAction {
	a.fadingOut = false
	if d <= 0 {
		a.fade = nil
		a.weight = 1
		return a
	}
	a.weight = 0
	a.fade = gween.New(0, 1, float32(d), ease.Linear)
	return a
}

// FadeOut ramps the weight from its current value to 0 over d seconds and
// then stops the action.
func (a *ClipAction) FadeOut(d float64) *ClipAction {
	if !a.running {
		return a
	}
	if d <= 0 {
		return a.Stop()
	}
	a.fadingOut = true
	a.fade = gween.New(float32(a.weight), 0, float32(d), ease.Linear)
	return a
}

func (a *ClipAction) Time() float64 {
	return a.time
}

func (a *ClipAction) Weight() float64 {
	return a.weight
}

func (a *ClipAction) IsRunning() bool {
	return a.running
}

func (a *ClipAction) IsFading() bool {
	return a.fade != nil
}

// Finished reports whether a finite action has played all its repetitions.
func (a *ClipAction) Finished() bool {
	return a.finished
}

func (a *ClipAction) update(dt float64) {
	if !a.running {
		return
	}

	if a.fade != nil {
		w, done := a.fade.Update(float32(dt))
		a.weight = float64(w)
		if done {
			a.fade = nil
			if a.fadingOut {
				a.Stop()
				return
			}
		}
	}

	if a.Paused || a.finished {
		return
	}

	a.time += dt
	d := a.clip.Duration
	if d <= 0 {
		return
	}
	if a.time < d {
		return
	}

	// A large dt against a short clip completes many loops in one step.
	loops := math.Floor(a.time / d)
	limit := math.Inf(1)
	switch {
	case a.loop == LoopOnce:
		limit = 1
	case a.repetitions > 0:
		limit = float64(a.repetitions)
	}
	total := float64(a.loopCount) + loops
	if total >= limit {
		a.loopCount = int(limit)
		a.finish()
		return
	}
	a.loopCount = int(math.Min(total, math.MaxInt32))
	a.time = math.Mod(a.time, d)
}

func (a *ClipAction) finish() {
	a.finished = true
	if a.ClampWhenFinished {
		a.time = a.clip.Duration
		return
	}
	a.running = false
	a.time = 0
	a.weight = 0
	a.fade = nil
	a.fadingOut = false
}

// Mixer owns the clip actions of one animated node.
type Mixer struct {
	actions map[string]*ClipAction
	seq     uint64
}

func NewMixer() *Mixer {
	return &Mixer{actions: make(map[string]*ClipAction)}
}

// ClipAction returns the action for clip, creating it on first use. The same
// clip always maps to the same action.
func (m *Mixer) ClipAction(clip *Clip) *ClipAction {
	if a, ok := m.actions[clip.Name]; ok {
		return a
	}
	a := &ClipAction{clip: clip, mixer: m, loop: LoopRepeat}
	m.actions[clip.Name] = a
	return a
}

// ExistingAction returns the action for a clip name without creating it.
func (m *Mixer) ExistingAction(name string) (*ClipAction, bool) {
	a, ok := m.actions[name]
	return a, ok
}

// Update advances every running action by dt seconds.
func (m *Mixer) Update(dt float64) {
	for _, a := range m.actions {
		a.update(dt)
	}
}

// ActiveClip returns the clip of the most recently played action that is
// still running and not fading out, or nil.
func (m *Mixer) ActiveClip() *Clip {
	var active *ClipAction
	for _, a := range m.actions {
		if !a.running || a.fadingOut {
			continue
		}
		if active == nil || a.playSeq > active.playSeq {
			active = a
		}
	}
	if active == nil {
		return nil
	}
	return active.clip
}

func (m *Mixer) StopAll() {
	for _, a := range m.actions {
		a.Stop()
	}
}
