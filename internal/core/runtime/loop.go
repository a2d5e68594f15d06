package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

// Loop drives Render from a ticker. The tick counter is incremented once per
// scheduled frame.
type Loop struct {
	rt       *Runtime
	interval time.Duration
	logger   log.Log

	tick    int64
	active  atomic.Uint64
	stopped atomic.Bool
}

// NewLoop creates a loop rendering at rate frames per second.
func NewLoop(rt *Runtime, rate float64, logger log.Log) *Loop {
	if rate <= 0 {
		rate = 60
	}
	return &Loop{
		rt:       rt,
		interval: time.Duration(float64(time.Second) / rate),
		logger:   logger.With(log.String("component", "loop")),
	}
}

// SetActive selects the locally controlled entity. Zero means none.
func (l *Loop) SetActive(id entity.ID) {
	l.active.Store(uint64(id))
}

func (l *Loop) Active() entity.ID {
	return entity.ID(l.active.Load())
}

// Tick returns the last rendered tick.
func (l *Loop) Tick() int64 {
	return atomic.LoadInt64(&l.tick)
}

// Stop makes the loop return before scheduling its next frame. In-flight
// asset loads are not cancelled.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Run renders frames until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		if l.stopped.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			l.frame(dt)
		}
	}
}

// frame renders one tick. A panic escaping the pipeline is logged and the
// loop keeps going.
func (l *Loop) frame(dt float64) {
	tick := atomic.AddInt64(&l.tick, 1)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("frame panicked", log.Int64("tick", tick), log.Any("panic", r))
			l.rt.metrics.Fault("frame")
		}
	}()
	l.rt.Render(tick, dt, nil, l.Active())
}
