package input

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

// Sender delivers a local update to the network.
type Sender interface {
	SendLocalUpdate(ctx context.Context, update entity.Update) error
}

// Throttle coalesces local updates and sends at most one message per entity
// per interval, regardless of the frame rate.
type Throttle struct {
	sender   Sender
	interval time.Duration
	logger   log.Log

	mx       sync.Mutex
	pending  map[entity.ID]entity.Diff
	order    []entity.ID
	revision int64
}

var _ Sink = (*Throttle)(nil)

// NewThrottle sends through sender at rate flushes per second.
func NewThrottle(sender Sender, rate float64, logger log.Log) *Throttle {
	interval := time.Second / 10
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	}
	return &Throttle{
		sender:   sender,
		interval: interval,
		logger:   logger.With(log.String("component", "throttle")),
		pending:  make(map[entity.ID]entity.Diff),
	}
}

func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Push merges an update into the pending set. Later fields overwrite earlier
// ones.
func (t *Throttle) Push(update entity.Update) {
	t.mx.Lock()
	defer t.mx.Unlock()
	prev, ok := t.pending[update.ID]
	if !ok {
		t.order = append(t.order, update.ID)
	}
	t.pending[update.ID] = prev.Merge(update.Diff)
}

// Pending returns the number of entities with unsent changes.
func (t *Throttle) Pending() int {
	t.mx.Lock()
	defer t.mx.Unlock()
	return len(t.order)
}

// Flush sends everything pending, stamping each message with the next local
// revision.
func (t *Throttle) Flush(ctx context.Context) error {
	t.mx.Lock()
	if len(t.order) == 0 {
		t.mx.Unlock()
		return nil
	}
	updates := make([]entity.Update, 0, len(t.order))
	for _, id := range t.order {
		t.revision++
		rev := t.revision
		diff := t.pending[id]
		diff.Revision = &rev
		updates = append(updates, entity.Update{ID: id, Diff: diff})
	}
	t.pending = make(map[entity.ID]entity.Diff)
	t.order = nil
	t.mx.Unlock()

	var errs []error
	for _, u := range updates {
		if err := t.sender.SendLocalUpdate(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run flushes on every interval until ctx is done, then flushes once more.
func (t *Throttle) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := t.Flush(context.WithoutCancel(ctx)); err != nil {
				t.logger.Warn("final flush failed", log.Error(err))
			}
			return nil
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				t.logger.Warn("sending local update failed", log.Error(err))
			}
		}
	}
}
