// Package fault contains panics raised while processing a single entity so
// the rest of the frame keeps running.
package fault

import (
	"errors"
	"fmt"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

// ErrPanicked reports work abandoned because it panicked.
var ErrPanicked = errors.New("entity processing panicked")

// Recorder counts contained faults by pipeline stage.
type Recorder interface {
	Fault(stage string)
}

type Guard struct {
	logger   log.Log
	recorder Recorder
}

// NewGuard returns a guard that logs through logger. recorder may be nil.
func NewGuard(logger log.Log, recorder Recorder) *Guard {
	return &Guard{logger: logger, recorder: recorder}
}

// Run calls fn and recovers any panic it raises. It reports whether fn
// completed normally.
func (g *Guard) Run(stage string, id entity.ID, fn func()) (ok bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ok = false
		if g == nil {
			return
		}
		g.logger.Error("entity processing panicked",
			log.String("stage", stage),
			log.Entity(uint64(id)),
			log.String("panic", fmt.Sprint(r)),
		)
		if g.recorder != nil {
			g.recorder.Fault(stage)
		}
	}()
	fn()
	return true
}
