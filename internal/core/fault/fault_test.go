package fault

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zeusync/replica/internal/core/observability/log"
)

type countingRecorder map[string]int

func (c countingRecorder) Fault(stage string) { c[stage]++ }

func TestGuard(t *testing.T) {
	rec := countingRecorder{}
	g := NewGuard(log.NewNop(), rec)

	ran := false
	assert.True(t, g.Run("motion", 1, func() { ran = true }))
	assert.True(t, ran)

	assert.False(t, g.Run("motion", 2, func() { panic("bad entity") }))
	assert.False(t, g.Run("animation", 3, func() {
		var m map[string]int
		m["x"] = 1
	}))
	assert.Equal(t, 1, rec["motion"])
	assert.Equal(t, 1, rec["animation"])

	var nilGuard *Guard
	assert.False(t, nilGuard.Run("motion", 4, func() { panic("still contained") }))
}
