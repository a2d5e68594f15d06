package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level Level) (*Logger, *observer.ObservedLogs) {
	atomicLevel := zap.NewAtomicLevelAt(toZapLevel(level))
	core, logs := observer.New(atomicLevel)
	return &Logger{zapLogger: zap.New(core), zapLevel: atomicLevel}, logs
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger(t *testing.T) {
	t.Run("Fields", func(t *testing.T) {
		l, logs := observed(LevelDebug)
		l.With(String("component", "reconciler")).Warn("asset load failed",
			Entity(7), Int("asset", 3), Error(errors.New("boom")))

		entries := logs.All()
		require.Len(t, entries, 1)
		ctx := entries[0].ContextMap()
		assert.Equal(t, "reconciler", ctx["component"])
		assert.Equal(t, uint64(7), ctx["entity"])
		assert.Equal(t, int64(3), ctx["asset"])
		assert.Equal(t, "boom", ctx["error"])
	})

	t.Run("Level Shared With Children", func(t *testing.T) {
		l, logs := observed(LevelInfo)
		child := l.With(String("component", "motion"))

		child.Debug("hidden")
		require.Equal(t, 0, logs.Len())

		l.SetLevel(LevelDebug)
		child.Debug("visible")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, LevelDebug, child.GetLevel())
	})

	t.Run("Log Respects Level", func(t *testing.T) {
		l, logs := observed(LevelWarn)
		l.Log(LevelInfo, "dropped")
		l.Log(LevelError, "kept")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "kept", logs.All()[0].Message)
	})

	t.Run("Nop", func(t *testing.T) {
		NewNop().Error("nothing", Error(nil))
		assert.NotNil(t, Provide())
	})
}
