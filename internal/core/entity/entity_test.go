package entity

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffMerge(t *testing.T) {
	t.Run("Later Fields Win", func(t *testing.T) {
		first := Diff{Position: Ptr(mgl64.Vec3{1, 0, 0}), Color: Ptr(uint32(0xff0000))}
		second := Diff{Position: Ptr(mgl64.Vec3{2, 0, 0}), Speed: Ptr(3.0)}

		merged := first.Merge(second)
		require.NotNil(t, merged.Position)
		assert.Equal(t, mgl64.Vec3{2, 0, 0}, *merged.Position)
		assert.Equal(t, uint32(0xff0000), *merged.Color)
		assert.Equal(t, 3.0, *merged.Speed)
		assert.Nil(t, merged.Action)
	})

	t.Run("Deletion Absorbs", func(t *testing.T) {
		merged := Diff{Color: Ptr(uint32(1))}.Merge(Diff{Deleted: true})
		assert.True(t, merged.Deleted)
		assert.Nil(t, merged.Color)

		after := merged.Merge(Diff{Color: Ptr(uint32(2))})
		assert.True(t, after.Deleted)
		assert.Nil(t, after.Color)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.True(t, Diff{}.IsEmpty())
		assert.False(t, Diff{Deleted: true}.IsEmpty())
		assert.True(t, Diff{}.Merge(Diff{}).IsEmpty())
	})
}

func TestActionType(t *testing.T) {
	for _, a := range []ActionType{Static, Idle, Walk, Wave, Dance, Clap, Jump, Sit} {
		parsed, err := ParseActionType(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	parsed, err := ParseActionType(" walk ")
	require.NoError(t, err)
	assert.Equal(t, Walk, parsed)
	assert.Equal(t, "walk", Walk.Clip())
	assert.Empty(t, Static.Clip())

	_, err = ParseActionType("moonwalk")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, "ActionType(42)", ActionType(42).String())

	assert.True(t, Action{Type: Wave, State: 2}.Finite())
	assert.False(t, Action{Type: Walk, State: LoopForever}.Finite())
}

func TestMissingRevisionError(t *testing.T) {
	var err error = &MissingRevisionError{ID: 9}
	assert.True(t, errors.Is(err, ErrMissingRevision))

	var target *MissingRevisionError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, ID(9), target.ID)
	assert.Contains(t, err.Error(), "entity 9")
}

func TestNewMetadata(t *testing.T) {
	md := NewMetadata(2)
	assert.True(t, md.Animateable)
	assert.False(t, md.Movable)
	assert.Equal(t, NeverMoved, md.LastTickMoved)
	assert.Equal(t, 2.0, md.Speed)
	assert.Nil(t, md.AssetID)
	assert.Nil(t, md.Playing)
}
