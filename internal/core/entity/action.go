package entity

import (
	"fmt"
	"strings"
)

// LoopForever is the action state that repeats a clip indefinitely.
const LoopForever = -1

// ActionType selects an animation action.
type ActionType uint8

const (
	Static ActionType = iota
	Idle
	Walk
	Wave
	Dance
	Clap
	Jump
	Sit
)

var actionNames = [...]string{
	Static: "STATIC",
	Idle:   "IDLE",
	Walk:   "WALK",
	Wave:   "WAVE",
	Dance:  "DANCE",
	Clap:   "CLAP",
	Jump:   "JUMP",
	Sit:    "SIT",
}

func (a ActionType) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("ActionType(%d)", uint8(a))
}

// Clip is the clip name an asset stores this action under. Static has none.
func (a ActionType) Clip() string {
	if a == Static || int(a) >= len(actionNames) {
		return ""
	}
	return strings.ToLower(actionNames[a])
}

// ParseActionType resolves an action name, case-insensitively.
func ParseActionType(s string) (ActionType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range actionNames {
		if n == name {
			return ActionType(i), nil
		}
	}
	return Static, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Action is a requested animation: which action and how many times to play
// it. State > 0 plays that many times and holds the last frame; LoopForever
// (or zero) repeats.
type Action struct {
	Type  ActionType
	State int
}

// Finite reports whether the action stops after State repetitions.
func (a Action) Finite() bool {
	return a.State > 0
}
