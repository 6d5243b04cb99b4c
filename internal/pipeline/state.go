package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// State is a pipeline state.
type State int

const (
	StateInitializing State = iota
	StateBuildingStructure
	StateApplyingTheme
	StateGeneratingContent
	StateBuildingSite
	StatePackaging
	StateComplete
	StateFailed
)

var stateNames = [...]string{
	StateInitializing:      "INITIALIZING",
	StateBuildingStructure: "BUILDING_STRUCTURE",
	StateApplyingTheme:     "APPLYING_THEME",
	StateGeneratingContent: "GENERATING_CONTENT",
	StateBuildingSite:      "BUILDING_SITE",
	StatePackaging:         "PACKAGING",
	StateComplete:          "COMPLETE",
	StateFailed:            "FAILED",
}

// progress percentage reported on entering a state; FAILED keeps the last value
var statePercent = [...]int{
	StateInitializing:      5,
	StateBuildingStructure: 15,
	StateApplyingTheme:     30,
	StateGeneratingContent: 50,
	StateBuildingSite:      75,
	StatePackaging:         90,
	StateComplete:          100,
	StateFailed:            -1,
}

// ErrIllegalTransition is returned for transitions the state machine forbids.
var ErrIllegalTransition = errors.New("illegal state transition")

func (s State) valid() bool { return s >= StateInitializing && s <= StateFailed }

func (s State) String() string {
	if !s.valid() {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Percent is the progress shown while in s. It is -1 for FAILED.
func (s State) Percent() int {
	if !s.valid() {
		return -1
	}
	return statePercent[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }

// Next returns the successor of a non-terminal state.
func (s State) Next() (State, bool) {
	if !s.valid() || s.Terminal() {
		return s, false
	}
	return s + 1, true
}

// CanTransition reports whether from -> to is allowed: the direct successor,
// or FAILED from any non-terminal state.
func CanTransition(from, to State) bool {
	if !from.valid() || !to.valid() || from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	next, _ := from.Next()
	return to == next
}

// ParseState parses the String form of a state.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pipeline state %q", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid pipeline state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// machine tracks the current state and the last reported percentage.
type machine struct {
	state   State
	percent int
}

func newMachine() *machine {
	return &machine{state: StateInitializing, percent: StateInitializing.Percent()}
}

// transition moves to the next state and returns the state left.
func (m *machine) transition(to State) (State, error) {
	from := m.state
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	m.state = to
	if p := to.Percent(); p >= 0 {
		m.percent = p
	}
	return from, nil
}
