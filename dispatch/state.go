package dispatch

import (
	"fmt"
	"strings"
)

// State is the dispatch state published by a Machine.
type State int

const (
	// None means no dispatch is in progress.
	None State = iota
	// Dispatching means a dispatch was triggered and has not finished.
	Dispatching
	// Dispatched means the last dispatch finished successfully.
	Dispatched
)

var stateNames = map[State]string{ //nolint:gochecknoglobals
	None:        "none",
	Dispatching: "dispatching",
	Dispatched:  "dispatched",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	_, ok := stateNames[s]

	return ok
}

// ParseState parses the name of a state, ignoring case.
func ParseState(name string) (State, error) {
	for state, stateName := range stateNames {
		if strings.EqualFold(stateName, strings.TrimSpace(name)) {
			return state, nil
		}
	}

	return None, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownState, int(s))
	}

	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	state, err := ParseState(string(text))
	if err != nil {
		return err
	}

	*s = state

	return nil
}

// Snapshot is the state of a Machine together with its payload.
type Snapshot[T any] struct {
	State State
	Value T
}

// Transition is a change of dispatch state.
type Transition struct {
	From State
	To   State
}

func (t Transition) String() string {
	return t.From.String() + " -> " + t.To.String()
}

// change is what a Machine publishes internally: the new snapshot and the
// state it replaced. Every public stream is derived from it.
type change[T any] struct {
	Snapshot[T]

	from State
}
