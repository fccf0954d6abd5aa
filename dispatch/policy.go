package dispatch

import (
	"fmt"
	"strings"
)

// Policy decides what happens to a trigger that arrives while the machine
// is not idle.
type Policy int

const (
	// PolicyReject fails the trigger with a *TransitionError and leaves the
	// in-flight run alone.
	PolicyReject Policy = iota
	// PolicyQueue defers the trigger until the machine is back to None.
	// Deferred triggers start in arrival order.
	PolicyQueue
)

func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyQueue:
		return "queue"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "reject" or "queue", ignoring case.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "reject":
		return PolicyReject, nil
	case "queue":
		return PolicyQueue, nil
	default:
		return PolicyReject, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

func (p Policy) MarshalText() ([]byte, error) {
	if p != PolicyReject && p != PolicyQueue {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(p))
	}

	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	policy, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}

	*p = policy

	return nil
}
