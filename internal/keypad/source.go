package keypad

import (
	"context"
	"fmt"
	"strings"
)

// Transition is a raw key press or release.
type Transition struct {
	Key     int
	Pressed bool
}

func (t Transition) String() string {
	if t.Pressed {
		return fmt.Sprintf("down %d", t.Key)
	}
	return fmt.Sprintf("up %d", t.Key)
}

// Source produces raw transitions.
type Source interface {
	// Poll blocks until the next transition is available or ctx is done.
	Poll(ctx context.Context) (Transition, error)
}

// Implementation selects the event source behind a Keypad.
type Implementation int

const (
	// Keybow uses the physical keypad.
	Keybow Implementation = iota
	// Simulated replays a script once.
	Simulated
	// Dummy never produces events.
	Dummy
)

func (i Implementation) String() string {
	switch i {
	case Keybow:
		return "keybow"
	case Simulated:
		return "simulated"
	case Dummy:
		return "dummy"
	default:
		return fmt.Sprintf("Implementation(%d)", int(i))
	}
}

// ParseImplementation parses "keybow", "simulated" or "dummy".
func ParseImplementation(s string) (Implementation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keybow", "hardware":
		return Keybow, nil
	case "simulated", "scripted":
		return Simulated, nil
	case "dummy", "inert":
		return Dummy, nil
	}
	return 0, fmt.Errorf("unknown keypad implementation %q", s)
}

// InertSource never produces a transition.
type InertSource struct{}

// Poll blocks until ctx is done.
func (InertSource) Poll(ctx context.Context) (Transition, error) {
	<-ctx.Done()
	return Transition{}, ctx.Err()
}
