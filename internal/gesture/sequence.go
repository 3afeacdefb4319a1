// Package gesture turns raw key transitions into gestures.
//
// A Listener polls a keypad, records every transition in a bounded
// Timeline and classifies each release as a SINGLE press or a HOLD by
// looking up the matching press. Exactly one Result is published to the
// Queue per poll; polls that produce no gesture publish the empty marker.
package gesture

import (
	"errors"
	"fmt"
	"strings"
)

// Sequence is a gesture classification.
type Sequence int

const (
	// Single is a press released within the hold threshold.
	Single Sequence = iota + 1
	// Hold is a press held strictly longer than the hold threshold.
	Hold
	// Double is reserved. The classifier never produces it.
	Double
)

// ErrUnknownSequence is returned when parsing an unrecognised sequence name.
var ErrUnknownSequence = errors.New("unknown sequence")

var sequenceNames = map[Sequence]string{
	Single: "SINGLE",
	Hold:   "HOLD",
	Double: "DOUBLE",
}

func (s Sequence) String() string {
	if name, ok := sequenceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Sequence(%d)", int(s))
}

// Valid reports whether s is one of the declared sequences.
func (s Sequence) Valid() bool {
	_, ok := sequenceNames[s]
	return ok
}

// ParseSequence parses a sequence name, case-insensitively.
func ParseSequence(s string) (Sequence, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for seq, n := range sequenceNames {
		if n == name {
			return seq, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSequence, s)
}

// InterestSet is the set of sequences a consumer wants to receive.
// It is a value type; each Listener holds its own copy.
type InterestSet struct {
	bits uint8
}

// NewInterestSet returns a set holding seqs. Invalid sequences are ignored.
func NewInterestSet(seqs ...Sequence) InterestSet {
	var set InterestSet
	for _, s := range seqs {
		if s.Valid() {
			set.bits |= 1 << uint(s)
		}
	}
	return set
}

// DefaultInterestSet is {SINGLE}.
func DefaultInterestSet() InterestSet {
	return NewInterestSet(Single)
}

// ParseInterestSet parses sequence names. An empty list yields the default set.
func ParseInterestSet(names []string) (InterestSet, error) {
	if len(names) == 0 {
		return DefaultInterestSet(), nil
	}
	seqs := make([]Sequence, 0, len(names))
	for _, name := range names {
		seq, err := ParseSequence(name)
		if err != nil {
			return InterestSet{}, err
		}
		seqs = append(seqs, seq)
	}
	return NewInterestSet(seqs...), nil
}

// Has reports whether s is in the set.
func (set InterestSet) Has(s Sequence) bool {
	return s.Valid() && set.bits&(1<<uint(s)) != 0
}

// With returns a copy of the set with s added.
func (set InterestSet) With(s Sequence) InterestSet {
	if s.Valid() {
		set.bits |= 1 << uint(s)
	}
	return set
}

// Slice returns the members in declaration order.
func (set InterestSet) Slice() []Sequence {
	var out []Sequence
	for _, s := range []Sequence{Single, Hold, Double} {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func (set InterestSet) String() string {
	names := make([]string, 0, 3)
	for _, s := range set.Slice() {
		names = append(names, s.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
