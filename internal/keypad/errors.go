package keypad

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when the keypad driver cannot be acquired.
	ErrDeviceUnavailable = errors.New("keypad device not available")

	// ErrUnsupportedLayout is returned for key counts that match no physical layout.
	ErrUnsupportedLayout = errors.New("unsupported key layout: key count must be 12 (or 3 for mini)")

	// ErrUnknownKey is returned when a key index is outside the configured layout.
	ErrUnknownKey = errors.New("unknown key index")

	// ErrInvalidColor is returned when a colour channel is outside 0-255 or a hex code is malformed.
	ErrInvalidColor = errors.New("invalid colour")

	// ErrMissingColor is returned when toggling an unlit LED on without a colour.
	ErrMissingColor = errors.New("cannot toggle LED on without a colour")

	// ErrInvalidLEDCommand is returned by NewLEDCommand for bad operations or blink counts.
	ErrInvalidLEDCommand = errors.New("invalid LED command")

	// ErrClosed is returned by operations on a closed keypad.
	ErrClosed = errors.New("keypad closed")
)

// ScriptError describes a malformed line in a scripted replay.
type ScriptError struct {
	// Line is the 1-based position of the command in the script.
	Line int
	Text string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func unknownKey(index int) error {
	return fmt.Errorf("%w: %d", ErrUnknownKey, index)
}
