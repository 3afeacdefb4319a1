package keypad

import "fmt"

// LEDOperation is the action requested by an LEDCommand.
type LEDOperation int

const (
	LEDOff LEDOperation = iota + 1
	LEDOn
	LEDBlink
)

func (op LEDOperation) String() string {
	switch op {
	case LEDOff:
		return "off"
	case LEDOn:
		return "on"
	case LEDBlink:
		return "blink"
	default:
		return fmt.Sprintf("LEDOperation(%d)", int(op))
	}
}

// Valid reports whether op is a known operation.
func (op LEDOperation) Valid() bool {
	return op >= LEDOff && op <= LEDBlink
}

// ParseLEDOperation parses "off", "on" or "blink".
func ParseLEDOperation(s string) (LEDOperation, error) {
	switch s {
	case "off", "OFF":
		return LEDOff, nil
	case "on", "ON":
		return LEDOn, nil
	case "blink", "BLINK":
		return LEDBlink, nil
	}
	return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidLEDCommand, s)
}

// LEDCommand describes a requested indicator change for one key.
type LEDCommand struct {
	KeyIndex   int
	Op         LEDOperation
	Color      Color
	BlinkCount int
}

// NewLEDCommand validates and builds an LEDCommand.
func NewLEDCommand(key int, op LEDOperation, r, g, b, blinkCount int) (LEDCommand, error) {
	if !op.Valid() {
		return LEDCommand{}, fmt.Errorf("%w: %v", ErrInvalidLEDCommand, op)
	}
	if blinkCount < 1 {
		return LEDCommand{}, fmt.Errorf("%w: blink count must be at least 1, got %d", ErrInvalidLEDCommand, blinkCount)
	}
	c, err := NewColor(r, g, b)
	if err != nil {
		return LEDCommand{}, err
	}
	return LEDCommand{KeyIndex: key, Op: op, Color: c, BlinkCount: blinkCount}, nil
}

// SetR sets the red channel.
func (c *LEDCommand) SetR(v int) error {
	nc, err := NewColor(v, int(c.Color.G), int(c.Color.B))
	if err != nil {
		return err
	}
	c.Color = nc
	return nil
}

// SetG sets the green channel.
func (c *LEDCommand) SetG(v int) error {
	nc, err := NewColor(int(c.Color.R), v, int(c.Color.B))
	if err != nil {
		return err
	}
	c.Color = nc
	return nil
}

// SetB sets the blue channel.
func (c *LEDCommand) SetB(v int) error {
	nc, err := NewColor(int(c.Color.R), int(c.Color.G), v)
	if err != nil {
		return err
	}
	c.Color = nc
	return nil
}
