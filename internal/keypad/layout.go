package keypad

import "fmt"

// Layout is a supported physical key arrangement.
type Layout int

const (
	// LayoutMini is the 3-key keypad.
	LayoutMini Layout = 3
	// LayoutStandard is the 12-key keypad.
	LayoutStandard Layout = 12
)

// DefaultKeyCount matches the mini keypad.
const DefaultKeyCount = int(LayoutMini)

// LayoutForKeyCount maps a key count onto a physical layout.
func LayoutForKeyCount(n int) (Layout, error) {
	switch Layout(n) {
	case LayoutMini, LayoutStandard:
		return Layout(n), nil
	default:
		return 0, fmt.Errorf("%w (got %d)", ErrUnsupportedLayout, n)
	}
}

// KeyCount returns the number of keys in the layout.
func (l Layout) KeyCount() int {
	return int(l)
}

func (l Layout) String() string {
	switch l {
	case LayoutMini:
		return "mini"
	case LayoutStandard:
		return "standard"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}
