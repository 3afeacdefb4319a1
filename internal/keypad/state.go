package keypad

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Color is an RGB indicator colour.
type Color struct {
	R, G, B uint8
}

// Off is the unlit colour.
var Off = Color{}

// NewColor builds a Color from integer channels, rejecting values outside 0-255.
func NewColor(r, g, b int) (Color, error) {
	for _, v := range [...]int{r, g, b} {
		if v < 0 || v > 255 {
			return Color{}, fmt.Errorf("%w: channel value %d out of range 0-255", ErrInvalidColor, v)
		}
	}
	return Color{R: uint8(r), G: uint8(g), B: uint8(b)}, nil
}

// ParseColor parses a 6-digit hex code such as "ff8000" or "#FF8000".
func ParseColor(code string) (Color, error) {
	code = strings.TrimPrefix(strings.TrimSpace(code), "#")
	if len(code) != 6 {
		return Color{}, fmt.Errorf("%w: hex code %q must have 6 digits", ErrInvalidColor, code)
	}
	b, err := hex.DecodeString(code)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	return Color{R: b[0], G: b[1], B: b[2]}, nil
}

// Hex returns the colour as 6 lowercase hex digits.
func (c Color) Hex() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// IsLit reports whether any channel is non-zero.
func (c Color) IsLit() bool {
	return c != Off
}

// KeyState is the state of a single key.
type KeyState struct {
	Pressed bool
	Color   Color
}

// ColorCode returns the indicator colour as 6 lowercase hex digits.
func (k KeyState) ColorCode() string {
	return k.Color.Hex()
}

// IsLit reports whether the key's indicator is on.
func (k KeyState) IsLit() bool {
	return k.Color.IsLit()
}

func (k KeyState) String() string {
	mark := " "
	if k.Pressed {
		mark = "X"
	}
	return fmt.Sprintf("[%s] : %s", mark, k.ColorCode())
}
