package keypad

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorCodeAllChannels(t *testing.T) {
	for v := 0; v <= 255; v++ {
		for _, rgb := range [][3]int{{v, 0, 0}, {0, v, 0}, {0, 0, v}, {v, 255 - v, v / 2}} {
			c, err := NewColor(rgb[0], rgb[1], rgb[2])
			require.NoError(t, err)

			want := fmt.Sprintf("%02x%02x%02x", rgb[0], rgb[1], rgb[2])
			state := KeyState{Color: c}
			assert.Equal(t, want, state.ColorCode())
			assert.Equal(t, rgb != [3]int{0, 0, 0}, state.IsLit())
		}
	}
}

func TestNewColorRejectsOutOfRange(t *testing.T) {
	for _, rgb := range [][3]int{{-1, 0, 0}, {0, 256, 0}, {0, 0, 1000}} {
		_, err := NewColor(rgb[0], rgb[1], rgb[2])
		assert.True(t, errors.Is(err, ErrInvalidColor), "rgb %v", rgb)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, Color{R: 0xff, G: 0x80, B: 0x00}, c)
	assert.Equal(t, "ff8000", c.Hex())

	for _, bad := range []string{"", "fff", "gg0000", "ff00000"} {
		_, err := ParseColor(bad)
		assert.True(t, errors.Is(err, ErrInvalidColor), "input %q", bad)
	}
}

func TestKeyStateString(t *testing.T) {
	assert.Equal(t, "[ ] : 000000", KeyState{}.String())
	assert.Equal(t, "[X] : ff0000", KeyState{Pressed: true, Color: Color{R: 255}}.String())
}

func TestLayoutForKeyCount(t *testing.T) {
	l, err := LayoutForKeyCount(3)
	require.NoError(t, err)
	assert.Equal(t, LayoutMini, l)
	assert.Equal(t, "mini", l.String())

	l, err = LayoutForKeyCount(12)
	require.NoError(t, err)
	assert.Equal(t, 12, l.KeyCount())

	for _, n := range []int{0, 1, 4, 16} {
		_, err := LayoutForKeyCount(n)
		assert.True(t, errors.Is(err, ErrUnsupportedLayout), "count %d", n)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(LayoutMini)
	assert.Equal(t, 3, r.Len())

	for i := 0; i < r.Len(); i++ {
		for _, pressed := range []bool{true, false} {
			require.NoError(t, r.SetPressed(i, pressed))
			k, err := r.Key(i)
			require.NoError(t, err)
			assert.Equal(t, pressed, k.Pressed)
		}
	}

	require.NoError(t, r.SetPressed(1, true))
	require.NoError(t, r.SetColor(1, Color{G: 10}))
	r.Clear()
	k, err := r.Key(1)
	require.NoError(t, err)
	assert.True(t, k.Pressed, "Clear keeps pressed flags")
	assert.False(t, k.IsLit())

	assert.True(t, errors.Is(r.SetPressed(3, true), ErrUnknownKey))
	assert.True(t, errors.Is(r.SetColor(-1, Off), ErrUnknownKey))
	_, err = r.Key(5)
	assert.True(t, errors.Is(err, ErrUnknownKey))

	snap := r.Snapshot()
	snap[0].Pressed = true
	k, _ = r.Key(0)
	assert.False(t, k.Pressed, "snapshot must be a copy")
}

func TestLEDCommand(t *testing.T) {
	cmd, err := NewLEDCommand(2, LEDBlink, 1, 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, Color{R: 1, G: 2, B: 3}, cmd.Color)

	require.NoError(t, cmd.SetR(10))
	require.NoError(t, cmd.SetG(20))
	require.NoError(t, cmd.SetB(30))
	assert.Equal(t, Color{R: 10, G: 20, B: 30}, cmd.Color)

	assert.True(t, errors.Is(cmd.SetG(300), ErrInvalidColor))
	assert.Equal(t, uint8(20), cmd.Color.G, "failed setter leaves channel unchanged")

	_, err = NewLEDCommand(0, LEDOperation(9), 0, 0, 0, 1)
	assert.True(t, errors.Is(err, ErrInvalidLEDCommand))
	_, err = NewLEDCommand(0, LEDOn, 0, 0, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidLEDCommand))

	op, err := ParseLEDOperation("blink")
	require.NoError(t, err)
	assert.Equal(t, LEDBlink, op)
	_, err = ParseLEDOperation("pulse")
	assert.Error(t, err)
}
