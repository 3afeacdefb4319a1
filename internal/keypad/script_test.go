package keypad

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want ScriptCommand
	}{
		{"down 1", ScriptCommand{Op: OpDown, Key: 1}},
		{"up 11", ScriptCommand{Op: OpUp, Key: 11}},
		{"sleep 0.25", ScriptCommand{Op: OpSleep, Delay: 250 * time.Millisecond}},
		{"  sleep   2 ", ScriptCommand{Op: OpSleep, Delay: 2 * time.Second}},
		{"sleep 0", ScriptCommand{Op: OpSleep}},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			got, err := ParseCommand(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"down",
		"down 1 2",
		"press 1",
		"down one",
		"up 1.5",
		"up -1",
		"sleep x",
		"sleep -0.1",
		"sleep NaN",
		"sleep Inf",
	} {
		_, err := ParseCommand(line)
		assert.Error(t, err, "line %q", line)
	}
}

func TestParseCommandLongSleepSaturates(t *testing.T) {
	for _, line := range []string{"sleep 99999999", "sleep 1e10", "sleep 99999999999", "sleep 1e300"} {
		cmd, err := ParseCommand(line)
		require.NoError(t, err, "line %q", line)
		assert.Positive(t, cmd.Delay, "line %q", line)
	}

	cmd, err := ParseCommand("sleep 1e10")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(math.MaxInt64), cmd.Delay)

	cmd, err = ParseCommand("sleep 99999999")
	require.NoError(t, err)
	assert.Equal(t, 99999999*time.Second, cmd.Delay)
}

func TestParseScript(t *testing.T) {
	cmds, err := ParseScript([]string{"down 0", "sleep 0.1", "up 0"})
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.Equal(t, "sleep 0.1", cmds[1].String())

	_, err = ParseScript([]string{"down 0", "sleep", "up 0"})
	var scriptErr *ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, 2, scriptErr.Line)
	assert.Equal(t, "sleep", scriptErr.Text)
}

func TestReadScript(t *testing.T) {
	lines, err := ReadScript(strings.NewReader("# tap key 1\ndown 1\n\n  sleep 0.2\nup 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"down 1", "sleep 0.2", "up 1"}, lines)
}
