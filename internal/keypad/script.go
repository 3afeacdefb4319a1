package keypad

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// ScriptOp is a scripted replay instruction.
type ScriptOp string

const (
	OpSleep ScriptOp = "sleep"
	OpDown  ScriptOp = "down"
	OpUp    ScriptOp = "up"
)

// ScriptCommand is one parsed "<op> <arg>" line.
type ScriptCommand struct {
	Op ScriptOp
	// Key is set for down and up.
	Key int
	// Delay is set for sleep.
	Delay time.Duration
}

func (c ScriptCommand) String() string {
	if c.Op == OpSleep {
		return fmt.Sprintf("sleep %g", c.Delay.Seconds())
	}
	return fmt.Sprintf("%s %d", c.Op, c.Key)
}

var (
	errTokenCount   = errors.New("expected \"<op> <arg>\"")
	errUnknownOp    = errors.New("unknown op")
	errNonNumeric   = errors.New("argument is not numeric")
	errNegative     = errors.New("argument must not be negative")
	errNotKeyNumber = errors.New("key index must be a non-negative integer")
)

// ParseCommand parses a single script line.
func ParseCommand(line string) (ScriptCommand, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return ScriptCommand{}, fmt.Errorf("%w, got %d tokens", errTokenCount, len(fields))
	}

	op := ScriptOp(fields[0])
	arg := fields[1]

	switch op {
	case OpSleep:
		secs, err := strconv.ParseFloat(arg, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return ScriptCommand{}, fmt.Errorf("%w: %q", errNonNumeric, arg)
		}
		if secs < 0 {
			return ScriptCommand{}, fmt.Errorf("%w: %q", errNegative, arg)
		}
		return ScriptCommand{Op: op, Delay: secondsToDuration(secs)}, nil

	case OpDown, OpUp:
		key, err := strconv.Atoi(arg)
		if err != nil {
			if _, ferr := strconv.ParseFloat(arg, 64); ferr != nil {
				return ScriptCommand{}, fmt.Errorf("%w: %q", errNonNumeric, arg)
			}
			return ScriptCommand{}, fmt.Errorf("%w: %q", errNotKeyNumber, arg)
		}
		if key < 0 {
			return ScriptCommand{}, fmt.Errorf("%w: %q", errNotKeyNumber, arg)
		}
		return ScriptCommand{Op: op, Key: key}, nil
	}

	return ScriptCommand{}, fmt.Errorf("%w %q", errUnknownOp, fields[0])
}

// secondsToDuration converts a non-negative sleep argument, saturating at the
// largest Duration instead of overflowing.
func secondsToDuration(secs float64) time.Duration {
	ns := secs * float64(time.Second)
	if ns >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// ParseScript validates every line of a script, returning the first
// *ScriptError encountered.
func ParseScript(lines []string) ([]ScriptCommand, error) {
	cmds := make([]ScriptCommand, 0, len(lines))
	for i, line := range lines {
		cmd, err := ParseCommand(line)
		if err != nil {
			return nil, &ScriptError{Line: i + 1, Text: line, Err: err}
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// ReadScript reads a script file, one command per line. Blank lines and
// lines starting with '#' are skipped.
func ReadScript(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return lines, nil
}
