package keypad

import (
	"context"
	"log/slog"
	"sync"

	"keybowd/internal/clock"
	"keybowd/internal/metrics"
)

// ScriptedSource replays a fixed list of commands once.
//
// Lines are parsed as they are reached. A malformed line terminates the
// source: that Poll and every later one return the same *ScriptError. Once
// the script is exhausted Poll blocks until its context is done.
type ScriptedSource struct {
	clock       clock.Clock
	log         *slog.Logger
	metrics     *metrics.KeypadMetrics
	onExhausted func()

	mu        sync.Mutex
	script    []string
	pos       int
	err       error
	exhausted bool
	announced bool
}

// NewScriptedSource creates a source over a copy of script.
func NewScriptedSource(script []string, cfg *Config) *ScriptedSource {
	return &ScriptedSource{
		clock:   cfg.Clock,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		script:  append([]string(nil), script...),
	}
}

// Position returns the number of commands consumed so far.
func (s *ScriptedSource) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Exhausted reports whether every command has been consumed.
func (s *ScriptedSource) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// next consumes the next command. ok is false once the script is exhausted;
// fresh is true only when err was produced by this call.
func (s *ScriptedSource) next() (cmd ScriptCommand, ok, fresh bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return ScriptCommand{}, false, false, s.err
	}
	if s.pos >= len(s.script) {
		s.exhausted = true
		return ScriptCommand{}, false, false, nil
	}

	line := s.script[s.pos]
	s.pos++
	cmd, err = ParseCommand(line)
	if err != nil {
		s.err = &ScriptError{Line: s.pos, Text: line, Err: err}
		return ScriptCommand{}, false, true, s.err
	}
	return cmd, true, false, nil
}

// Poll runs the script up to the next down or up command.
func (s *ScriptedSource) Poll(ctx context.Context) (Transition, error) {
	for {
		cmd, ok, fresh, err := s.next()
		if err != nil {
			if fresh {
				s.log.Error("script aborted", "error", err)
				s.metrics.ScriptFailed()
			}
			return Transition{}, err
		}
		if !ok {
			return Transition{}, s.idle(ctx)
		}

		s.log.Debug("script cmd", "cmd", cmd.String())
		switch cmd.Op {
		case OpSleep:
			if err := s.clock.Sleep(ctx, cmd.Delay); err != nil {
				return Transition{}, err
			}
		case OpDown:
			return Transition{Key: cmd.Key, Pressed: true}, nil
		case OpUp:
			return Transition{Key: cmd.Key, Pressed: false}, nil
		}
	}
}

// idle blocks until ctx is done. The first call announces completion.
func (s *ScriptedSource) idle(ctx context.Context) error {
	s.mu.Lock()
	announce := !s.announced
	s.announced = true
	s.mu.Unlock()

	if announce {
		s.log.Info("script completed", "commands", len(s.script))
		if s.onExhausted != nil {
			s.onExhausted()
		}
	}

	<-ctx.Done()
	return ctx.Err()
}
