package gesture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"keybowd/internal/clock"
	"keybowd/internal/keypad"
	"keybowd/internal/logging"
	"keybowd/internal/metrics"
)

// ErrNilSource is returned by NewListener when no key source is given.
var ErrNilSource = errors.New("gesture: nil key source")

// KeySource is what a Listener needs from a keypad.
type KeySource interface {
	Poll(ctx context.Context) (keypad.Transition, error)
	Key(index int) (keypad.KeyState, error)
}

// Option configures a Listener.
type Option func(*Listener)

// WithInterest sets the sequences the listener publishes.
func WithInterest(set InterestSet) Option {
	return func(l *Listener) { l.interest = set }
}

// WithClock sets the clock used to timestamp transitions.
func WithClock(c clock.Clock) Option {
	return func(l *Listener) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithHoldThreshold overrides DefaultHoldThreshold.
func WithHoldThreshold(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.threshold = d
		}
	}
}

// WithTimelineCapacity overrides DefaultTimelineCapacity.
func WithTimelineCapacity(n int) Option {
	return func(l *Listener) { l.capacity = n }
}

// WithMetrics records listener activity on m.
func WithMetrics(m *metrics.KeypadMetrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// Listener is the producer loop: it polls a KeySource, keeps the timeline
// and publishes one Result per poll.
type Listener struct {
	src       KeySource
	clock     clock.Clock
	threshold time.Duration
	capacity  int
	timeline  *Timeline
	metrics   *metrics.KeypadMetrics
	log       *slog.Logger

	running atomic.Bool

	mu       sync.RWMutex
	interest InterestSet
}

// NewListener creates a listener over src.
func NewListener(src KeySource, opts ...Option) (*Listener, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	l := &Listener{
		src:       src,
		clock:     clock.Real{},
		threshold: DefaultHoldThreshold,
		capacity:  DefaultTimelineCapacity,
		interest:  DefaultInterestSet(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logging.Default().WithComponent("gesture").Logger
	}
	l.timeline = NewTimeline(l.capacity)
	return l, nil
}

// Interest returns the current interest set.
func (l *Listener) Interest() InterestSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.interest
}

// SetInterest replaces the interest set. It takes effect from the next release.
func (l *Listener) SetInterest(set InterestSet) {
	l.mu.Lock()
	prev := l.interest
	l.interest = set
	l.mu.Unlock()

	if prev != set {
		l.log.Info("interest changed", "from", prev.String(), "to", set.String())
	}
}

// Timeline returns the listener's transition history.
func (l *Listener) Timeline() *Timeline {
	return l.timeline
}

// Running reports whether Run is in progress.
func (l *Listener) Running() bool {
	return l.running.Load()
}

// Run publishes results to q until ctx is done, returning nil in that case.
// Any other source or key state error stops the loop and is returned.
func (l *Listener) Run(ctx context.Context, q *Queue) error {
	l.running.Store(true)
	defer l.running.Store(false)

	l.log.Info("listening",
		"interest", l.Interest().String(),
		"hold_threshold", l.threshold,
	)

	for {
		t, err := l.src.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				l.log.Debug("listener stopped")
				return nil
			}
			return fmt.Errorf("poll: %w", err)
		}

		res, err := l.step(t)
		if err != nil {
			return err
		}

		q.Put(res)
		l.metrics.SetQueueDepth(q.Len())
		if res.Empty() {
			l.metrics.EmptyResult()
		} else {
			l.metrics.GestureEmitted(res.Sequence.String())
			l.log.Debug("gesture", "key", res.Key, "sequence", res.Sequence.String())
		}
	}
}

// step records t and classifies it when it is a release.
func (l *Listener) step(t keypad.Transition) (Result, error) {
	state, err := l.src.Key(t.Key)
	if err != nil {
		return Result{}, fmt.Errorf("key state %s: %w", t, err)
	}
	if state.Pressed != t.Pressed {
		return Result{}, fmt.Errorf("key state %s: registry reports pressed=%t", t, state.Pressed)
	}

	now := l.clock.Now()
	res := EmptyResult()
	if !t.Pressed {
		if held, ok := PressDuration(l.timeline, t.Key, now); ok {
			l.metrics.ObservePress(held)
			res = decide(t.Key, held, l.Interest(), l.threshold)
		} else {
			l.log.Debug("release without press", "key", t.Key)
		}
	}

	l.timeline.Push(Entry{Timestamp: now, Key: t.Key, Pressed: t.Pressed})
	l.metrics.SetTimelineEntries(l.timeline.Len())
	return res, nil
}
