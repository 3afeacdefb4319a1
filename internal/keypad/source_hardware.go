package keypad

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"keybowd/internal/clock"
	"keybowd/internal/metrics"
)

const (
	// DefaultPollInterval checks the mailbox 120 times a second.
	DefaultPollInterval = time.Second / 120

	// DefaultMailboxSize is how many transitions are retained between polls.
	DefaultMailboxSize = 8
)

// HardwareSource turns driver callbacks into polled transitions.
//
// Callbacks append to a bounded FIFO mailbox. When the mailbox is full the
// oldest transition is discarded, so a slow consumer loses the earliest
// events rather than the latest.
type HardwareSource struct {
	clock    clock.Clock
	interval time.Duration
	size     int
	log      *slog.Logger
	metrics  *metrics.KeypadMetrics

	mu      sync.Mutex
	mailbox []Transition
	dropped uint64
}

// NewHardwareSource registers a callback for every key of layout on driver.
func NewHardwareSource(driver Driver, layout Layout, cfg *Config) (*HardwareSource, error) {
	s := &HardwareSource{
		clock:    cfg.Clock,
		interval: cfg.PollInterval,
		size:     cfg.MailboxSize,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}
	if s.size <= 0 {
		s.size = DefaultMailboxSize
	}
	s.mailbox = make([]Transition, 0, s.size)

	for i := 0; i < layout.KeyCount(); i++ {
		if err := driver.RegisterCallback(i, s.record); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// record is the driver callback.
func (s *HardwareSource) record(index int, pressed bool) {
	var (
		lost    Transition
		dropped bool
	)

	s.mu.Lock()
	if len(s.mailbox) >= s.size {
		lost = s.mailbox[0]
		s.mailbox = append(s.mailbox[:0], s.mailbox[1:]...)
		s.dropped++
		dropped = true
	}
	s.mailbox = append(s.mailbox, Transition{Key: index, Pressed: pressed})
	s.mu.Unlock()

	if dropped {
		s.log.Warn("mailbox full, dropping transition", "lost", lost.String())
		s.metrics.TransitionDropped()
	}
}

func (s *HardwareSource) take() (Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.mailbox) == 0 {
		return Transition{}, false
	}
	t := s.mailbox[0]
	s.mailbox = append(s.mailbox[:0], s.mailbox[1:]...)
	return t, true
}

// Poll returns the oldest pending transition, checking the mailbox every
// poll interval until one arrives.
func (s *HardwareSource) Poll(ctx context.Context) (Transition, error) {
	for {
		if t, ok := s.take(); ok {
			return t, nil
		}
		if err := s.clock.Sleep(ctx, s.interval); err != nil {
			return Transition{}, err
		}
	}
}

// Dropped returns how many transitions were discarded because the mailbox was full.
func (s *HardwareSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
