// Package keypad models a small keypad with per-key RGB indicators.
//
// A Keypad owns the per-key state registry, the indicator colours and one
// event source. The source is chosen by Implementation:
//   - Keybow: the physical device, read through a Driver
//   - Simulated: a scripted replay running on a clock.Clock
//   - Dummy: never produces events
//
// Poll is the only writer of the pressed flags and is meant to be called from
// a single goroutine (see the gesture package). LED operations may be called
// from any goroutine.
package keypad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"keybowd/internal/clock"
	"keybowd/internal/logging"
	"keybowd/internal/metrics"
)

// DefaultBlinkInterval is the on and off time of each blink in Apply.
const DefaultBlinkInterval = 250 * time.Millisecond

// ColorStore persists indicator colours across restarts.
type ColorStore interface {
	LoadColors() (map[int]Color, error)
	SaveColor(index int, c Color) error
}

// Config holds the construction parameters of a Keypad.
type Config struct {
	Implementation Implementation
	KeyCount       int

	// Script is replayed by the Simulated implementation and ignored otherwise.
	Script []string

	// Driver is used by the Keybow implementation. When nil, OpenDriver(Device) is called.
	Driver Driver
	Device DeviceConfig

	Clock         clock.Clock
	PollInterval  time.Duration
	MailboxSize   int
	BlinkInterval time.Duration

	Store   ColorStore
	Logger  *slog.Logger
	Metrics *metrics.KeypadMetrics
}

// DefaultConfig returns a configuration for the physical mini keypad.
func DefaultConfig() *Config {
	return &Config{
		Implementation: Keybow,
		KeyCount:       DefaultKeyCount,
		Device:         DefaultDeviceConfig(),
		Clock:          clock.Real{},
		PollInterval:   DefaultPollInterval,
		MailboxSize:    DefaultMailboxSize,
		BlinkInterval:  DefaultBlinkInterval,
	}
}

// Keypad is the key interface: state registry, LEDs and event source.
type Keypad struct {
	cfg      Config
	layout   Layout
	registry *Registry
	driver   Driver
	source   Source
	log      *slog.Logger

	// ledMu serialises read-modify-write LED operations such as toggle.
	ledMu sync.Mutex

	closeOnce sync.Once
	closed    atomic.Bool
}

// New builds a keypad. Construction errors are fatal; for the Keybow
// implementation a driver that cannot be acquired yields ErrDeviceUnavailable.
func New(cfg *Config) (*Keypad, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.Script = append([]string(nil), cfg.Script...)
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	if c.BlinkInterval <= 0 {
		c.BlinkInterval = DefaultBlinkInterval
	}
	if c.Logger == nil {
		c.Logger = logging.Default().WithComponent("keypad").Logger
	}

	layout, err := LayoutForKeyCount(c.KeyCount)
	if err != nil {
		return nil, err
	}

	k := &Keypad{
		cfg:      c,
		layout:   layout,
		registry: NewRegistry(layout),
		log:      c.Logger,
	}

	if c.Implementation != Simulated && len(c.Script) > 0 {
		k.log.Warn("script ignored", "implementation", c.Implementation.String())
	}

	switch c.Implementation {
	case Keybow:
		driver := c.Driver
		if driver == nil {
			driver, err = OpenDriver(c.Device)
			if err != nil {
				return nil, err
			}
		}
		if err := driver.Initialize(layout); err != nil {
			driver.Close()
			return nil, deviceUnavailable(err)
		}
		src, err := NewHardwareSource(driver, layout, &k.cfg)
		if err != nil {
			driver.Close()
			return nil, deviceUnavailable(err)
		}
		k.driver = driver
		k.source = src

	case Simulated:
		src := NewScriptedSource(c.Script, &k.cfg)
		src.onExhausted = k.Show
		k.source = src

	case Dummy:
		k.source = InertSource{}

	default:
		return nil, fmt.Errorf("unknown keypad implementation %v", c.Implementation)
	}

	if err := k.restoreColors(); err != nil {
		k.Close()
		return nil, err
	}

	k.log.Info("keypad ready",
		"implementation", c.Implementation.String(),
		"layout", layout.String(),
		"keys", layout.KeyCount(),
	)
	return k, nil
}

func deviceUnavailable(err error) error {
	if errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

// restoreColors loads stored indicator colours into the registry and driver.
func (k *Keypad) restoreColors() error {
	if k.cfg.Store == nil {
		return nil
	}
	colors, err := k.cfg.Store.LoadColors()
	if err != nil {
		return fmt.Errorf("load stored colours: %w", err)
	}
	for index, c := range colors {
		if err := k.registry.SetColor(index, c); err != nil {
			k.log.Warn("ignoring stored colour", "key", index, "error", err)
			continue
		}
		if k.driver != nil {
			if err := k.driver.SetIndicator(index, c); err != nil {
				return fmt.Errorf("restore indicator %d: %w", index, err)
			}
		}
	}
	if len(colors) > 0 {
		k.log.Debug("restored indicator colours", "count", len(colors))
		return k.flush()
	}
	return nil
}

// Implementation returns the event source kind.
func (k *Keypad) Implementation() Implementation {
	return k.cfg.Implementation
}

// Layout returns the physical layout.
func (k *Keypad) Layout() Layout {
	return k.layout
}

// Source returns the underlying event source.
func (k *Keypad) Source() Source {
	return k.source
}

// Poll waits for the next transition and records its pressed state.
func (k *Keypad) Poll(ctx context.Context) (Transition, error) {
	if k.closed.Load() {
		return Transition{}, ErrClosed
	}
	t, err := k.source.Poll(ctx)
	if err != nil {
		return Transition{}, err
	}
	if err := k.registry.SetPressed(t.Key, t.Pressed); err != nil {
		return t, fmt.Errorf("key update %s: %w", t, err)
	}
	k.cfg.Metrics.TransitionObserved(t.Pressed)
	return t, nil
}

// Key returns the state of key index.
func (k *Keypad) Key(index int) (KeyState, error) {
	return k.registry.Key(index)
}

// Keys returns a snapshot of every key.
func (k *Keypad) Keys() []KeyState {
	return k.registry.Snapshot()
}

// SetLED sets the indicator of key index and shows it.
func (k *Keypad) SetLED(index int, c Color) error {
	k.ledMu.Lock()
	defer k.ledMu.Unlock()

	if err := k.setLED(index, c); err != nil {
		return err
	}
	return k.show()
}

// setLED updates registry, driver and store without flushing. Callers hold ledMu.
func (k *Keypad) setLED(index int, c Color) error {
	if k.closed.Load() {
		return ErrClosed
	}
	if err := k.registry.SetColor(index, c); err != nil {
		return err
	}
	if k.driver != nil {
		if err := k.driver.SetIndicator(index, c); err != nil {
			return fmt.Errorf("set indicator %d: %w", index, err)
		}
	}
	if k.cfg.Store != nil {
		if err := k.cfg.Store.SaveColor(index, c); err != nil {
			return fmt.Errorf("save colour %d: %w", index, err)
		}
	}
	return nil
}

// LEDOn lights key index with a 6-digit hex colour.
func (k *Keypad) LEDOn(index int, hexcode string) error {
	c, err := ParseColor(hexcode)
	if err != nil {
		return err
	}
	return k.SetLED(index, c)
}

// LEDOff turns the indicator of key index off.
func (k *Keypad) LEDOff(index int) error {
	return k.SetLED(index, Off)
}

// LEDToggle turns a lit indicator off, or an unlit one on with hexcode.
// Turning an indicator on without a colour fails with ErrMissingColor.
func (k *Keypad) LEDToggle(index int, hexcode string) error {
	k.ledMu.Lock()
	defer k.ledMu.Unlock()

	state, err := k.registry.Key(index)
	if err != nil {
		return err
	}

	next := Off
	if !state.IsLit() {
		if hexcode == "" {
			return fmt.Errorf("%w (key %d)", ErrMissingColor, index)
		}
		next, err = ParseColor(hexcode)
		if err != nil {
			return err
		}
	}

	if err := k.setLED(index, next); err != nil {
		return err
	}
	return k.show()
}

// AllLEDsOff turns every indicator off.
func (k *Keypad) AllLEDsOff() error {
	k.ledMu.Lock()
	defer k.ledMu.Unlock()

	for i := 0; i < k.layout.KeyCount(); i++ {
		if err := k.setLED(i, Off); err != nil {
			return err
		}
	}
	return k.show()
}

// Clear turns every indicator off through the driver's clear operation.
func (k *Keypad) Clear() error {
	k.ledMu.Lock()
	defer k.ledMu.Unlock()

	if k.closed.Load() {
		return ErrClosed
	}
	if k.driver != nil {
		if err := k.driver.ClearAll(); err != nil {
			return fmt.Errorf("clear indicators: %w", err)
		}
	}
	k.registry.Clear()
	if k.cfg.Store != nil {
		for i := 0; i < k.layout.KeyCount(); i++ {
			if err := k.cfg.Store.SaveColor(i, Off); err != nil {
				return fmt.Errorf("save colour %d: %w", i, err)
			}
		}
	}
	return nil
}

// Show flushes staged indicator colours and logs every key at debug level.
func (k *Keypad) Show() {
	k.ledMu.Lock()
	defer k.ledMu.Unlock()

	if err := k.show(); err != nil {
		k.log.Warn("show failed", "error", err)
	}
}

func (k *Keypad) show() error {
	err := k.flush()
	for i, state := range k.registry.Snapshot() {
		k.log.Debug("key", "index", i, "state", state.String())
	}
	return err
}

func (k *Keypad) flush() error {
	if k.driver == nil || k.closed.Load() {
		return nil
	}
	if err := k.driver.FlushIndicators(); err != nil {
		return fmt.Errorf("flush indicators: %w", err)
	}
	return nil
}

// Apply performs an LEDCommand. Blink alternates the command colour and off
// BlinkCount times, then restores the previous colour.
func (k *Keypad) Apply(ctx context.Context, cmd LEDCommand) error {
	switch cmd.Op {
	case LEDOn:
		return k.SetLED(cmd.KeyIndex, cmd.Color)
	case LEDOff:
		return k.LEDOff(cmd.KeyIndex)
	case LEDBlink:
		return k.blink(ctx, cmd)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidLEDCommand, cmd.Op)
	}
}

func (k *Keypad) blink(ctx context.Context, cmd LEDCommand) error {
	prev, err := k.registry.Key(cmd.KeyIndex)
	if err != nil {
		return err
	}

	restore := func() error {
		err := k.SetLED(cmd.KeyIndex, prev.Color)
		if err != nil {
			k.log.Warn("blink restore failed", "key", cmd.KeyIndex, "color", prev.Color.Hex(), "error", err)
		}
		return err
	}

	for i := 0; i < cmd.BlinkCount; i++ {
		if err := k.SetLED(cmd.KeyIndex, cmd.Color); err != nil {
			return err
		}
		if err := k.cfg.Clock.Sleep(ctx, k.cfg.BlinkInterval); err != nil {
			return errors.Join(err, restore())
		}
		if err := k.SetLED(cmd.KeyIndex, Off); err != nil {
			return err
		}
		if err := k.cfg.Clock.Sleep(ctx, k.cfg.BlinkInterval); err != nil {
			return errors.Join(err, restore())
		}
	}
	return restore()
}

// Closed reports whether Close has been called.
func (k *Keypad) Closed() bool {
	return k.closed.Load()
}

// Close releases the driver. It is safe to call more than once.
func (k *Keypad) Close() error {
	var err error
	k.closeOnce.Do(func() {
		k.closed.Store(true)
		if k.driver != nil {
			err = k.driver.Close()
		}
		k.log.Debug("keypad closed")
	})
	return err
}
