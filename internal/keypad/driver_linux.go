//go:build linux

package keypad

import (
	"fmt"
	"sync"
)

// linuxDriver combines an evdev key input with an optional APA102 LED chain.
type linuxDriver struct {
	cfg DeviceConfig

	mu       sync.Mutex
	input    *evdevInput
	leds     *apa102
	handlers map[int]KeyHandler
	closed   bool
}

// OpenDriver acquires the keypad's input device. LEDs are opened by Initialize
// once the layout is known. Failures wrap ErrDeviceUnavailable.
func OpenDriver(cfg DeviceConfig) (Driver, error) {
	input, err := openInputDevice(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &linuxDriver{
		cfg:      cfg,
		input:    input,
		handlers: make(map[int]KeyHandler),
	}, nil
}

func (d *linuxDriver) Initialize(layout Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if err := d.input.mapKeys(layout, d.cfg.Keymap); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if d.cfg.SPIDevice != "" {
		leds, err := openAPA102(d.cfg.SPIDevice, layout.KeyCount(), d.cfg.SPISpeedHz, d.cfg.Brightness)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		d.leds = leds
	}
	d.input.start(d.dispatch)
	return nil
}

func (d *linuxDriver) dispatch(index int, pressed bool) {
	d.mu.Lock()
	fn := d.handlers[index]
	d.mu.Unlock()
	if fn != nil {
		fn(index, pressed)
	}
}

func (d *linuxDriver) RegisterCallback(index int, fn KeyHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[index] = fn
	return nil
}

func (d *linuxDriver) SetIndicator(index int, c Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.leds == nil {
		return nil
	}
	return d.leds.set(index, c)
}

func (d *linuxDriver) FlushIndicators() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.leds == nil {
		return nil
	}
	return d.leds.flush()
}

func (d *linuxDriver) ClearAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.leds == nil {
		return nil
	}
	d.leds.clear()
	return d.leds.flush()
}

func (d *linuxDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	leds := d.leds
	d.mu.Unlock()

	var firstErr error
	if leds != nil {
		leds.clear()
		_ = leds.flush()
		firstErr = leds.close()
	}
	// The reader goroutine calls dispatch, so close input without holding mu.
	if err := d.input.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
