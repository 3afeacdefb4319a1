package keypad

import (
	"fmt"
	"sync"
)

// KeyHandler receives raw transitions from a driver.
type KeyHandler func(index int, pressed bool)

// Driver is the hardware capability behind the Keybow implementation.
type Driver interface {
	// Initialize prepares the device for the given layout.
	Initialize(layout Layout) error

	// RegisterCallback installs the handler invoked on every transition of key index.
	// Handlers may be called from a driver-owned goroutine.
	RegisterCallback(index int, fn KeyHandler) error

	// SetIndicator stages a colour for key index; FlushIndicators makes it visible.
	SetIndicator(index int, c Color) error

	FlushIndicators() error

	// ClearAll turns every indicator off.
	ClearAll() error

	Close() error
}

// DeviceConfig locates the physical keypad.
type DeviceConfig struct {
	// InputDevice is an explicit evdev path such as /dev/input/event3.
	InputDevice string
	// InputName selects the first input device whose name contains this string.
	InputName string
	// Keymap lists the evdev key names for key index 0, 1, 2...
	Keymap []string
	// Grab requests exclusive access to the input device.
	Grab bool

	// SPIDevice is the spidev node driving the APA102 LED chain.
	SPIDevice  string
	SPISpeedHz int
	// Brightness is the APA102 global brightness, 0-31.
	Brightness int
}

// DefaultDeviceConfig returns the settings for a Keybow running the gpio-keys overlay.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		InputName:  "keybow",
		Grab:       true,
		SPIDevice:  "/dev/spidev0.0",
		SPISpeedHz: 4000000,
		Brightness: 31,
	}
}

// MemoryDriver is an in-process Driver. It records indicator state and lets
// callers inject transitions with Press and Release.
type MemoryDriver struct {
	mu          sync.Mutex
	layout      Layout
	initialized bool
	closed      bool
	handlers    map[int]KeyHandler
	staged      map[int]Color
	shown       map[int]Color
	flushes     int
}

// NewMemoryDriver creates an empty MemoryDriver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		handlers: make(map[int]KeyHandler),
		staged:   make(map[int]Color),
		shown:    make(map[int]Color),
	}
}

// Initialize records the layout.
func (d *MemoryDriver) Initialize(layout Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.layout = layout
	d.initialized = true
	return nil
}

// RegisterCallback installs fn for key index.
func (d *MemoryDriver) RegisterCallback(index int, fn KeyHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return fmt.Errorf("register callback %d: driver not initialized", index)
	}
	if index < 0 || index >= d.layout.KeyCount() {
		return unknownKey(index)
	}
	d.handlers[index] = fn
	return nil
}

// SetIndicator stages c for key index.
func (d *MemoryDriver) SetIndicator(index int, c Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged[index] = c
	return nil
}

// FlushIndicators publishes staged colours.
func (d *MemoryDriver) FlushIndicators() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, c := range d.staged {
		d.shown[k] = c
	}
	d.flushes++
	return nil
}

// ClearAll turns every indicator off immediately.
func (d *MemoryDriver) ClearAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged = make(map[int]Color)
	d.shown = make(map[int]Color)
	return nil
}

// Close marks the driver closed.
func (d *MemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *MemoryDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Shown returns the last flushed colour of key index.
func (d *MemoryDriver) Shown(index int) Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown[index]
}

// Flushes returns how many times FlushIndicators was called.
func (d *MemoryDriver) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

// Press fires the callback registered for key index with pressed=true.
func (d *MemoryDriver) Press(index int) {
	d.fire(index, true)
}

// Release fires the callback registered for key index with pressed=false.
func (d *MemoryDriver) Release(index int) {
	d.fire(index, false)
}

func (d *MemoryDriver) fire(index int, pressed bool) {
	d.mu.Lock()
	fn := d.handlers[index]
	d.mu.Unlock()
	if fn != nil {
		fn(index, pressed)
	}
}
