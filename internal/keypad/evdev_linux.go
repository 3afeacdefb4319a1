//go:build linux

package keypad

import (
	"fmt"
	"strings"
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

// defaultKeymap is the key order emitted by the Keybow gpio-keys overlay.
var defaultKeymap = []string{
	"KEY_1", "KEY_2", "KEY_3", "KEY_4", "KEY_5", "KEY_6",
	"KEY_7", "KEY_8", "KEY_9", "KEY_0", "KEY_MINUS", "KEY_EQUAL",
}

const (
	evValueRelease = 0
	evValuePress   = 1
)

// evdevInput reads key transitions from a Linux input device.
type evdevInput struct {
	dev  *evdev.InputDevice
	path string

	mu      sync.RWMutex
	codes   map[evdev.EvCode]int
	handler func(index int, pressed bool)
	done    chan struct{}
}

// openInputDevice opens the configured device, or the first whose name
// contains cfg.InputName.
func openInputDevice(cfg DeviceConfig) (*evdevInput, error) {
	path := cfg.InputDevice
	if path == "" {
		paths, err := evdev.ListDevicePaths()
		if err != nil {
			return nil, fmt.Errorf("list input devices: %w", err)
		}
		want := strings.ToLower(cfg.InputName)
		for _, p := range paths {
			if want != "" && strings.Contains(strings.ToLower(p.Name), want) {
				path = p.Path
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("no input device matching %q", cfg.InputName)
		}
	}

	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if cfg.Grab {
		if err := dev.Grab(); err != nil {
			dev.Close()
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
	}
	return &evdevInput{dev: dev, path: path}, nil
}

// mapKeys resolves evdev key names to key indices for the layout.
func (in *evdevInput) mapKeys(layout Layout, names []string) error {
	if len(names) == 0 {
		names = defaultKeymap
	}
	if len(names) < layout.KeyCount() {
		return fmt.Errorf("keymap has %d entries, layout needs %d", len(names), layout.KeyCount())
	}

	codes := make(map[evdev.EvCode]int, layout.KeyCount())
	for i := 0; i < layout.KeyCount(); i++ {
		code, ok := evdev.KEYFromString[names[i]]
		if !ok {
			return fmt.Errorf("keymap entry %d: unknown key name %q", i, names[i])
		}
		codes[code] = i
	}

	in.mu.Lock()
	in.codes = codes
	in.mu.Unlock()
	return nil
}

func (in *evdevInput) start(handler func(index int, pressed bool)) {
	in.mu.Lock()
	in.handler = handler
	in.done = make(chan struct{})
	in.mu.Unlock()
	go in.readLoop()
}

func (in *evdevInput) readLoop() {
	defer close(in.done)

	for {
		ev, err := in.dev.ReadOne()
		if err != nil {
			// Device closed or unplugged.
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		// Autorepeat (value 2) is not a transition.
		if ev.Value != evValuePress && ev.Value != evValueRelease {
			continue
		}

		in.mu.RLock()
		index, ok := in.codes[ev.Code]
		handler := in.handler
		in.mu.RUnlock()
		if ok && handler != nil {
			handler(index, ev.Value == evValuePress)
		}
	}
}

func (in *evdevInput) close() error {
	err := in.dev.Close()
	in.mu.RLock()
	done := in.done
	in.mu.RUnlock()
	if done != nil {
		<-done
	}
	return err
}
