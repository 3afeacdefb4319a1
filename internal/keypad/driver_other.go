//go:build !linux

package keypad

import "fmt"

// OpenDriver always fails on platforms without evdev and spidev.
func OpenDriver(cfg DeviceConfig) (Driver, error) {
	return nil, fmt.Errorf("%w: hardware keypad is only supported on linux", ErrDeviceUnavailable)
}
