//go:build linux

package keypad

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SPI_IOC_WR_MAX_SPEED_HZ from linux/spi/spidev.h.
const spiIOCWrMaxSpeedHz = 0x40046b04

// apa102 drives a chain of APA102 LEDs through spidev.
type apa102 struct {
	f          *os.File
	fd         int
	brightness uint8
	pixels     []Color
}

func openAPA102(path string, count, speedHz, brightness int) (*apa102, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := int(f.Fd())
	if speedHz > 0 {
		if err := unix.IoctlSetPointerInt(fd, spiIOCWrMaxSpeedHz, speedHz); err != nil {
			f.Close()
			return nil, fmt.Errorf("set SPI speed on %s: %w", path, err)
		}
	}
	if brightness < 0 || brightness > 31 {
		brightness = 31
	}
	return &apa102{
		f:          f,
		fd:         fd,
		brightness: uint8(brightness),
		pixels:     make([]Color, count),
	}, nil
}

func (a *apa102) set(index int, c Color) error {
	if index < 0 || index >= len(a.pixels) {
		return unknownKey(index)
	}
	a.pixels[index] = c
	return nil
}

func (a *apa102) clear() {
	for i := range a.pixels {
		a.pixels[i] = Off
	}
}

// frame encodes the start frame, one BGR frame per LED and the end frame.
func (a *apa102) frame() []byte {
	endLen := (len(a.pixels) + 15) / 16
	if endLen < 4 {
		endLen = 4
	}
	buf := make([]byte, 0, 4+4*len(a.pixels)+endLen)
	buf = append(buf, 0, 0, 0, 0)
	for _, p := range a.pixels {
		buf = append(buf, 0xe0|a.brightness, p.B, p.G, p.R)
	}
	for i := 0; i < endLen; i++ {
		buf = append(buf, 0xff)
	}
	return buf
}

func (a *apa102) flush() error {
	frame := a.frame()
	n, err := unix.Write(a.fd, frame)
	if err != nil {
		return fmt.Errorf("write LED frame: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("write LED frame: short write %d/%d", n, len(frame))
	}
	return nil
}

func (a *apa102) close() error {
	return a.f.Close()
}
