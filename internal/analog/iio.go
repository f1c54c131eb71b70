package analog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultIIOPath is channel 0 of the first IIO device.
const DefaultIIOPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// IIO reads a Linux industrial-I/O raw channel, such as an MCP3008 or
// ADS1015 bound to its kernel driver, and rescales it to 10 bits.
type IIO struct {
	Path string
	Bits int // converter resolution
}

// NewIIO returns a reader for path with the given converter resolution.
func NewIIO(path string, bits int) *IIO {
	return &IIO{Path: path, Bits: bits}
}

func (s *IIO) Read() (int, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.Path, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return Scale(raw, s.Bits), nil
}

// Scale converts a raw sample of the given resolution to [0, Max].
func Scale(raw, bits int) int {
	switch {
	case bits > 10:
		raw >>= bits - 10
	case bits > 0 && bits < 10:
		raw <<= 10 - bits
	}
	return min(max(raw, 0), Max)
}
