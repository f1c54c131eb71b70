// Package gpio provides the monitor's digital I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device; input edges
// are delivered to handlers with kernel event timestamps.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/range-monitor/internal/logic"
)

// ErrUnsupported is returned by NewRealBoard on platforms without gpiocdev.
var ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// TriggerPulse is the HC-SR04 trigger width.
const TriggerPulse = 10 * time.Microsecond

// Board drives the outputs. Inputs arrive through Handlers.
type Board interface {
	// Trigger emits one ranging pulse.
	Trigger() error

	// SetLED drives an indicator.
	SetLED(led logic.LED, on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Handlers receive input edges. They run on gpiocdev's event goroutine, so
// they must be short and safe for concurrent use with the main loop.
// Timestamps are offsets on the kernel monotonic clock.
type Handlers struct {
	Echo   func(rising bool, at time.Duration)
	Button func(at time.Duration)
	IR     func(level bool, at time.Duration)
}

// Pins holds line offsets on one chip (BCM numbering on a Raspberry Pi).
type Pins struct {
	Chip     string
	Trigger  int
	Echo     int
	Button   int
	IR       int
	Activity int
	Alert    int
}

// DefaultPins is the reference wiring.
func DefaultPins() Pins {
	return Pins{
		Chip:     "gpiochip0",
		Trigger:  23,
		Echo:     24,
		Button:   17,
		IR:       27,
		Activity: 5,
		Alert:    6,
	}
}

// Offsets returns the pins keyed by role.
func (p Pins) Offsets() map[string]int {
	return map[string]int{
		"trigger":  p.Trigger,
		"echo":     p.Echo,
		"button":   p.Button,
		"ir":       p.IR,
		"activity": p.Activity,
		"alert":    p.Alert,
	}
}
