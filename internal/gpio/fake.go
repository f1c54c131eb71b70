package gpio

import (
	"sync"

	"github.com/sweeney/range-monitor/internal/logic"
)

// FakeBoard is a test double that records pulses and LED writes.
type FakeBoard struct {
	mu sync.Mutex

	pulses int
	leds   map[logic.LED]bool
	writes []logic.LEDWrite
	closed bool

	// OnTrigger, if set, runs after each recorded pulse. The simulation
	// rig uses it to produce echo edges.
	OnTrigger func()

	// TriggerErr and LEDErr, if set, are returned by the matching call.
	TriggerErr error
	LEDErr     error
}

// NewFakeBoard returns a board with both LEDs off.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{leds: make(map[logic.LED]bool)}
}

// Trigger records a pulse.
func (f *FakeBoard) Trigger() error {
	f.mu.Lock()
	if f.TriggerErr != nil {
		err := f.TriggerErr
		f.mu.Unlock()
		return err
	}
	f.pulses++
	hook := f.OnTrigger
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// SetLED records the write.
func (f *FakeBoard) SetLED(led logic.LED, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LEDErr != nil {
		return f.LEDErr
	}
	f.leds[led] = on
	f.writes = append(f.writes, logic.LEDWrite{LED: led, On: on})
	return nil
}

// Close marks the board as closed and turns the LEDs off.
func (f *FakeBoard) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.leds[logic.LEDActivity] = false
	f.leds[logic.LEDAlert] = false
	return nil
}

// Pulses returns the number of trigger pulses.
func (f *FakeBoard) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulses
}

// LED returns the current state of led.
func (f *FakeBoard) LED(led logic.LED) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leds[led]
}

// Writes returns a copy of all LED writes in order.
func (f *FakeBoard) Writes() []logic.LEDWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.LEDWrite(nil), f.writes...)
}

// Closed reports whether Close was called.
func (f *FakeBoard) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
