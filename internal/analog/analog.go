// Package analog reads the ambient light sensor and drives the dimmed LED.
package analog

import "sync"

// Full scale of a Sensor reading.
const Max = 1023

// Sensor is a 10-bit analog input.
type Sensor interface {
	Read() (int, error)
}

// Dimmer is an 8-bit brightness output.
type Dimmer interface {
	SetLevel(level uint8) error
}

// FakeSensor returns a settable value.
type FakeSensor struct {
	mu    sync.Mutex
	value int
	reads int

	// ReadErr, if set, is returned by Read.
	ReadErr error
}

// NewFakeSensor returns a sensor reading v.
func NewFakeSensor(v int) *FakeSensor {
	return &FakeSensor{value: v}
}

func (f *FakeSensor) Read() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	return f.value, nil
}

// Set changes the value returned by Read, clamped to [0, Max].
func (f *FakeSensor) Set(v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = min(max(v, 0), Max)
}

// Value returns the current value without counting a read.
func (f *FakeSensor) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Reads returns how many times Read was called.
func (f *FakeSensor) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// FakeDimmer records every level it is given.
type FakeDimmer struct {
	mu     sync.Mutex
	levels []uint8
}

func (f *FakeDimmer) SetLevel(level uint8) error {
	f.mu.Lock()
	f.levels = append(f.levels, level)
	f.mu.Unlock()
	return nil
}

// Levels returns a copy of the recorded levels.
func (f *FakeDimmer) Levels() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint8(nil), f.levels...)
}

// Level returns the last level set, or 0.
func (f *FakeDimmer) Level() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.levels) == 0 {
		return 0
	}
	return f.levels[len(f.levels)-1]
}

// Constant is a Sensor for boards without a light sensor.
type Constant int

func (c Constant) Read() (int, error) { return int(c), nil }

// NoDimmer is a Dimmer for boards without a dimmed LED.
type NoDimmer struct{}

func (NoDimmer) SetLevel(uint8) error { return nil }
