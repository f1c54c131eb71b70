package analog

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// DefaultPWMFrequency is well above visible flicker.
const DefaultPWMFrequency = 1 * physic.KiloHertz

// PWM dims an LED on a hardware PWM pin.
type PWM struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

// OpenPWM initialises the host drivers and looks up the named pin
// (for example "GPIO18").
func OpenPWM(name string, freq physic.Frequency) (*PWM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pwm pin %q not found", name)
	}
	return NewPWM(p, freq), nil
}

// NewPWM wraps an already resolved pin.
func NewPWM(pin gpio.PinOut, freq physic.Frequency) *PWM {
	if freq == 0 {
		freq = DefaultPWMFrequency
	}
	return &PWM{pin: pin, freq: freq}
}

// Duty converts an 8-bit level to a PWM duty cycle.
func Duty(level uint8) gpio.Duty {
	return gpio.Duty(int64(gpio.DutyMax) * int64(level) / 255)
}

// SetLevel sets the brightness. Level 0 drives the pin low instead of
// running a zero-duty waveform.
func (p *PWM) SetLevel(level uint8) error {
	if level == 0 {
		if err := p.pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("pwm off: %w", err)
		}
		return nil
	}
	if err := p.pin.PWM(Duty(level), p.freq); err != nil {
		return fmt.Errorf("pwm level %d: %w", level, err)
	}
	return nil
}

// Close turns the LED off and halts the pin.
func (p *PWM) Close() error {
	return errors.Join(p.SetLevel(0), p.pin.Halt())
}
