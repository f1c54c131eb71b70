//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/range-monitor/internal/logic"
)

// RealBoard drives the monitor's lines through the Linux GPIO character device.
type RealBoard struct {
	chip    *gpiocdev.Chip
	trigger *gpiocdev.Line
	leds    map[logic.LED]*gpiocdev.Line
	inputs  []*gpiocdev.Line
}

// NewRealBoard requests every line on pins.Chip. Input edges are delivered to
// h as soon as this returns; nil handlers leave the line unrequested.
func NewRealBoard(pins Pins, h Handlers) (*RealBoard, error) {
	chip, err := gpiocdev.NewChip(pins.Chip, gpiocdev.WithConsumer("range-monitor"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", pins.Chip, err)
	}
	b := &RealBoard{chip: chip, leds: make(map[logic.LED]*gpiocdev.Line)}

	fail := func(err error) (*RealBoard, error) {
		return nil, errors.Join(err, b.Close())
	}

	if b.trigger, err = chip.RequestLine(pins.Trigger, gpiocdev.AsOutput(0)); err != nil {
		return fail(fmt.Errorf("request trigger pin %d: %w", pins.Trigger, err))
	}
	for led, offset := range map[logic.LED]int{logic.LEDActivity: pins.Activity, logic.LEDAlert: pins.Alert} {
		l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			return fail(fmt.Errorf("request %s led pin %d: %w", led, offset, err))
		}
		b.leds[led] = l
	}

	if h.Echo != nil {
		echo := h.Echo
		l, err := chip.RequestLine(pins.Echo,
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				echo(evt.Type == gpiocdev.LineEventRisingEdge, evt.Timestamp)
			}))
		if err != nil {
			return fail(fmt.Errorf("request echo pin %d: %w", pins.Echo, err))
		}
		b.inputs = append(b.inputs, l)
	}

	if h.Button != nil {
		button := h.Button
		// Pull-down: the button pulls the line high when pressed.
		l, err := chip.RequestLine(pins.Button,
			gpiocdev.AsInput,
			gpiocdev.WithPullDown,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				button(evt.Timestamp)
			}))
		if err != nil {
			return fail(fmt.Errorf("request button pin %d: %w", pins.Button, err))
		}
		b.inputs = append(b.inputs, l)
	}

	if h.IR != nil {
		ir := h.IR
		l, err := chip.RequestLine(pins.IR,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				ir(evt.Type == gpiocdev.LineEventRisingEdge, evt.Timestamp)
			}))
		if err != nil {
			return fail(fmt.Errorf("request ir pin %d: %w", pins.IR, err))
		}
		b.inputs = append(b.inputs, l)
	}

	return b, nil
}

// Trigger drives the trigger line high for TriggerPulse. The pulse is too
// short for time.Sleep, so it spins.
func (b *RealBoard) Trigger() error {
	if err := b.trigger.SetValue(1); err != nil {
		return fmt.Errorf("trigger high: %w", err)
	}
	start := time.Now()
	for time.Since(start) < TriggerPulse {
	}
	if err := b.trigger.SetValue(0); err != nil {
		return fmt.Errorf("trigger low: %w", err)
	}
	return nil
}

// SetLED drives an indicator line.
func (b *RealBoard) SetLED(led logic.LED, on bool) error {
	l, ok := b.leds[led]
	if !ok {
		return fmt.Errorf("unknown led %s", led)
	}
	v := 0
	if on {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set %s led: %w", led, err)
	}
	return nil
}

// Close releases GPIO resources.
// Outputs are driven low and every line is returned to input with pull-down
// (matching Pi boot defaults) before closing, so nothing is left lit or held
// across a restart.
func (b *RealBoard) Close() error {
	var errs []error

	release := func(name string, l *gpiocdev.Line) {
		if l == nil {
			return
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}

	for _, l := range b.inputs {
		release("input", l)
	}
	for led, l := range b.leds {
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s led: %w", led, err))
		}
		release(led.String()+" led", l)
	}
	release("trigger", b.trigger)

	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
