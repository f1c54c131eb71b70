package gpio

import (
	"errors"
	"testing"

	"github.com/sweeney/range-monitor/internal/logic"
)

func TestFakeBoardTrigger(t *testing.T) {
	f := NewFakeBoard()
	hooked := 0
	f.OnTrigger = func() { hooked++ }

	for i := 0; i < 3; i++ {
		if err := f.Trigger(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if f.Pulses() != 3 {
		t.Errorf("expected 3 pulses, got %d", f.Pulses())
	}
	if hooked != 3 {
		t.Errorf("expected hook to run 3 times, got %d", hooked)
	}
}

func TestFakeBoardTriggerError(t *testing.T) {
	f := NewFakeBoard()
	f.TriggerErr = errors.New("line busy")

	if err := f.Trigger(); err == nil {
		t.Error("expected error")
	}
	if f.Pulses() != 0 {
		t.Errorf("failed trigger should not count, got %d", f.Pulses())
	}
}

func TestFakeBoardLEDs(t *testing.T) {
	f := NewFakeBoard()
	f.SetLED(logic.LEDActivity, true)
	f.SetLED(logic.LEDAlert, true)
	f.SetLED(logic.LEDAlert, false)

	if !f.LED(logic.LEDActivity) || f.LED(logic.LEDAlert) {
		t.Errorf("unexpected LED state activity=%v alert=%v", f.LED(logic.LEDActivity), f.LED(logic.LEDAlert))
	}
	if len(f.Writes()) != 3 {
		t.Errorf("expected 3 writes, got %d", len(f.Writes()))
	}

	f.LEDErr = errors.New("short")
	if err := f.SetLED(logic.LEDActivity, false); err == nil {
		t.Error("expected error")
	}
	if !f.LED(logic.LEDActivity) {
		t.Error("failed write should not change state")
	}
}

func TestFakeBoardClose(t *testing.T) {
	f := NewFakeBoard()
	f.SetLED(logic.LEDActivity, true)

	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Closed() {
		t.Error("expected closed")
	}
	if f.LED(logic.LEDActivity) {
		t.Error("close should turn LEDs off")
	}
}

func TestDefaultPinsDistinct(t *testing.T) {
	seen := map[int]string{}
	for role, off := range DefaultPins().Offsets() {
		if other, ok := seen[off]; ok {
			t.Errorf("pin %d used by %s and %s", off, role, other)
		}
		seen[off] = role
	}
}
