package logic

import "testing"

func TestModeString(t *testing.T) {
	tests := map[Mode]string{
		ModeDistance:   "DISTANCE",
		ModeLuminosity: "LUMINOSITY",
		ModeReset:      "RESET",
		ModeLock:       "LOCK",
		Mode(42):       "UNKNOWN",
	}
	for m, want := range tests {
		if m.String() != want {
			t.Errorf("Mode(%d).String() = %q, want %q", int(m), m.String(), want)
		}
	}
}

func TestUnitFromStored(t *testing.T) {
	tests := []struct {
		b    byte
		want Unit
	}{
		{StoredCM, UnitCM},
		{StoredIN, UnitIN},
		{StoredUnset, UnitCM},
		{7, UnitCM},
	}
	for _, tt := range tests {
		if got := UnitFromStored(tt.b); got != tt.want {
			t.Errorf("UnitFromStored(%d) = %s, want %s", tt.b, got, tt.want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	for _, c := range Commands {
		got, ok := ParseCommand(c.String())
		if !ok || got != c {
			t.Errorf("ParseCommand(%q) = %s, %v", c.String(), got, ok)
		}
	}
	if _, ok := ParseCommand("EJECT"); ok {
		t.Error("expected unknown command to fail")
	}
}

func TestEventCounts(t *testing.T) {
	var c EventCounts
	c.Add(Event{Type: EventModeChanged, From: ModeDistance, To: ModeLock})
	c.Add(Event{Type: EventModeChanged, From: ModeLock, To: ModeDistance})
	c.Add(Event{Type: EventUnitChanged})

	if c.ModeChanges != 2 || c.Locks != 1 || c.Unlocks != 1 || c.UnitChanges != 1 {
		t.Errorf("unexpected counts %+v", c)
	}
}
