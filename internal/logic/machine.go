package logic

// cyclable is the UP/DOWN rotation. LOCK is deliberately absent: it can only
// be entered through Guard.
var cyclable = [...]Mode{ModeDistance, ModeLuminosity, ModeReset}

// Transition describes what one evaluation of the machine did.
type Transition struct {
	From, To    Mode
	Unit        Unit
	UnitChanged bool
	// Persist is set when the unit must be written to the durable store,
	// even if its value did not change.
	Persist bool
	Cause   string
}

// Changed reports whether the mode changed.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Machine is the four-state mode machine. It is not safe for concurrent use;
// only the main loop drives it.
type Machine struct {
	mode Mode
	unit Unit
}

// NewMachine returns a machine in DISTANCE mode with the given unit.
func NewMachine(unit Unit) *Machine {
	return &Machine{mode: ModeDistance, unit: unit}
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode { return m.mode }

// Unit returns the active unit.
func (m *Machine) Unit() Unit { return m.unit }

// Apply evaluates one command and the button latch.
//
// While locked only PLAY or a button press unlocks; everything else is ignored.
// Otherwise OFF confirms a pending RESET, and the remaining commands switch or
// rotate modes or toggle the unit.
func (m *Machine) Apply(cmd Command, pressed bool) Transition {
	t := Transition{From: m.mode, To: m.mode, Unit: m.unit, Cause: cmd.String()}

	if m.mode == ModeLock {
		switch {
		case cmd == CommandPlay:
			m.mode = ModeDistance
		case pressed:
			m.mode = ModeDistance
			t.Cause = CauseButton
		}
		t.To = m.mode
		return t
	}

	if m.mode == ModeReset && cmd == CommandOff {
		m.mode = ModeDistance
		t.UnitChanged = m.unit != UnitCM
		m.unit = UnitCM
		t.Persist = true
		t.To, t.Unit = m.mode, m.unit
		return t
	}

	switch cmd {
	case CommandStop:
		m.mode = ModeReset
	case CommandPlay:
		m.mode = ModeDistance
	case CommandUp:
		m.mode = step(m.mode, 1)
	case CommandDown:
		m.mode = step(m.mode, -1)
	case CommandToggleUnit:
		m.unit = m.unit.Toggle()
		t.UnitChanged = true
		t.Persist = true
	}
	t.To, t.Unit = m.mode, m.unit
	return t
}

// Guard forces LOCK while in DISTANCE once a valid reading is inside the lock
// zone. It runs after Apply and overrides whatever Apply decided.
func (m *Machine) Guard(r *Ranger, lockZoneCm float64) Transition {
	t := Transition{From: m.mode, To: m.mode, Unit: m.unit, Cause: CauseProximity}
	if m.mode != ModeDistance || !r.Valid() {
		return t
	}
	if r.Reading().Centimeters < lockZoneCm {
		m.mode = ModeLock
		t.To = m.mode
	}
	return t
}

func step(mode Mode, delta int) Mode {
	n := len(cyclable)
	for i, c := range cyclable {
		if c == mode {
			return cyclable[((i+delta)%n+n)%n]
		}
	}
	// Not cyclable (LOCK never reaches here); stay put.
	return mode
}
