// Package logic contains the pure control logic of the range monitor: the mode
// machine, the ranging pipeline and the indicator timers.
// This package has NO hardware dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Mode is the active display/lock mode.
type Mode int

const (
	ModeDistance Mode = iota
	ModeLuminosity
	ModeReset
	ModeLock
)

func (m Mode) String() string {
	switch m {
	case ModeDistance:
		return "DISTANCE"
	case ModeLuminosity:
		return "LUMINOSITY"
	case ModeReset:
		return "RESET"
	case ModeLock:
		return "LOCK"
	}
	return "UNKNOWN"
}

// Unit is the distance unit shown on the display.
type Unit int

const (
	UnitCM Unit = iota
	UnitIN
)

// Durable encodings of Unit. StoredUnset is the erased-cell value.
const (
	StoredCM    byte = 0
	StoredIN    byte = 1
	StoredUnset byte = 255
)

func (u Unit) String() string {
	if u == UnitIN {
		return "in"
	}
	return "cm"
}

// Stored returns the durable byte for u.
func (u Unit) Stored() byte {
	if u == UnitIN {
		return StoredIN
	}
	return StoredCM
}

// UnitFromStored decodes a durable byte. The erased value and anything
// unrecognised decode to centimeters.
func UnitFromStored(b byte) Unit {
	if b == StoredIN {
		return UnitIN
	}
	return UnitCM
}

// Toggle returns the other unit.
func (u Unit) Toggle() Unit {
	if u == UnitCM {
		return UnitIN
	}
	return UnitCM
}

// Command is one decoded remote-control instruction.
type Command int

const (
	CommandNone Command = iota
	CommandOff
	CommandStop
	CommandPlay
	CommandUp
	CommandDown
	CommandToggleUnit
)

// Commands lists every command including CommandNone.
var Commands = []Command{
	CommandNone,
	CommandOff,
	CommandStop,
	CommandPlay,
	CommandUp,
	CommandDown,
	CommandToggleUnit,
}

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "NONE"
	case CommandOff:
		return "OFF"
	case CommandStop:
		return "STOP"
	case CommandPlay:
		return "PLAY"
	case CommandUp:
		return "UP"
	case CommandDown:
		return "DOWN"
	case CommandToggleUnit:
		return "TOGGLE_UNIT"
	}
	return "UNKNOWN"
}

// ParseCommand is the inverse of Command.String.
func ParseCommand(s string) (Command, bool) {
	for _, c := range Commands {
		if c.String() == s {
			return c, true
		}
	}
	return CommandNone, false
}

// Causes recorded on transitions that were not driven by a remote command.
const (
	CauseButton    = "button"
	CauseProximity = "proximity"
)

// EventType represents a published state change.
type EventType string

const (
	EventModeChanged EventType = "MODE_CHANGED"
	EventUnitChanged EventType = "UNIT_CHANGED"
)

// Event represents a state change to be published.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	From       Mode
	To         Mode
	Unit       Unit
	DistanceCm float64
	Cause      string
}

// EventCounts tracks the number of state changes since startup.
type EventCounts struct {
	ModeChanges int
	UnitChanges int
	Locks       int
	Unlocks     int
}

// Add counts e.
func (c *EventCounts) Add(e Event) {
	switch e.Type {
	case EventModeChanged:
		c.ModeChanges++
		if e.To == ModeLock {
			c.Locks++
		}
		if e.From == ModeLock {
			c.Unlocks++
		}
	case EventUnitChanged:
		c.UnitChanges++
	}
}
