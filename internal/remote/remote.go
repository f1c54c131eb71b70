// Package remote turns infrared remote-control frames into mode commands.
//
// A Decoder produces frames; the Adapter polls it at a fixed rate and maps
// each frame's command byte through a Keymap.
package remote

import (
	"time"

	"github.com/sweeney/range-monitor/internal/logic"
)

// Frame is one decoded remote-control frame.
type Frame struct {
	Address uint16
	Command uint8
	Repeat  bool // held-button repeat code
}

// Decoder is the IR bit decoder. Decode returns the buffered frame, if any;
// the decoder keeps it (and ignores new input) until Resume is called.
type Decoder interface {
	Decode() (Frame, bool)
	Resume()
}

// Default command codes of the common 21-key NEC remote.
const (
	CodeOff    uint8 = 69
	CodeStop   uint8 = 71
	CodePlay   uint8 = 64
	CodeDown   uint8 = 7
	CodeUp     uint8 = 9
	CodeToggle uint8 = 25
)

// Keymap maps command bytes to commands.
type Keymap struct {
	Codes         map[uint8]logic.Command
	AcceptRepeats bool
}

// DefaultKeymap returns the mapping for the 21-key remote. Repeat codes are
// accepted, so a held button keeps sending its command.
func DefaultKeymap() Keymap {
	return Keymap{AcceptRepeats: true, Codes: map[uint8]logic.Command{
		CodeOff:    logic.CommandOff,
		CodeStop:   logic.CommandStop,
		CodePlay:   logic.CommandPlay,
		CodeDown:   logic.CommandDown,
		CodeUp:     logic.CommandUp,
		CodeToggle: logic.CommandToggleUnit,
	}}
}

// Lookup returns the command for f, or CommandNone.
func (k Keymap) Lookup(f Frame) logic.Command {
	if f.Repeat && !k.AcceptRepeats {
		return logic.CommandNone
	}
	if cmd, ok := k.Codes[f.Command]; ok {
		return cmd
	}
	return logic.CommandNone
}

// Adapter rate-limits decoder polling and maps frames to commands.
type Adapter struct {
	dec      Decoder
	keymap   Keymap
	interval time.Duration
	lastPoll time.Time

	frames  int
	unknown int
}

// NewAdapter returns an Adapter whose first poll is allowed interval after start.
func NewAdapter(dec Decoder, keymap Keymap, interval time.Duration, start time.Time) *Adapter {
	return &Adapter{dec: dec, keymap: keymap, interval: interval, lastPoll: start}
}

// Poll returns the command decoded since the last poll, or CommandNone.
// The decoder is not touched until interval has elapsed since the last poll.
func (a *Adapter) Poll(now time.Time) logic.Command {
	if now.Sub(a.lastPoll) < a.interval {
		return logic.CommandNone
	}
	a.lastPoll = now

	f, ok := a.dec.Decode()
	if !ok {
		return logic.CommandNone
	}
	a.dec.Resume()
	a.frames++

	cmd := a.keymap.Lookup(f)
	if cmd == logic.CommandNone && !f.Repeat {
		a.unknown++
	}
	return cmd
}

// Frames returns how many frames have been consumed.
func (a *Adapter) Frames() int { return a.frames }

// Unknown returns how many non-repeat frames carried an unmapped code.
func (a *Adapter) Unknown() int { return a.unknown }
