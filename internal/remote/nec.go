package remote

import (
	"sync"
	"time"
)

// Pulse is one mark (carrier burst) followed by one space.
type Pulse [2]time.Duration

// NEC protocol timings.
const (
	necLeaderMark  = 9000 * time.Microsecond
	necLeaderSpace = 4500 * time.Microsecond
	necRepeatSpace = 2250 * time.Microsecond
	necBitMark     = 560 * time.Microsecond
	necZeroSpace   = 560 * time.Microsecond
	necOneSpace    = 1690 * time.Microsecond
	necFrameGap    = 40 * time.Millisecond
)

// Pulses encodes f as NEC marks and spaces, leader first. The command byte is
// followed by its complement. The trailing stop burst is returned with the
// inter-frame gap as its space. A repeat frame encodes as the repeat code.
func (f Frame) Pulses() []Pulse {
	if f.Repeat {
		return []Pulse{{necLeaderMark, necRepeatSpace}, {necBitMark, necFrameGap}}
	}
	buf := uint32(f.Address) | uint32(f.Command)<<16 | uint32(^f.Command)<<24

	out := make([]Pulse, 0, 34)
	out = append(out, Pulse{necLeaderMark, necLeaderSpace})
	for bit := 0; bit < 32; bit++ {
		if buf>>bit&1 == 1 {
			out = append(out, Pulse{necBitMark, necOneSpace})
		} else {
			out = append(out, Pulse{necBitMark, necZeroSpace})
		}
	}
	return append(out, Pulse{necBitMark, necFrameGap})
}

// NEC decodes NEC pulse-distance frames from the edges of an active-low IR
// receiver line. It implements Decoder and holds a single frame: once a frame
// is captured, input is ignored until Resume.
type NEC struct {
	mu sync.Mutex

	// edge tracking
	started  bool
	lastEdge time.Duration
	mark     time.Duration
	haveMark bool

	// frame assembly
	inFrame bool
	buf     uint32
	bits    int
	last    Frame
	hasLast bool

	frame Frame
	held  bool

	frames  int
	dropped int
}

// NewNEC returns an idle decoder.
func NewNEC() *NEC {
	return &NEC{}
}

// Edge feeds one transition of the receiver output. level is the line level
// after the transition; the receiver pulls low while it sees carrier.
func (n *NEC) Edge(level bool, at time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		n.started = true
		n.lastEdge = at
		return
	}
	elapsed := at - n.lastEdge
	n.lastEdge = at

	if level {
		// carrier stopped: the mark just ended
		n.mark = elapsed
		n.haveMark = true
		return
	}
	// carrier started: the space just ended
	if n.haveMark {
		n.haveMark = false
		n.pulse(Pulse{n.mark, elapsed})
	}
}

// HandlePulse feeds one already-measured mark/space pair.
func (n *NEC) HandlePulse(p Pulse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pulse(p)
}

func (n *NEC) pulse(p Pulse) {
	if n.held {
		n.inFrame = false
		return
	}
	mark, space := p[0], p[1]

	if within(mark, necLeaderMark) {
		n.inFrame = false
		switch {
		case within(space, necLeaderSpace):
			n.inFrame = true
			n.buf, n.bits = 0, 0
		case within(space, necRepeatSpace) && n.hasLast:
			f := n.last
			f.Repeat = true
			n.capture(f)
		}
		return
	}

	if !n.inFrame || !within(mark, necBitMark) {
		n.inFrame = false
		return
	}
	switch {
	case within(space, necZeroSpace):
	case within(space, necOneSpace):
		n.buf |= 1 << n.bits
	default:
		n.inFrame = false
		return
	}
	n.bits++
	if n.bits < 32 {
		return
	}
	n.inFrame = false

	cmd := uint8(n.buf >> 16)
	inv := uint8(n.buf >> 24)
	if cmd != ^inv {
		n.dropped++
		return
	}
	f := Frame{Address: uint16(n.buf), Command: cmd}
	n.last, n.hasLast = f, true
	n.capture(f)
}

func (n *NEC) capture(f Frame) {
	n.frame = f
	n.held = true
	n.frames++
}

// Decode returns the held frame, if any. The frame stays held until Resume.
func (n *NEC) Decode() (Frame, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frame, n.held
}

// Resume releases the held frame and re-enables decoding.
func (n *NEC) Resume() {
	n.mu.Lock()
	n.held = false
	n.mu.Unlock()
}

// Stats returns the number of frames captured and frames dropped for a bad
// checksum.
func (n *NEC) Stats() (frames, dropped int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames, n.dropped
}

// within reports whether d is within ±25% of nominal.
func within(d, nominal time.Duration) bool {
	return d >= nominal*3/4 && d <= nominal*5/4
}
