package capture

import (
	"sync"
	"sync/atomic"
	"time"
)

// Latch is a debounced press latch. Edge is called from the button handler;
// Take is called once per loop iteration.
type Latch struct {
	window time.Duration

	mu       sync.Mutex
	last     time.Duration
	accepted bool // any press accepted yet

	set     atomic.Bool
	presses atomic.Uint64
}

// NewLatch returns a latch that ignores edges closer than window to the last
// accepted one.
func NewLatch(window time.Duration) *Latch {
	return &Latch{window: window}
}

// Edge offers a press at the given timestamp and reports whether it was
// accepted.
func (l *Latch) Edge(at time.Duration) bool {
	l.mu.Lock()
	if l.accepted && at-l.last <= l.window {
		l.mu.Unlock()
		return false
	}
	l.accepted = true
	l.last = at
	l.mu.Unlock()

	l.presses.Add(1)
	l.set.Store(true)
	return true
}

// Take reports whether a press was latched since the last Take, and clears it.
func (l *Latch) Take() bool {
	return l.set.Swap(false)
}

// Presses counts accepted presses since creation.
func (l *Latch) Presses() uint64 {
	return l.presses.Load()
}
