// Package capture holds the cells shared between GPIO edge handlers and the
// main loop. Edge handlers run on their own goroutines, so every cell here is
// safe for concurrent use; the critical sections are a few assignments long.
package capture

import (
	"sync"
	"time"
)

// Sample is one echo pulse as a pair of edge timestamps. The timestamps are
// offsets on the kernel's monotonic clock, as delivered with line events.
type Sample struct {
	Begin time.Duration
	End   time.Duration
}

// Duration returns End - Begin. It is non-positive when the pair was torn
// (a falling edge without a fresh rising edge before it).
func (s Sample) Duration() time.Duration {
	return s.End - s.Begin
}

// Echo captures the most recent complete echo pulse.
type Echo struct {
	mu         sync.Mutex
	begin      time.Duration
	end        time.Duration
	ready      bool
	overwrites uint64
}

// Edge records one transition of the echo line. A rising edge overwrites any
// pending begin; a falling edge completes the pair and makes it available.
func (e *Echo) Edge(rising bool, at time.Duration) {
	e.mu.Lock()
	if rising {
		if e.ready {
			e.overwrites++
		}
		e.begin = at
	} else {
		e.end = at
		e.ready = true
	}
	e.mu.Unlock()
}

// Take returns the pending pair and clears it. ok is false if no pair
// completed since the last Take.
func (e *Echo) Take() (s Sample, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return Sample{}, false
	}
	e.ready = false
	return Sample{Begin: e.begin, End: e.end}, true
}

// Overwrites counts rising edges that arrived while a completed pair was
// still waiting to be taken.
func (e *Echo) Overwrites() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overwrites
}
