package logic

import "time"

// Timer fires once Interval has elapsed since it was last rearmed.
// The zero value is due immediately after Interval has passed since the zero time,
// so callers normally start it with NewTimer.
type Timer struct {
	Interval time.Duration
	last     time.Time
}

// NewTimer returns a Timer armed at start.
func NewTimer(interval time.Duration, start time.Time) Timer {
	return Timer{Interval: interval, last: start}
}

// Due reports whether Interval has elapsed since the last rearm.
func (t *Timer) Due(now time.Time) bool {
	return now.Sub(t.last) >= t.Interval
}

// Rearm restarts the interval from now.
func (t *Timer) Rearm(now time.Time) {
	t.last = now
}

// Cadence is a fixed-rate schedule. Unlike Timer it advances by whole
// intervals from its anchor instead of from the time it was serviced, so
// late servicing never shifts the phase.
type Cadence struct {
	Every time.Duration
	slot  time.Time
}

// NewCadence returns a Cadence whose first slot ends at start+every.
func NewCadence(every time.Duration, start time.Time) Cadence {
	return Cadence{Every: every, slot: start}
}

// Due reports whether the current slot has ended.
func (c *Cadence) Due(now time.Time) bool {
	return now.Sub(c.slot) >= c.Every
}

// Advance moves to the next slot. If now is more than one whole interval past
// the current slot, the missed slots are skipped so the caller gets a single
// firing instead of a burst.
func (c *Cadence) Advance(now time.Time) {
	if c.Every <= 0 {
		c.slot = now
		return
	}
	c.slot = c.slot.Add(c.Every)
	if behind := now.Sub(c.slot); behind >= c.Every {
		c.slot = c.slot.Add(behind / c.Every * c.Every)
	}
}

// Slot returns the start of the current slot.
func (c *Cadence) Slot() time.Time {
	return c.slot
}
