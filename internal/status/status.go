// Package status provides a thread-safe status tracker for the range-monitor daemon.
// It is written by the main loop and read by HTTP handlers and the MQTT publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/range-monitor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Board       string
	TickMs      int64
	RangingMs   int64
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	LockZoneCm  float64
	WarningCm   float64
	Broker      string
	HTTPPort    string
}

// State is what the main loop reports after each iteration.
type State struct {
	Mode     logic.Mode
	Unit     logic.Unit
	Reading  logic.Reading
	Valid    bool
	Light    int
	Ambient  uint8
	Activity bool
	Alert    bool
	Display  [2]string
	Counts   logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	State
	Seq           uint64 // bumped whenever State changes
	BootID        string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, boot id and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:    bootID,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the loop state. Called from runLoop on every tick; Seq only
// moves when something actually changed.
func (t *Tracker) Update(s State) {
	t.mu.Lock()
	if t.snap.State != s {
		t.snap.State = s
		t.snap.Seq++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
