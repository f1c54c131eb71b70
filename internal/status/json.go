package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Unit          string       `json:"unit"`
	Distance      DistanceJSON `json:"distance"`
	Luminosity    int          `json:"luminosity"`
	AmbientLevel  int          `json:"ambient_level"`
	LEDs          LEDsJSON     `json:"leds"`
	Display       []string     `json:"display"`
	BootID        string       `json:"boot_id"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        ConfigJSON   `json:"config"`
}

// DistanceJSON is the last ranging result. Values are zero until Valid.
type DistanceJSON struct {
	Valid       bool    `json:"valid"`
	Centimeters float64 `json:"cm"`
	Inches      float64 `json:"in"`
	EchoUs      int64   `json:"echo_us"`
	BlinkMs     float64 `json:"blink_ms"`
}

// LEDsJSON reports indicator outputs.
type LEDsJSON struct {
	Activity bool `json:"activity"`
	Alert    bool `json:"alert"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	ModeChanges int `json:"mode_changes"`
	UnitChanges int `json:"unit_changes"`
	Locks       int `json:"locks"`
	Unlocks     int `json:"unlocks"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Board       string  `json:"board"`
	TickMs      int64   `json:"tick_ms"`
	RangingMs   int64   `json:"ranging_ms"`
	PollMs      int64   `json:"poll_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	LockZoneCm  float64 `json:"lock_zone_cm"`
	WarningCm   float64 `json:"warning_cm"`
	Broker      string  `json:"broker"`
	HTTPPort    string  `json:"http_port"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Mode:          snap.Mode.String(),
		Unit:          snap.Unit.String(),
		Luminosity:    snap.Light,
		AmbientLevel:  int(snap.Ambient),
		LEDs:          LEDsJSON{Activity: snap.Activity, Alert: snap.Alert},
		Display:       []string{snap.Display[0], snap.Display[1]},
		BootID:        snap.BootID,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			ModeChanges: snap.Counts.ModeChanges,
			UnitChanges: snap.Counts.UnitChanges,
			Locks:       snap.Counts.Locks,
			Unlocks:     snap.Counts.Unlocks,
		},
		Config: ConfigJSON(snap.Config),
	}
	if snap.Valid {
		inner.Distance = DistanceJSON{
			Valid:       true,
			Centimeters: round2(snap.Reading.Centimeters),
			Inches:      round2(snap.Reading.Inches),
			EchoUs:      snap.Reading.Echo.Microseconds(),
			BlinkMs:     round2(float64(snap.Reading.Interval) / float64(time.Millisecond)),
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
