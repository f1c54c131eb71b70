// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/range-monitor/internal/logic"
)

// Topic is the MQTT topic for mode and unit events.
const Topic = "home/range-monitor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/range-monitor/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a monitor event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Monitor MonitorPayload `json:"monitor"`
}

// MonitorPayload contains the event details.
type MonitorPayload struct {
	Timestamp  string  `json:"timestamp"`
	Event      string  `json:"event"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Unit       string  `json:"unit"`
	DistanceCm float64 `json:"distance_cm"`
	Cause      string  `json:"cause,omitempty"`
}

// FormatPayload creates the JSON payload for a monitor event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Monitor: MonitorPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      string(event.Type),
			From:       event.From.String(),
			To:         event.To.String(),
			Unit:       event.Unit.String(),
			DistanceCm: math.Round(event.DistanceCm*100) / 100,
			Cause:      event.Cause,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes if the
// connection drops without a clean disconnect.
func WillPayload(now time.Time) []byte {
	data, _ := FormatSystemPayload(SystemEvent{
		Timestamp: now,
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})
	return data
}

// NopPublisher drops everything. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(logic.Event) error       { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }
