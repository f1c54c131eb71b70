package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/range-monitor/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := logic.Event{
		Timestamp:  time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:       logic.EventModeChanged,
		From:       logic.ModeDistance,
		To:         logic.ModeLock,
		Unit:       logic.UnitCM,
		DistanceCm: 2.9497,
		Cause:      logic.CauseProximity,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Monitor.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Monitor.Timestamp)
	}
	if parsed.Monitor.Event != "MODE_CHANGED" {
		t.Errorf("unexpected event: %s", parsed.Monitor.Event)
	}
	if parsed.Monitor.From != "DISTANCE" || parsed.Monitor.To != "LOCK" {
		t.Errorf("unexpected transition: %s -> %s", parsed.Monitor.From, parsed.Monitor.To)
	}
	if parsed.Monitor.DistanceCm != 2.95 {
		t.Errorf("distance_cm = %v, want 2.95", parsed.Monitor.DistanceCm)
	}
	if parsed.Monitor.Cause != "proximity" {
		t.Errorf("unexpected cause: %s", parsed.Monitor.Cause)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventUnitChanged,
		From:      logic.ModeDistance,
		To:        logic.ModeDistance,
		Unit:      logic.UnitIN,
		Cause:     "TOGGLE_UNIT",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"monitor":{"timestamp":"2026-02-02T22:18:12Z","event":"UNIT_CHANGED","from":"DISTANCE","to":"DISTANCE","unit":"in","distance_cm":0,"cause":"TOGGLE_UNIT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadOmitsEmptyCause(t *testing.T) {
	payload, err := FormatPayload(logic.Event{Type: logic.EventModeChanged})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["monitor"]["cause"]; ok {
		t.Error("cause should be omitted when empty")
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 3, 0, 18, 12, 0, loc),
		Type:      logic.EventModeChanged,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Monitor.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Monitor.Timestamp)
	}
}

func TestTopic(t *testing.T) {
	if Topic != "home/range-monitor/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "home/range-monitor/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     EventReconnected,
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: EventHeartbeat, RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload := WillPayload(time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC))

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFakePublisher(t *testing.T) {
	pub := NewFakePublisher()

	event := logic.Event{
		Timestamp: time.Now(),
		Type:      logic.EventModeChanged,
		From:      logic.ModeDistance,
		To:        logic.ModeLuminosity,
	}
	if err := pub.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.Events))
	}
	if pub.Events[0].To != logic.ModeLuminosity {
		t.Errorf("unexpected event: %+v", pub.Events[0])
	}
	if len(pub.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(pub.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishError = errors.New("broker down")
	pub.PublishSystemError = errors.New("broker down")

	if err := pub.Publish(logic.Event{}); err == nil {
		t.Error("expected publish error")
	}
	if err := pub.PublishSystem(SystemEvent{Event: EventStartup}); err == nil {
		t.Error("expected system publish error")
	}
	if len(pub.Events) != 0 || len(pub.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherRecordsRetainedFlag(t *testing.T) {
	pub := NewFakePublisher()
	if err := pub.PublishSystem(SystemEvent{Event: EventStartup, Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pub.SystemEvents[0].Retained {
		t.Error("retained flag not recorded")
	}
}

func TestFakePublisherRetainedStatus(t *testing.T) {
	pub := NewFakePublisher()
	if pub.RetainedStatus() != nil {
		t.Fatal("no retained status before any publish")
	}
	ts := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	_ = pub.PublishSystem(SystemEvent{Timestamp: ts, Event: EventStartup, Retained: true})
	_ = pub.PublishSystem(SystemEvent{Timestamp: ts, Event: EventHeartbeat})
	if got := string(pub.RetainedStatus()); got != string(pub.SystemPayloads[0]) {
		t.Errorf("heartbeat replaced retained status: %s", got)
	}

	_ = pub.PublishSystem(SystemEvent{Event: EventShutdown, Retained: true, RawPayload: WillPayload(ts)})
	if got := string(pub.RetainedStatus()); got != string(WillPayload(ts)) {
		t.Errorf("retained status: got %s, want the shutdown payload", got)
	}
	if len(pub.SystemEvents) != 3 {
		t.Errorf("expected 3 recorded system events, got %d", len(pub.SystemEvents))
	}
}

// fakeToken completes immediately with err.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the parts of paho.Client the publisher uses.
type fakeClient struct {
	paho.Client

	mu         sync.Mutex
	open       bool
	publishErr error
	sent       []sent
	disconnect bool
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return &fakeToken{err: c.publishErr}
	}
	c.sent = append(c.sent, sent{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.disconnect = true
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	client := &fakeClient{open: true}
	pub := newPublisherWithClient(client, 8)

	if err := pub.Publish(logic.Event{Type: logic.EventModeChanged}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pub.PublishSystem(SystemEvent{Event: EventStartup, Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.sent))
	}
	if client.sent[0].topic != Topic || client.sent[0].qos != 0 || client.sent[0].retained {
		t.Errorf("unexpected event message: %+v", client.sent[0])
	}
	if client.sent[1].topic != TopicSystem || client.sent[1].qos != 1 || !client.sent[1].retained {
		t.Errorf("unexpected system message: %+v", client.sent[1])
	}
	if pub.Queued() != 0 {
		t.Errorf("expected empty outbox, got %d", pub.Queued())
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	client := &fakeClient{}
	pub := newPublisherWithClient(client, 8)

	for i := 0; i < 3; i++ {
		if err := pub.Publish(logic.Event{Type: logic.EventModeChanged, DistanceCm: float64(i)}); err != nil {
			t.Fatalf("buffered publish should not fail: %v", err)
		}
	}
	if len(client.sent) != 0 {
		t.Fatalf("nothing should be sent while disconnected, got %d", len(client.sent))
	}
	if pub.Queued() != 3 {
		t.Fatalf("Queued() = %d, want 3", pub.Queued())
	}

	client.open = true
	pub.handleConnect(client)

	if len(client.sent) != 3 {
		t.Fatalf("expected 3 replayed messages, got %d", len(client.sent))
	}
	for i, m := range client.sent {
		var parsed Payload
		if err := json.Unmarshal(m.payload, &parsed); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if parsed.Monitor.DistanceCm != float64(i) {
			t.Errorf("message %d out of order: %v", i, parsed.Monitor.DistanceCm)
		}
	}
	if pub.Queued() != 0 {
		t.Errorf("outbox should be drained, got %d", pub.Queued())
	}
}

func TestRealPublisherReconnectedOnlyAfterFirstConnect(t *testing.T) {
	client := &fakeClient{open: true}
	pub := newPublisherWithClient(client, 8)
	pub.now = func() time.Time { return time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC) }

	var changes []bool
	pub.onChange = func(up bool) { changes = append(changes, up) }

	pub.handleConnect(client)
	if len(client.sent) != 0 {
		t.Fatalf("first connect should not announce RECONNECTED, sent %d", len(client.sent))
	}

	pub.handleConnectionLost(client, errors.New("eof"))
	pub.handleConnect(client)

	if len(client.sent) != 1 {
		t.Fatalf("expected RECONNECTED message, got %d messages", len(client.sent))
	}
	want := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(client.sent[0].payload) != want {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", client.sent[0].payload, want)
	}
	if len(changes) != 3 || !changes[0] || changes[1] || !changes[2] {
		t.Errorf("unexpected connection changes: %v", changes)
	}
}

func TestRealPublisherBuffersFailedSend(t *testing.T) {
	client := &fakeClient{open: true, publishErr: errors.New("write failed")}
	pub := newPublisherWithClient(client, 8)

	if err := pub.Publish(logic.Event{Type: logic.EventModeChanged}); err == nil {
		t.Error("expected error from failed send")
	}
	if pub.Queued() != 1 {
		t.Errorf("failed message should be queued, got %d", pub.Queued())
	}
}

func TestRealPublisherClose(t *testing.T) {
	client := &fakeClient{}
	pub := newPublisherWithClient(client, 8)
	_ = pub.Publish(logic.Event{})

	if err := pub.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !client.disconnect {
		t.Error("expected Disconnect to be called")
	}
}
