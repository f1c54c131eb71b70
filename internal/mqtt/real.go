package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/range-monitor/internal/logic"
)

// DefaultOutboxSize is the number of messages kept while disconnected.
const DefaultOutboxSize = 256

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down wait in an outbox and are replayed, oldest first,
// after the client reconnects.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	pending   *outbox
	connected bool
	everUp    bool
	now       func() time.Time
	onChange  func(bool)
}

// NewRealPublisher creates a publisher connected to the given broker.
// onChange, if non-nil, is called on every connection state change.
func NewRealPublisher(broker, clientID string, onChange func(bool)) (*RealPublisher, error) {
	p := &RealPublisher{
		pending:  newOutbox(DefaultOutboxSize),
		now:      time.Now,
		onChange: onChange,
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload(time.Now())), 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(p.handleConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// ConnectRetry keeps trying in the background; messages queue until then.
		slog.Warn("mqtt broker not reachable yet, retrying in background", slog.String("broker", broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// newPublisherWithClient wires a publisher around an existing client.
func newPublisherWithClient(client paho.Client, limit int) *RealPublisher {
	return &RealPublisher{
		client:  client,
		pending: newOutbox(limit),
		now:     time.Now,
	}
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnect := p.everUp
	p.everUp = true
	queued := p.pending.take()
	onChange := p.onChange
	p.mu.Unlock()

	slog.Info("mqtt connected", slog.Bool("reconnect", reconnect), slog.Int("queued", len(queued)))
	if onChange != nil {
		onChange(true)
	}

	for _, m := range queued {
		if err := p.send(m); err != nil {
			slog.Warn("mqtt replay failed", slog.String("topic", m.topic), slog.Any("error", err))
			p.mu.Lock()
			p.pending.add(m)
			p.mu.Unlock()
		}
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		if err := p.send(message{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			slog.Warn("mqtt reconnect notice failed", slog.Any("error", err))
		}
	}
}

func (p *RealPublisher) handleConnectionLost(c paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	onChange := p.onChange
	p.mu.Unlock()

	slog.Warn("mqtt connection lost", slog.Any("error", err))
	if onChange != nil {
		onChange(false)
	}
}

// IsConnected reports whether the client currently holds a connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a mode or unit event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.enqueue(message{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.enqueue(message{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// enqueue sends m now if connected, otherwise queues it for replay.
func (p *RealPublisher) enqueue(m message) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.pending.add(m)
		p.mu.Unlock()
		return nil
	}
	if err := p.send(m); err != nil {
		p.mu.Lock()
		p.pending.add(m)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(m message) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Queued returns the number of messages waiting for a connection.
func (p *RealPublisher) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Queued(); n > 0 {
		slog.Warn("mqtt closing with undelivered messages", slog.Int("count", n))
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
