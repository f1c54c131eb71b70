package mqtt

import (
	"sync"

	"github.com/sweeney/range-monitor/internal/logic"
)

// FakePublisher records what the monitor would have put on the broker.
// Besides the raw call history it keeps the retained payload per topic, which
// is what a subscriber arriving after the fact would see.
type FakePublisher struct {
	mu sync.Mutex

	// Events and Payloads record every accepted Publish call.
	Events   []logic.Event
	Payloads [][]byte

	// SystemEvents and SystemPayloads record every accepted PublishSystem call.
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError fail the matching call; a failed
	// call records nothing.
	PublishError       error
	PublishSystemError error

	// Connected is returned by IsConnected.
	Connected bool

	Closed bool

	retained map[string][]byte
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{retained: make(map[string][]byte)}
}

// Publish formats the monitor event as RealPublisher would and records it.
func (f *FakePublisher) Publish(event logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the lifecycle event and, when it is retained,
// replaces the retained status for TopicSystem.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	if event.Retained {
		if f.retained == nil {
			f.retained = make(map[string][]byte)
		}
		f.retained[TopicSystem] = payload
	}
	return nil
}

// RetainedStatus returns the last retained payload on TopicSystem, or nil.
func (f *FakePublisher) RetainedStatus() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retained[TopicSystem]
}

// Close marks the publisher closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports the Connected field.
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}
