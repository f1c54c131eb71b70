package mqtt

import "log/slog"

// message is one serialized publish, held until the broker takes it.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox queues publishes made while the broker is unreachable and hands
// them back oldest first. A retained message replaces the retained message
// already queued on its topic, so a STARTUP that never left is superseded by
// the SHUTDOWN that follows it. When full, the oldest monitor event goes
// first; retained status is only dropped once no events are left.
// Not safe for concurrent use; the publisher holds its lock around calls.
type outbox struct {
	msgs    []message
	limit   int
	dropped int
	warned  bool
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit}
}

func (o *outbox) add(m message) {
	if m.retained {
		for i, q := range o.msgs {
			if q.retained && q.topic == m.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	if len(o.msgs) >= o.limit {
		o.evict()
	}
	o.msgs = append(o.msgs, m)
}

// evict drops the oldest non-retained message, or the oldest message when
// everything queued is retained.
func (o *outbox) evict() {
	victim := 0
	for i, q := range o.msgs {
		if !q.retained {
			victim = i
			break
		}
	}
	q := o.msgs[victim]
	o.msgs = append(o.msgs[:victim], o.msgs[victim+1:]...)
	o.dropped++
	if !o.warned {
		slog.Warn("mqtt outbox full, dropping oldest",
			slog.Int("limit", o.limit),
			slog.String("topic", q.topic),
			slog.Bool("retained", q.retained))
		o.warned = true
	}
}

// take empties the outbox and returns what it held.
func (o *outbox) take() []message {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	o.warned = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
