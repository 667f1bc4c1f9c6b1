package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"spendwise/internal/core"
)

// MessageKind mirrors the outbox item kinds.
type MessageKind string

const (
	KindEvent    MessageKind = "event"
	KindSnapshot MessageKind = "snapshot"
)

// Envelope is the message body on the wire. Payload is a core.Event or a
// core.Snapshot depending on Kind.
type Envelope struct {
	Kind      MessageKind     `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func newEnvelope(kind MessageKind, v any) (*Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Envelope{Kind: kind, Payload: b, Timestamp: time.Now()}, nil
}

func NewEventMessage(ev core.Event) (*Envelope, error) { return newEnvelope(KindEvent, ev) }

func NewSnapshotMessage(s core.Snapshot) (*Envelope, error) {
	return newEnvelope(KindSnapshot, s)
}

// NewRawMessage wraps an already encoded payload, e.g. an outbox row.
func NewRawMessage(kind MessageKind, payload []byte) *Envelope {
	return &Envelope{Kind: kind, Payload: append(json.RawMessage(nil), payload...), Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EnvelopeFromJSON parses and checks a message body.
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var msg Envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind != KindEvent && msg.Kind != KindSnapshot {
		return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	if len(msg.Payload) == 0 {
		return nil, fmt.Errorf("empty %s payload", msg.Kind)
	}
	return &msg, nil
}

func (m *Envelope) Event() (core.Event, error) {
	var ev core.Event
	if m.Kind != KindEvent {
		return ev, fmt.Errorf("message is a %s, not an event", m.Kind)
	}
	err := json.Unmarshal(m.Payload, &ev)
	return ev, err
}

func (m *Envelope) Snapshot() (core.Snapshot, error) {
	var s core.Snapshot
	if m.Kind != KindSnapshot {
		return s, fmt.Errorf("message is a %s, not a snapshot", m.Kind)
	}
	err := json.Unmarshal(m.Payload, &s)
	return s, err
}
