package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Well-known message kinds.
const (
	// KindTask is a request asking an agent to perform one action.
	KindTask = "task"

	// KindTaskResponse is the reply to a task, carrying a Response payload.
	KindTaskResponse = "task_response"

	// KindReminder is published on the reminders topic by the reminder
	// scheduler and consumed by subscribers.
	KindReminder = "reminder"
)

// SystemSender marks messages that originate outside any agent (startup
// wiring, schedulers). Agents never reply to the system sender.
const SystemSender = "system"

// Message is the envelope for all inter-agent communication. A message is
// immutable after creation: it is enqueued once, consumed once by the
// recipient's receive loop, and then discarded.
type Message struct {
	// ID is a unique identifier for this envelope.
	ID string

	// Sender and Recipient are agent names as known to the bus.
	Sender    string
	Recipient string

	// Kind tags the payload (e.g. "task", "task_response").
	Kind string

	// Payload is the message body serialized as JSON.
	Payload string

	// CorrelationID pairs a request with its eventual response. A reply
	// must echo the identical correlation id of the request it answers.
	CorrelationID string

	// Timestamp is the RFC 3339 creation time.
	Timestamp string
}

// NewMessage creates a message with the given payload serialized to JSON.
func NewMessage(sender, recipient, kind string, payload any, correlationID string) *Message {
	body, _ := json.Marshal(payload)
	return &Message{
		ID:            uuid.New().String(),
		Sender:        sender,
		Recipient:     recipient,
		Kind:          kind,
		Payload:       string(body),
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// NewCorrelationID returns a fresh opaque correlation token.
func NewCorrelationID() string {
	return uuid.New().String()
}

// UnmarshalPayload deserializes the payload into v.
func (m *Message) UnmarshalPayload(v any) error {
	if m.Payload == "" {
		return fmt.Errorf("message %s has empty payload", m.ID)
	}
	return json.Unmarshal([]byte(m.Payload), v)
}

// clone returns a copy addressed to a different recipient. Used by
// broadcast and topic fan-out so each mailbox owns its own envelope.
func (m *Message) clone(recipient string) *Message {
	c := *m
	c.Recipient = recipient
	return &c
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{%s %s->%s kind=%s corr=%s}", m.ID, m.Sender, m.Recipient, m.Kind, m.CorrelationID)
}
