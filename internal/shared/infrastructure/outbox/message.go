// Package outbox stores scheduling events next to the data they describe and
// relays them to the broker in the background, so an apply never waits on
// RabbitMQ.
package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyRoutingKey is returned for a message without a routing key.
	ErrEmptyRoutingKey = errors.New("outbox: routing key is required")
	// ErrInvalidPayload is returned when the payload is not JSON.
	ErrInvalidPayload = errors.New("outbox: payload must be valid JSON")
)

// Message is an event waiting to be relayed.
type Message struct {
	ID             int64
	EventID        uuid.UUID
	RoutingKey     string
	Payload        json.RawMessage
	CreatedAt      time.Time
	PublishedAt    *time.Time
	NextRetryAt    *time.Time
	RetryCount     int
	LastError      *string
	DeadLetteredAt *time.Time
}

// NewMessage creates a pending message. The event id is taken from the
// payload's event_id field when present so redelivery stays idempotent.
func NewMessage(routingKey string, payload []byte, now time.Time) (*Message, error) {
	if routingKey == "" {
		return nil, ErrEmptyRoutingKey
	}
	if !json.Valid(payload) {
		return nil, ErrInvalidPayload
	}

	eventID := uuid.New()
	var envelope struct {
		EventID uuid.UUID `json:"event_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.EventID != uuid.Nil {
		eventID = envelope.EventID
	}

	return &Message{
		EventID:    eventID,
		RoutingKey: routingKey,
		Payload:    append(json.RawMessage(nil), payload...),
		CreatedAt:  now.UTC(),
	}, nil
}

// IsPublished returns true if the broker has accepted the message.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// IsDead returns true once the message stopped being retried.
func (m *Message) IsDead() bool {
	return m.DeadLetteredAt != nil
}

// CanRetry returns true if another failure would still be retried.
func (m *Message) CanRetry(maxRetries int) bool {
	return m.RetryCount+1 < maxRetries
}
