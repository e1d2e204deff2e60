// Package events publishes sale lifecycle notifications for downstream
// consumers (loyalty CRM, accounting, dashboards).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeSaleCompleted = "sale.completed"
	TypeSaleCancelled = "sale.cancelled"
)

type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	// Key partitions the event; sale events use the sale ID.
	Key     string `json:"-"`
	Payload any    `json:"payload"`
}

func New(eventType string, key string, payload any, at time.Time) Event {
	id, err := uuid.NewRandom()
	eventID := id.String()
	if err != nil {
		eventID = key + "-" + eventType
	}
	return Event{
		ID:         eventID,
		Type:       eventType,
		OccurredAt: at.UTC(),
		Key:        key,
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
