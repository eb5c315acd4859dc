// Package events delivers domain events to whoever listens. Delivery is
// best effort: the services publish after commit and only log failures.
package events

import (
	"context"
	"errors"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"

	"github.com/google/uuid"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// New stamps an event with an id and time.
func New(eventType domain.EventType, at time.Time) domain.Event {
	return domain.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
	}
}

// Fanout publishes every event to all of its publishers and joins their
// errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the structured log.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event domain.Event) error {
	logger.InfoContext(ctx, "Domain event",
		"event_id", event.ID,
		"type", event.Type,
		"rental_id", event.RentalID,
		"damage_id", event.DamageID,
		"amount_cents", event.AmountCents)
	return nil
}
