package domain

import "time"

type EventType string

const (
	EventRentalRequested    EventType = "rental.requested"
	EventRentalConfirmed    EventType = "rental.confirmed"
	EventRentalPickedUp     EventType = "rental.picked_up"
	EventRentalReturned     EventType = "rental.returned"
	EventRentalCancelled    EventType = "rental.cancelled"
	EventDamageReported     EventType = "damage.reported"
	EventDamageAssessed     EventType = "damage.assessed"
	EventDamageAdminReview  EventType = "damage.admin_review_required"
	EventDamageDisputed     EventType = "damage.disputed"
	EventDamageResolved     EventType = "damage.resolved"
	EventDamageCharged      EventType = "damage.charged"
	EventDamageChargeFailed EventType = "damage.charge_failed"
	EventPaymentRefunded    EventType = "payment.refunded"
)

// Event is a fact emitted after a state change has been committed.
// Consumers are free to ignore it.
type Event struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	OccurredAt  time.Time         `json:"occurred_at"`
	RentalID    int32             `json:"rental_id,omitempty"`
	DamageID    int32             `json:"damage_id,omitempty"`
	VehicleID   int32             `json:"vehicle_id,omitempty"`
	CustomerID  int32             `json:"customer_id,omitempty"`
	AmountCents int64             `json:"amount_cents,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}
