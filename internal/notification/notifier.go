// Package notification turns domain events into emails for customers and
// the rental desk.
package notification

import (
	"context"
	"fmt"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type recipient int

const (
	toCustomer recipient = iota
	toAdmin
)

type template struct {
	to      recipient
	subject string
	body    func(e domain.Event) string
}

func money(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

var templates = map[domain.EventType]template{
	domain.EventRentalConfirmed: {toCustomer, "Your rental is confirmed", func(e domain.Event) string {
		return fmt.Sprintf("Rental #%d is confirmed for %s to %s. We have authorized %s on your card.",
			e.RentalID, e.Attributes["start_date"], e.Attributes["end_date"], money(e.AmountCents, e.Currency))
	}},
	domain.EventRentalPickedUp: {toCustomer, "Enjoy your trip", func(e domain.Event) string {
		return fmt.Sprintf("You picked up the vehicle for rental #%d. %s has been charged.",
			e.RentalID, money(e.AmountCents, e.Currency))
	}},
	domain.EventRentalReturned: {toCustomer, "Thanks for returning your vehicle", func(e domain.Event) string {
		return fmt.Sprintf("Rental #%d is closed.", e.RentalID)
	}},
	domain.EventRentalCancelled: {toCustomer, "Your rental was cancelled", func(e domain.Event) string {
		if e.AmountCents > 0 {
			return fmt.Sprintf("Rental #%d was cancelled and %s will be refunded.", e.RentalID, money(e.AmountCents, e.Currency))
		}
		return fmt.Sprintf("Rental #%d was cancelled.", e.RentalID)
	}},
	domain.EventDamageAssessed: {toCustomer, "Damage assessment", func(e domain.Event) string {
		return fmt.Sprintf("Damage report #%d on rental #%d was assessed as %s. Your share is %s. You can dispute it from your account.",
			e.DamageID, e.RentalID, e.Attributes["severity"], money(e.AmountCents, e.Currency))
	}},
	domain.EventDamageAdminReview: {toAdmin, "Damage report needs a decision", func(e domain.Event) string {
		return fmt.Sprintf("Damage report #%d on vehicle #%d was assessed as %s and needs an admin decision.",
			e.DamageID, e.VehicleID, e.Attributes["severity"])
	}},
	domain.EventDamageDisputed: {toAdmin, "Damage liability disputed", func(e domain.Event) string {
		return fmt.Sprintf("Customer #%d disputed damage report #%d: %s", e.CustomerID, e.DamageID, e.Attributes["reason"])
	}},
	domain.EventDamageCharged: {toCustomer, "Damage charge", func(e domain.Event) string {
		return fmt.Sprintf("We charged %s for damage report #%d.", money(e.AmountCents, e.Currency), e.DamageID)
	}},
	domain.EventDamageChargeFailed: {toAdmin, "Damage charge failed", func(e domain.Event) string {
		return fmt.Sprintf("Charging %s for damage report #%d failed: %s", money(e.AmountCents, e.Currency), e.DamageID, e.Attributes["reason"])
	}},
	domain.EventPaymentRefunded: {toCustomer, "Refund issued", func(e domain.Event) string {
		return fmt.Sprintf("We refunded %s to your card.", money(e.AmountCents, e.Currency))
	}},
}

// Notifier is an events.Publisher that emails the people an event concerns.
// Events without a template are ignored.
type Notifier struct {
	sender     Sender
	customers  repository.CustomerDirectory
	adminEmail string
}

func NewNotifier(sender Sender, customers repository.CustomerDirectory, adminEmail string) *Notifier {
	return &Notifier{sender: sender, customers: customers, adminEmail: adminEmail}
}

func (n *Notifier) Publish(ctx context.Context, e domain.Event) error {
	tmpl, ok := templates[e.Type]
	if !ok {
		return nil
	}

	body := tmpl.body(e)
	if tmpl.to == toAdmin {
		if n.adminEmail == "" {
			return nil
		}
		return n.sender.Send(ctx, n.adminEmail, "Rental desk", tmpl.subject, body)
	}

	if e.CustomerID == 0 {
		return fmt.Errorf("event %s has no customer", e.Type)
	}
	c, err := n.customers.GetByID(ctx, e.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %d: %w", e.CustomerID, err)
	}
	return n.sender.Send(ctx, c.Email, c.DisplayName, tmpl.subject, body)
}

// Alert emails the rental desk directly.
func (n *Notifier) Alert(ctx context.Context, subject, body string) error {
	if n.adminEmail == "" {
		return nil
	}
	return n.sender.Send(ctx, n.adminEmail, "Rental desk", subject, body)
}
