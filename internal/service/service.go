package service

import (
	"context"
	"errors"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/events"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

// RentalService drives a rental from request to return or cancellation and
// keeps the rental fee payment and the vehicle status in step with it.
type RentalService interface {
	RequestRental(ctx context.Context, vehicleID, customerID int32, startDate, endDate string) (*domain.Rental, error)
	ConfirmRental(ctx context.Context, rentalID int32) (*domain.Rental, *domain.Payment, error)
	PickupRental(ctx context.Context, rentalID int32, notes string) (*domain.Rental, error)
	ReturnRental(ctx context.Context, rentalID int32, notes string) (*domain.Rental, error)
	CancelRental(ctx context.Context, rentalID, actorID int32) (*domain.Rental, error)
	GetRental(ctx context.Context, rentalID int32) (*domain.Rental, *domain.Payment, error)
	ListCustomerRentals(ctx context.Context, customerID int32, status string, page, pageSize int32) ([]domain.Rental, int32, error)
}

// DamageService owns the damage liability workflow that may reopen money
// matters after a rental has closed.
type DamageService interface {
	ReportDamage(ctx context.Context, rentalID int32, description string, severityGuess domain.Severity) (*domain.DamageReport, error)
	AssessDamage(ctx context.Context, damageID int32, repairCostCents int64, severityOverride *domain.Severity, insurance domain.InsuranceInfo) (*domain.DamageReport, error)
	DisputeDamage(ctx context.Context, damageID, customerID int32, reason string) (*domain.DamageReport, error)
	ResolveDispute(ctx context.Context, damageID int32, adjustedLiabilityCents, adjustedRepairCostCents int64, notes string) (*domain.DamageReport, error)
	ChargeDamage(ctx context.Context, damageID int32) (*domain.DamageReport, *domain.Payment, error)
	GetDamageReport(ctx context.Context, damageID int32) (*domain.DamageReport, *domain.Payment, error)
	ListDamageReports(ctx context.Context, rentalID int32) ([]domain.DamageReport, error)
}

// Clock returns the current time. Tests pin it to make "today" stable.
type Clock func() time.Time

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// storageError maps a repository failure onto the error taxonomy. what
// names the record, e.g. "rental 7".
func storageError(err error, what string) error {
	var de *domain.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return domain.NotFoundf("%s not found", what)
	case errors.Is(err, repository.ErrVersionConflict):
		return domain.Transient(err, "%s was changed concurrently, retry", what)
	default:
		return domain.Transient(err, "%s: storage unavailable", what)
	}
}

// publish hands events to the publisher after commit. Failures never reach
// the caller.
func publish(ctx context.Context, p events.Publisher, evts ...domain.Event) {
	if p == nil {
		return
	}
	for _, e := range evts {
		if err := p.Publish(ctx, e); err != nil {
			logger.WarnContext(ctx, "Failed to publish event", "type", e.Type, "error", err)
		}
	}
}

func rentalEvent(t domain.EventType, at time.Time, r *domain.Rental) domain.Event {
	e := events.New(t, at)
	e.RentalID = r.ID
	e.VehicleID = r.VehicleID
	e.CustomerID = r.CustomerID
	e.AmountCents = r.TotalPriceCents
	e.Currency = r.Currency
	e.Attributes = map[string]string{
		"start_date": r.StartDate,
		"end_date":   r.EndDate,
		"status":     string(r.Status),
	}
	return e
}

func damageEvent(t domain.EventType, at time.Time, d *domain.DamageReport, currency string) domain.Event {
	e := events.New(t, at)
	e.DamageID = d.ID
	e.RentalID = d.RentalID
	e.VehicleID = d.VehicleID
	e.CustomerID = d.CustomerID
	e.AmountCents = d.CustomerLiabilityCents
	e.Currency = currency
	e.Attributes = map[string]string{
		"severity": string(d.Severity),
		"status":   string(d.Status),
	}
	return e
}

func normalizePage(page, pageSize int32) (int32, int32) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
