package repository

import (
	"context"
	"errors"

	"carrental-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when an update loses an optimistic
	// version check.
	ErrVersionConflict = errors.New("record was modified concurrently")
	// ErrNoTransaction is returned by operations that need an open transaction.
	ErrNoTransaction = errors.New("operation requires a transaction")
)

// TxManager runs fn in a single transaction carried by the context passed
// to fn. Repositories called with that context join the transaction.
// A nested WithTx joins the outer transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RentalRepository interface {
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id int32) (*domain.Rental, error)
	// GetForUpdate reads the rental and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id int32) (*domain.Rental, error)
	// Update persists the rental if its version is unchanged and bumps it.
	Update(ctx context.Context, rental *domain.Rental) error
	// LockVehicle serializes check-and-create for one vehicle's calendar.
	LockVehicle(ctx context.Context, vehicleID int32) error
	ListByVehicle(ctx context.Context, vehicleID int32, statuses []domain.RentalStatus) ([]domain.Rental, error)
	ListByCustomer(ctx context.Context, customerID int32, status string, page, pageSize int32) ([]domain.Rental, int32, error)
	// ListOverdue returns IN_USE rentals whose end date is before asOf.
	ListOverdue(ctx context.Context, asOf string) ([]domain.Rental, error)
	// ListStaleRequests returns REQUESTED rentals whose start date is before asOf.
	ListStaleRequests(ctx context.Context, asOf string) ([]domain.Rental, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id int32) (*domain.Payment, error)
	GetByOwner(ctx context.Context, ownerType domain.PaymentOwnerType, ownerID int32) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
	ListByStatus(ctx context.Context, ownerType domain.PaymentOwnerType, status domain.PaymentStatus) ([]domain.Payment, error)
}

type DamageReportRepository interface {
	Create(ctx context.Context, report *domain.DamageReport) error
	GetByID(ctx context.Context, id int32) (*domain.DamageReport, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.DamageReport, error)
	Update(ctx context.Context, report *domain.DamageReport) error
	ListByRental(ctx context.Context, rentalID int32) ([]domain.DamageReport, error)
}

// VehicleRegistry owns vehicle status. Status changes made on behalf of
// rentals go through CompareAndSetStatus so a concurrent change by the
// fleet team is never overwritten.
type VehicleRegistry interface {
	GetByID(ctx context.Context, id int32) (*domain.Vehicle, error)
	GetStatus(ctx context.Context, id int32) (domain.VehicleStatus, error)
	SetStatus(ctx context.Context, id int32, status domain.VehicleStatus) error
	// CompareAndSetStatus moves the vehicle to next only if its current
	// status is one of expected. It reports whether the swap happened.
	CompareAndSetStatus(ctx context.Context, id int32, expected []domain.VehicleStatus, next domain.VehicleStatus) (bool, error)
}

type CustomerDirectory interface {
	GetByID(ctx context.Context, id int32) (*domain.Customer, error)
}
