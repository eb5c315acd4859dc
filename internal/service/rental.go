package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/events"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
)

const rentalOwner = "rental"

type rentalService struct {
	tx         repository.TxManager
	rentalRepo repository.RentalRepository
	payRepo    repository.PaymentRepository
	vehicles   repository.VehicleRegistry
	customers  repository.CustomerDirectory
	quoter     pricing.Quoter
	payments   *PaymentProcessor
	publisher  events.Publisher
	now        Clock
}

func NewRentalService(
	tx repository.TxManager,
	rentalRepo repository.RentalRepository,
	payRepo repository.PaymentRepository,
	vehicles repository.VehicleRegistry,
	customers repository.CustomerDirectory,
	quoter pricing.Quoter,
	payments *PaymentProcessor,
	publisher events.Publisher,
	now Clock,
) RentalService {
	if now == nil {
		now = time.Now
	}
	return &rentalService{
		tx:         tx,
		rentalRepo: rentalRepo,
		payRepo:    payRepo,
		vehicles:   vehicles,
		customers:  customers,
		quoter:     quoter,
		payments:   payments,
		publisher:  publisher,
		now:        now,
	}
}

func (s *rentalService) RequestRental(ctx context.Context, vehicleID, customerID int32, startDate, endDate string) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.RequestRental", "vehicleID", vehicleID, "customerID", customerID, "start", startDate, "end", endDate)

	rental, err := s.requestRental(ctx, vehicleID, customerID, startDate, endDate)
	if err != nil {
		logger.ExitMethodWithError("rentalService.RequestRental", err, "vehicleID", vehicleID, "customerID", customerID)
		return nil, err
	}

	publish(ctx, s.publisher, rentalEvent(domain.EventRentalRequested, s.now(), rental))
	logger.ExitMethod("rentalService.RequestRental", "rentalID", rental.ID, "total", rental.TotalPriceCents)
	return rental, nil
}

func (s *rentalService) requestRental(ctx context.Context, vehicleID, customerID int32, startDate, endDate string) (*domain.Rental, error) {
	if vehicleID <= 0 || customerID <= 0 {
		return nil, domain.Validationf("vehicle and customer are required")
	}
	dr, err := domain.NewDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	today := domain.FormatDate(s.now())
	if domain.FormatDate(dr.Start) < today {
		return nil, domain.Validationf("start date %s is in the past", startDate)
	}

	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, storageError(err, fmt.Sprintf("vehicle %d", vehicleID))
	}
	if vehicle.Status == domain.VehicleStatusSold {
		return nil, domain.Conflictf("vehicle %d is no longer in the fleet", vehicleID)
	}
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, storageError(err, fmt.Sprintf("customer %d", customerID))
	}

	quote, err := s.quoter.Quote(ctx, vehicleID, dr)
	if err != nil {
		return nil, storageError(err, fmt.Sprintf("price for vehicle %d", vehicleID))
	}
	days := dr.Days()
	if quote.TotalPriceCents != quote.DailyPriceCents*int64(days) {
		return nil, domain.Transient(nil, "inconsistent quote for vehicle %d: %d/day over %d days is not %d",
			vehicleID, quote.DailyPriceCents, days, quote.TotalPriceCents)
	}

	rental := &domain.Rental{
		VehicleID:       vehicleID,
		CustomerID:      customerID,
		StartDate:       domain.FormatDate(dr.Start),
		EndDate:         domain.FormatDate(dr.End),
		Days:            days,
		DailyPriceCents: quote.DailyPriceCents,
		TotalPriceCents: quote.TotalPriceCents,
		Currency:        quote.Currency,
		Status:          domain.RentalStatusRequested,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.rentalRepo.LockVehicle(ctx, vehicleID); err != nil {
			return err
		}
		if err := s.checkCalendar(ctx, vehicleID, dr); err != nil {
			return err
		}
		return s.rentalRepo.Create(ctx, rental)
	})
	if err != nil {
		return nil, storageError(err, fmt.Sprintf("rental of vehicle %d", vehicleID))
	}
	return rental, nil
}

// checkCalendar fails with a conflict if a CONFIRMED or IN_USE rental of the
// vehicle overlaps dr. The caller must hold the vehicle lock.
func (s *rentalService) checkCalendar(ctx context.Context, vehicleID int32, dr domain.DateRange) error {
	blocking, err := s.rentalRepo.ListByVehicle(ctx, vehicleID, domain.BlockingRentalStatuses)
	if err != nil {
		return err
	}
	conflict, err := domain.FindConflict(dr, blocking)
	if err != nil {
		return err
	}
	if conflict != nil {
		return domain.Conflictf("vehicle %d is booked %s..%s by rental %d",
			vehicleID, conflict.StartDate, conflict.EndDate, conflict.ID)
	}
	return nil
}

func (s *rentalService) ConfirmRental(ctx context.Context, rentalID int32) (*domain.Rental, *domain.Payment, error) {
	logger.EnterMethod("rentalService.ConfirmRental", "rentalID", rentalID)

	var (
		rental     *domain.Rental
		payment    *domain.Payment
		authorized string
		voidKey    string
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		rental, err = s.rentalRepo.GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		if rental.Status != domain.RentalStatusRequested {
			return domain.InvalidStatef("rental %d is %s, only REQUESTED rentals can be confirmed", rentalID, rental.Status)
		}

		if err := s.rentalRepo.LockVehicle(ctx, rental.VehicleID); err != nil {
			return err
		}
		dr, err := rental.Range()
		if err != nil {
			return err
		}
		if err := s.checkCalendar(ctx, rental.VehicleID, dr); err != nil {
			return err
		}
		status, err := s.vehicles.GetStatus(ctx, rental.VehicleID)
		if err != nil {
			return err
		}
		if !status.Rentable() {
			return domain.Conflictf("vehicle %d is %s and cannot be reserved", rental.VehicleID, status)
		}

		customer, err := s.customers.GetByID(ctx, rental.CustomerID)
		if err != nil {
			return err
		}

		txID, err := s.payments.Authorize(ctx, gateway.AuthorizeRequest{
			AmountCents:      rental.TotalPriceCents,
			Currency:         rental.Currency,
			CustomerRef:      customer.PaymentRef,
			PaymentMethodRef: customer.PaymentMethodRef,
			Description:      fmt.Sprintf("Rental #%d %s..%s", rental.ID, rental.StartDate, rental.EndDate),
			IdempotencyKey:   gateway.IdempotencyKey(rentalOwner, rental.ID, "authorize", rental.Version),
		})
		if err != nil {
			return err
		}
		authorized = txID
		voidKey = gateway.IdempotencyKey(rentalOwner, rental.ID, "void", rental.Version)

		payment = &domain.Payment{
			OwnerType:     domain.PaymentOwnerRental,
			OwnerID:       rental.ID,
			AmountCents:   rental.TotalPriceCents,
			Currency:      rental.Currency,
			Status:        domain.PaymentStatusAuthorized,
			TransactionID: txID,
			Attempts:      1,
		}
		if err := s.payRepo.Create(ctx, payment); err != nil {
			return err
		}

		from := rental.Status
		if err := rental.TransitionTo(domain.RentalStatusConfirmed); err != nil {
			return err
		}
		if err := s.rentalRepo.Update(ctx, rental); err != nil {
			return err
		}

		swapped, err := s.vehicles.CompareAndSetStatus(ctx, rental.VehicleID,
			[]domain.VehicleStatus{domain.VehicleStatusAvailable, domain.VehicleStatusReserved}, domain.VehicleStatusReserved)
		if err != nil {
			return err
		}
		if !swapped {
			return domain.Conflictf("vehicle %d changed status while confirming rental %d", rental.VehicleID, rental.ID)
		}
		logger.Transition(ctx, "rental", rental.ID, string(from), string(rental.Status))
		return nil
	})
	if err != nil {
		if authorized != "" {
			s.payments.VoidQuietly(ctx, authorized, rental.TotalPriceCents, voidKey)
		}
		err = storageError(err, fmt.Sprintf("rental %d", rentalID))
		logger.ExitMethodWithError("rentalService.ConfirmRental", err, "rentalID", rentalID)
		return nil, nil, err
	}

	publish(ctx, s.publisher, rentalEvent(domain.EventRentalConfirmed, s.now(), rental))
	logger.ExitMethod("rentalService.ConfirmRental", "rentalID", rentalID, "paymentID", payment.ID)
	return rental, payment, nil
}

func (s *rentalService) PickupRental(ctx context.Context, rentalID int32, notes string) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.PickupRental", "rentalID", rentalID)

	var rental *domain.Rental
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		rental, err = s.rentalRepo.GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		if rental.Status != domain.RentalStatusConfirmed {
			return domain.InvalidStatef("rental %d is %s, only CONFIRMED rentals can be picked up", rentalID, rental.Status)
		}

		payment, err := s.payRepo.GetByOwner(ctx, domain.PaymentOwnerRental, rental.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.InvalidStatef("rental %d has no payment authorization", rentalID)
		}
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusAuthorized {
			return domain.InvalidStatef("rental %d payment is %s, expected AUTHORIZED", rentalID, payment.Status)
		}

		key := gateway.IdempotencyKey(rentalOwner, rental.ID, "capture", payment.Version)
		if err := s.payments.Capture(ctx, payment.TransactionID, payment.AmountCents, key); err != nil {
			return err
		}
		if err := payment.MarkCaptured(); err != nil {
			return err
		}
		if err := s.payRepo.Update(ctx, payment); err != nil {
			return err
		}

		if err := rental.TransitionTo(domain.RentalStatusInUse); err != nil {
			return err
		}
		rental.PickupNotes = notes
		if err := s.rentalRepo.Update(ctx, rental); err != nil {
			return err
		}
		logger.Transition(ctx, "rental", rental.ID, string(domain.RentalStatusConfirmed), string(rental.Status))
		return nil
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("rental %d", rentalID))
		logger.ExitMethodWithError("rentalService.PickupRental", err, "rentalID", rentalID)
		return nil, err
	}

	publish(ctx, s.publisher, rentalEvent(domain.EventRentalPickedUp, s.now(), rental))
	logger.ExitMethod("rentalService.PickupRental", "rentalID", rentalID)
	return rental, nil
}

func (s *rentalService) ReturnRental(ctx context.Context, rentalID int32, notes string) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.ReturnRental", "rentalID", rentalID)

	var rental *domain.Rental
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		rental, err = s.rentalRepo.GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		if err := rental.TransitionTo(domain.RentalStatusReturned); err != nil {
			return err
		}
		rental.ReturnNotes = notes
		if err := s.rentalRepo.Update(ctx, rental); err != nil {
			return err
		}
		logger.Transition(ctx, "rental", rental.ID, string(domain.RentalStatusInUse), string(rental.Status))
		return s.releaseVehicle(ctx, rental)
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("rental %d", rentalID))
		logger.ExitMethodWithError("rentalService.ReturnRental", err, "rentalID", rentalID)
		return nil, err
	}

	publish(ctx, s.publisher, rentalEvent(domain.EventRentalReturned, s.now(), rental))
	logger.ExitMethod("rentalService.ReturnRental", "rentalID", rentalID)
	return rental, nil
}

// releaseVehicle makes the vehicle AVAILABLE again once no other rental
// holds it. A vehicle pulled into MAINTENANCE or any other state is left
// alone.
func (s *rentalService) releaseVehicle(ctx context.Context, rental *domain.Rental) error {
	if err := s.rentalRepo.LockVehicle(ctx, rental.VehicleID); err != nil {
		return err
	}
	blocking, err := s.rentalRepo.ListByVehicle(ctx, rental.VehicleID, domain.BlockingRentalStatuses)
	if err != nil {
		return err
	}
	for _, other := range blocking {
		if other.ID != rental.ID {
			logger.Debug("Vehicle still reserved by another rental", "vehicleID", rental.VehicleID, "rentalID", other.ID)
			return nil
		}
	}
	swapped, err := s.vehicles.CompareAndSetStatus(ctx, rental.VehicleID,
		[]domain.VehicleStatus{domain.VehicleStatusReserved}, domain.VehicleStatusAvailable)
	if err != nil {
		return err
	}
	if !swapped {
		logger.InfoContext(ctx, "Vehicle not released, status owned elsewhere", "vehicleID", rental.VehicleID)
	}
	return nil
}

func (s *rentalService) CancelRental(ctx context.Context, rentalID, actorID int32) (*domain.Rental, error) {
	logger.EnterMethod("rentalService.CancelRental", "rentalID", rentalID, "actorID", actorID)

	var (
		rental   *domain.Rental
		payment  *domain.Payment
		refunded int64
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		rental, err = s.rentalRepo.GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		if err := s.authorizeActor(ctx, rental, actorID); err != nil {
			return err
		}
		from := rental.Status
		if !from.CanTransition(domain.RentalStatusCancelled) {
			return domain.InvalidStatef("rental %d is %s and can no longer be cancelled", rentalID, from)
		}

		payment, err = s.payRepo.GetByOwner(ctx, domain.PaymentOwnerRental, rental.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			payment = nil
		case err != nil:
			return err
		}

		if payment != nil {
			switch payment.Status {
			case domain.PaymentStatusCaptured:
				refunded = payment.RefundableCents()
				key := gateway.IdempotencyKey(rentalOwner, rental.ID, "refund", payment.Version)
				if err := s.payments.Refund(ctx, payment.TransactionID, refunded, key); err != nil {
					return err
				}
				if err := payment.ApplyRefund(refunded); err != nil {
					return err
				}
			case domain.PaymentStatusAuthorized:
				// Nothing was captured, so the hold is simply dropped.
				if err := payment.Void(); err != nil {
					return err
				}
			default:
				payment = nil
			}
			if payment != nil {
				if err := s.payRepo.Update(ctx, payment); err != nil {
					return err
				}
			}
		}

		if err := rental.TransitionTo(domain.RentalStatusCancelled); err != nil {
			return err
		}
		if err := s.rentalRepo.Update(ctx, rental); err != nil {
			return err
		}
		logger.Transition(ctx, "rental", rental.ID, string(from), string(rental.Status))

		if from.IsBlocking() {
			return s.releaseVehicle(ctx, rental)
		}
		return nil
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("rental %d", rentalID))
		logger.ExitMethodWithError("rentalService.CancelRental", err, "rentalID", rentalID, "actorID", actorID)
		return nil, err
	}

	cancelled := rentalEvent(domain.EventRentalCancelled, s.now(), rental)
	cancelled.AmountCents = refunded
	cancelled.Attributes["actor_id"] = fmt.Sprint(actorID)
	evts := []domain.Event{cancelled}
	if refunded > 0 {
		e := rentalEvent(domain.EventPaymentRefunded, s.now(), rental)
		e.AmountCents = refunded
		e.Attributes["payment_id"] = fmt.Sprint(payment.ID)
		evts = append(evts, e)
	}
	publish(ctx, s.publisher, evts...)

	logger.ExitMethod("rentalService.CancelRental", "rentalID", rentalID, "refunded", refunded)
	return rental, nil
}

// authorizeActor allows the rental's own customer and administrators.
func (s *rentalService) authorizeActor(ctx context.Context, rental *domain.Rental, actorID int32) error {
	if actorID == rental.CustomerID {
		return nil
	}
	actor, err := s.customers.GetByID(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.AccessDeniedf("actor %d may not cancel rental %d", actorID, rental.ID)
	}
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.AccessDeniedf("actor %d may not cancel rental %d", actorID, rental.ID)
	}
	return nil
}

func (s *rentalService) GetRental(ctx context.Context, rentalID int32) (*domain.Rental, *domain.Payment, error) {
	rental, err := s.rentalRepo.GetByID(ctx, rentalID)
	if err != nil {
		return nil, nil, storageError(err, fmt.Sprintf("rental %d", rentalID))
	}
	payment, err := s.payRepo.GetByOwner(ctx, domain.PaymentOwnerRental, rentalID)
	if errors.Is(err, repository.ErrNotFound) {
		return rental, nil, nil
	}
	if err != nil {
		return nil, nil, storageError(err, fmt.Sprintf("payment of rental %d", rentalID))
	}
	return rental, payment, nil
}

func (s *rentalService) ListCustomerRentals(ctx context.Context, customerID int32, status string, page, pageSize int32) ([]domain.Rental, int32, error) {
	logger.EnterMethod("rentalService.ListCustomerRentals", "customerID", customerID, "status", status)

	if status != "" && !domain.RentalStatus(status).Valid() {
		return nil, 0, domain.Validationf("unknown rental status %q", status)
	}
	page, pageSize = normalizePage(page, pageSize)

	rentals, total, err := s.rentalRepo.ListByCustomer(ctx, customerID, status, page, pageSize)
	if err != nil {
		err = storageError(err, fmt.Sprintf("rentals of customer %d", customerID))
		logger.ExitMethodWithError("rentalService.ListCustomerRentals", err, "customerID", customerID)
		return nil, 0, err
	}

	logger.ExitMethod("rentalService.ListCustomerRentals", "customerID", customerID, "count", len(rentals), "total", total)
	return rentals, total, nil
}
