package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRentalService_EndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusRequested, r.Status)
	assert.Equal(t, int32(5), r.Days)
	assert.Equal(t, int64(500), r.DailyPriceCents)
	assert.Equal(t, int64(2500), r.TotalPriceCents)
	assert.Equal(t, "USD", r.Currency)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t))

	f.gw.On("Authorize", mock.Anything, mock.MatchedBy(func(req gateway.AuthorizeRequest) bool {
		return req.AmountCents == 2500 && req.Currency == "USD" && req.CustomerRef == "cus_10" && req.IdempotencyKey != ""
	})).Return(approved("tx_1"), nil).Once()

	r, payment, err := f.rentals.ConfirmRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusConfirmed, r.Status)
	assert.Equal(t, domain.PaymentStatusAuthorized, payment.Status)
	assert.Equal(t, "tx_1", payment.TransactionID)
	assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t))

	f.gw.On("Capture", mock.Anything, "tx_1", int64(2500), mock.Anything).Return(approved("tx_1"), nil).Once()

	r, err = f.rentals.PickupRental(ctx, r.ID, "scratch on rear bumper")
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusInUse, r.Status)
	assert.Equal(t, "scratch on rear bumper", r.PickupNotes)
	assert.Equal(t, domain.PaymentStatusCaptured, f.rentalPayment(t, r.ID).Status)

	r, err = f.rentals.ReturnRental(ctx, r.ID, "returned clean")
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusReturned, r.Status)
	assert.Equal(t, "returned clean", r.ReturnNotes)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t))

	f.gw.AssertExpectations(t)
	f.gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []domain.EventType{
		domain.EventRentalRequested,
		domain.EventRentalConfirmed,
		domain.EventRentalPickedUp,
		domain.EventRentalReturned,
	}, f.pub.types())
}

func TestRentalService_RequestRental(t *testing.T) {
	ctx := context.Background()

	t.Run("End before start", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-14", "2025-06-10")
		assert.Nil(t, r)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, f.store.Rentals())
	})

	t.Run("Malformed date", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "06/10/2025", "2025-06-14")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Start in the past", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-05-31", "2025-06-02")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Same day is one day", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-01", "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, int32(1), r.Days)
		assert.Equal(t, int64(500), r.TotalPriceCents)
	})

	t.Run("Unknown vehicle", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.rentals.RequestRental(ctx, 404, customerID, "2025-06-10", "2025-06-14")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Unknown customer", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.rentals.RequestRental(ctx, vehicleID, 404, "2025-06-10", "2025-06-14")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Weekly discount", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-16")
		require.NoError(t, err)
		assert.Equal(t, int32(7), r.Days)
		assert.Equal(t, int64(450), r.DailyPriceCents)
		assert.Equal(t, int64(3150), r.TotalPriceCents)
	})

	t.Run("Calendar", func(t *testing.T) {
		f := newFixture(t, nil)
		f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")

		_, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		assert.ErrorIs(t, err, domain.ErrConflict, "identical range")

		_, err = f.rentals.RequestRental(ctx, vehicleID, strangerID, "2025-06-14", "2025-06-20")
		assert.ErrorIs(t, err, domain.ErrConflict, "shared last day")

		_, err = f.rentals.RequestRental(ctx, vehicleID, strangerID, "2025-06-15", "2025-06-20")
		assert.NoError(t, err, "adjacent after")

		_, err = f.rentals.RequestRental(ctx, vehicleID, strangerID, "2025-06-05", "2025-06-09")
		assert.NoError(t, err, "adjacent before")
	})

	t.Run("Requested rentals do not block", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)
		_, err = f.rentals.RequestRental(ctx, vehicleID, strangerID, "2025-06-12", "2025-06-13")
		assert.NoError(t, err)
	})
}

func TestRentalService_ConfirmRental(t *testing.T) {
	ctx := context.Background()

	t.Run("Not requested", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")
		before := f.rentalPayment(t, r.ID)

		_, _, err := f.rentals.ConfirmRental(ctx, r.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, domain.RentalStatusConfirmed, f.rental(t, r.ID).Status)
		assert.Equal(t, before, f.rentalPayment(t, r.ID))
		f.gw.AssertNumberOfCalls(t, "Authorize", 1)
	})

	t.Run("Unknown rental", func(t *testing.T) {
		f := newFixture(t, nil)
		_, _, err := f.rentals.ConfirmRental(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Declined", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)
		f.gw.On("Authorize", mock.Anything, mock.Anything).Return(&gateway.Result{Message: "insufficient funds"}, nil).Once()

		_, _, err = f.rentals.ConfirmRental(ctx, r.ID)
		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
		assert.Contains(t, err.Error(), "insufficient funds")
		assert.Equal(t, domain.RentalStatusRequested, f.rental(t, r.ID).Status)
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t))
		_, err = f.store.GetByOwner(ctx, domain.PaymentOwnerRental, r.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("Gateway timeout", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)
		f.gw.On("Authorize", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).Return(nil, context.DeadlineExceeded).Once()

		_, _, err = f.rentals.ConfirmRental(ctx, r.ID)
		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
		assert.Equal(t, domain.RentalStatusRequested, f.rental(t, r.ID).Status)
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t))

		// Same rental version, same key: the processor can recognize the retry.
		var keys []string
		f.gw.On("Authorize", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(1).(gateway.AuthorizeRequest).IdempotencyKey)
		}).Return(approved("tx_1"), nil).Once()
		_, _, err = f.rentals.ConfirmRental(ctx, r.ID)
		require.NoError(t, err)
		first := f.gw.Calls[0].Arguments.Get(1).(gateway.AuthorizeRequest).IdempotencyKey
		assert.Equal(t, []string{first}, keys)
	})

	t.Run("Gateway unreachable", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)
		f.gw.On("Authorize", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

		_, _, err = f.rentals.ConfirmRental(ctx, r.ID)
		assert.ErrorIs(t, err, domain.ErrTransient)
		assert.Equal(t, domain.RentalStatusRequested, f.rental(t, r.ID).Status)
	})

	t.Run("Vehicle not rentable", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)
		require.NoError(t, f.store.SetStatus(ctx, vehicleID, domain.VehicleStatusInspection))

		_, _, err = f.rentals.ConfirmRental(ctx, r.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
		f.gw.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
	})

	t.Run("Overlapping request loses", func(t *testing.T) {
		f := newFixture(t, nil)
		first, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)
		second, err := f.rentals.RequestRental(ctx, vehicleID, strangerID, "2025-06-12", "2025-06-16")
		require.NoError(t, err)

		f.gw.On("Authorize", mock.Anything, mock.Anything).Return(approved("tx_1"), nil).Once()
		_, _, err = f.rentals.ConfirmRental(ctx, first.ID)
		require.NoError(t, err)

		_, _, err = f.rentals.ConfirmRental(ctx, second.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, domain.RentalStatusRequested, f.rental(t, second.ID).Status)
		f.gw.AssertNumberOfCalls(t, "Authorize", 1)
	})
}

func TestRentalService_PickupRental(t *testing.T) {
	ctx := context.Background()

	t.Run("Capture declined stays confirmed", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")
		f.gw.On("Capture", mock.Anything, "tx_1", int64(2500), mock.Anything).
			Return(&gateway.Result{Message: "authorization expired"}, nil).Once()

		_, err := f.rentals.PickupRental(ctx, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
		assert.Equal(t, domain.RentalStatusConfirmed, f.rental(t, r.ID).Status)
		assert.Equal(t, domain.PaymentStatusAuthorized, f.rentalPayment(t, r.ID).Status)

		f.gw.On("Capture", mock.Anything, "tx_1", int64(2500), mock.Anything).Return(approved("tx_1"), nil).Once()
		r, err = f.rentals.PickupRental(ctx, r.ID, "retry")
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusInUse, r.Status)
	})

	t.Run("Requested rental", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)
		_, err = f.rentals.PickupRental(ctx, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestRentalService_ReturnRental(t *testing.T) {
	ctx := context.Background()

	t.Run("Not in use", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")
		_, err := f.rentals.ReturnRental(ctx, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t))
	})

	t.Run("Another booking keeps vehicle reserved", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.inUse(t, "2025-06-01", "2025-06-03", "tx_1")
		f.confirmed(t, "2025-06-20", "2025-06-22", "tx_2")

		_, err := f.rentals.ReturnRental(ctx, r.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t))
	})
}

func TestRentalService_CancelRental(t *testing.T) {
	ctx := context.Background()

	t.Run("Captured payment refunded once", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.inUse(t, "2025-06-10", "2025-06-14", "tx_1")
		f.gw.On("Refund", mock.Anything, "tx_1", int64(2500), mock.Anything).Return(approved("re_1"), nil).Once()

		r, err := f.rentals.CancelRental(ctx, r.ID, customerID)
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusCancelled, r.Status)
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t))

		p := f.rentalPayment(t, r.ID)
		assert.Equal(t, domain.PaymentStatusRefunded, p.Status)
		assert.Equal(t, int64(2500), p.RefundedCents)
		f.gw.AssertNumberOfCalls(t, "Refund", 1)
		assert.Contains(t, f.pub.types(), domain.EventPaymentRefunded)
	})

	t.Run("Refund failure keeps rental", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.inUse(t, "2025-06-10", "2025-06-14", "tx_1")
		f.gw.On("Refund", mock.Anything, "tx_1", int64(2500), mock.Anything).
			Return(&gateway.Result{Message: "processor unavailable"}, nil).Once()

		_, err := f.rentals.CancelRental(ctx, r.ID, customerID)
		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
		assert.Equal(t, domain.RentalStatusInUse, f.rental(t, r.ID).Status)
		assert.Equal(t, domain.PaymentStatusCaptured, f.rentalPayment(t, r.ID).Status)
		assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t))
	})

	t.Run("Authorized payment voided without gateway", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")

		r, err := f.rentals.CancelRental(ctx, r.ID, customerID)
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusCancelled, r.Status)
		assert.Equal(t, domain.PaymentStatusRefunded, f.rentalPayment(t, r.ID).Status)
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t))
		f.gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Requested rental", func(t *testing.T) {
		f := newFixture(t, nil)
		r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-06-10", "2025-06-14")
		require.NoError(t, err)

		r, err = f.rentals.CancelRental(ctx, r.ID, customerID)
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusCancelled, r.Status)
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t))
	})

	t.Run("Stranger denied", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")
		_, err := f.rentals.CancelRental(ctx, r.ID, strangerID)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
		assert.Equal(t, domain.RentalStatusConfirmed, f.rental(t, r.ID).Status)

		_, err = f.rentals.CancelRental(ctx, r.ID, 404)
		assert.ErrorIs(t, err, domain.ErrAccessDenied)
	})

	t.Run("Admin may cancel", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")
		r, err := f.rentals.CancelRental(ctx, r.ID, adminID)
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusCancelled, r.Status)
	})

	t.Run("Terminal rental", func(t *testing.T) {
		f := newFixture(t, nil)
		r := f.inUse(t, "2025-06-10", "2025-06-14", "tx_1")
		_, err := f.rentals.ReturnRental(ctx, r.ID, "")
		require.NoError(t, err)

		_, err = f.rentals.CancelRental(ctx, r.ID, customerID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		f.gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRentalService_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	r := f.confirmed(t, "2025-06-10", "2025-06-14", "tx_1")
	_, err := f.rentals.RequestRental(ctx, vehicleID, customerID, "2025-07-01", "2025-07-02")
	require.NoError(t, err)

	got, payment, err := f.rentals.GetRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	require.NotNil(t, payment)
	assert.Equal(t, "tx_1", payment.TransactionID)

	_, _, err = f.rentals.GetRental(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rentals, total, err := f.rentals.ListCustomerRentals(ctx, customerID, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), total)
	assert.Len(t, rentals, 2)

	rentals, total, err = f.rentals.ListCustomerRentals(ctx, customerID, "CONFIRMED", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Equal(t, r.ID, rentals[0].ID)

	_, _, err = f.rentals.ListCustomerRentals(ctx, customerID, "PARKED", 1, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// Concurrent request+confirm storms against one vehicle must never leave two
// blocking rentals with overlapping dates.
func TestRentalService_NoDoubleBooking(t *testing.T) {
	f := newFixture(t, gateway.NewSandboxGateway(0, 0))
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	type span struct{ start, end int }
	spans := make([]span, 60)
	for i := range spans {
		s := 2 + rng.Intn(25)
		spans[i] = span{s, s + rng.Intn(4)}
	}

	var wg sync.WaitGroup
	for i, sp := range spans {
		wg.Add(1)
		go func(i int, sp span) {
			defer wg.Done()
			customer := customerID
			if i%2 == 1 {
				customer = strangerID
			}
			r, err := f.rentals.RequestRental(ctx, vehicleID, customer,
				fmt.Sprintf("2025-06-%02d", sp.start), fmt.Sprintf("2025-06-%02d", sp.end))
			if err != nil {
				return
			}
			_, _, _ = f.rentals.ConfirmRental(ctx, r.ID)
		}(i, sp)
	}
	wg.Wait()

	var blocking []domain.Rental
	for _, r := range f.store.Rentals() {
		if r.Status.IsBlocking() {
			blocking = append(blocking, r)
		}
	}
	require.NotEmpty(t, blocking)
	for i := range blocking {
		a, err := blocking[i].Range()
		require.NoError(t, err)
		for j := i + 1; j < len(blocking); j++ {
			b, err := blocking[j].Range()
			require.NoError(t, err)
			assert.False(t, a.Overlaps(b), "rentals %d and %d overlap", blocking[i].ID, blocking[j].ID)
		}
	}
}
