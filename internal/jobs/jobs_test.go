package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"carrental-backend/internal/config"
	"carrental-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) ListOverdue(ctx context.Context, asOf string) ([]domain.Rental, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Rental), args.Error(1)
}

func (m *MockFinder) ListStaleRequests(ctx context.Context, asOf string) ([]domain.Rental, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Rental), args.Error(1)
}

func (m *MockFinder) ListByStatus(ctx context.Context, ownerType domain.PaymentOwnerType, status domain.PaymentStatus) ([]domain.Payment, error) {
	args := m.Called(ctx, ownerType, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

type MockCanceller struct {
	mock.Mock
}

func (m *MockCanceller) CancelRental(ctx context.Context, rentalID, actorID int32) (*domain.Rental, error) {
	args := m.Called(ctx, rentalID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Alert(ctx context.Context, subject, body string) error {
	return m.Called(ctx, subject, body).Error(0)
}

type fixture struct {
	finder    *MockFinder
	canceller *MockCanceller
	alerter   *MockAlerter
	runner    *JobRunner
}

func newFixture() *fixture {
	f := &fixture{finder: new(MockFinder), canceller: new(MockCanceller), alerter: new(MockAlerter)}
	cfg := &config.Config{Jobs: config.JobsConfig{SystemActorID: 99}}
	now := func() time.Time { return time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC) }
	f.runner = NewJobRunner(&Services{
		Rentals:  f.canceller,
		Finder:   f.finder,
		Payments: f.finder,
		Alerts:   f.alerter,
	}, cfg, now)
	return f
}

func TestExpireStaleRequests(t *testing.T) {
	t.Run("Cancels as the system actor", func(t *testing.T) {
		f := newFixture()
		f.finder.On("ListStaleRequests", mock.Anything, "2025-06-01").Return([]domain.Rental{{ID: 1}, {ID: 2}, {ID: 3}}, nil)
		f.canceller.On("CancelRental", mock.Anything, int32(1), int32(99)).Return(&domain.Rental{ID: 1}, nil)
		f.canceller.On("CancelRental", mock.Anything, int32(2), int32(99)).Return(nil, domain.InvalidStatef("already confirmed"))
		f.canceller.On("CancelRental", mock.Anything, int32(3), int32(99)).Return(&domain.Rental{ID: 3}, nil)

		f.runner.ExpireStaleRequests()

		f.canceller.AssertNumberOfCalls(t, "CancelRental", 3)
		f.canceller.AssertExpectations(t)
	})

	t.Run("Listing failure", func(t *testing.T) {
		f := newFixture()
		f.finder.On("ListStaleRequests", mock.Anything, "2025-06-01").Return(nil, errors.New("db down"))

		f.runner.ExpireStaleRequests()

		f.canceller.AssertNotCalled(t, "CancelRental", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSendOverdueAlerts(t *testing.T) {
	t.Run("Alerts with every overdue rental", func(t *testing.T) {
		f := newFixture()
		f.finder.On("ListOverdue", mock.Anything, "2025-06-01").Return([]domain.Rental{
			{ID: 4, VehicleID: 1, CustomerID: 10, EndDate: "2025-05-30"},
			{ID: 5, VehicleID: 2, CustomerID: 11, EndDate: "2025-05-31"},
		}, nil)
		f.alerter.On("Alert", mock.Anything, "2 overdue rental(s)", mock.MatchedBy(func(body string) bool {
			return assert.Contains(t, body, "rental 4: vehicle 1, customer 10, due 2025-05-30") &&
				assert.Contains(t, body, "rental 5")
		})).Return(nil)

		f.runner.SendOverdueAlerts()

		f.alerter.AssertExpectations(t)
	})

	t.Run("Nothing overdue", func(t *testing.T) {
		f := newFixture()
		f.finder.On("ListOverdue", mock.Anything, "2025-06-01").Return([]domain.Rental{}, nil)

		f.runner.SendOverdueAlerts()

		f.alerter.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSendChargeFollowUps(t *testing.T) {
	f := newFixture()
	f.finder.On("ListByStatus", mock.Anything, domain.PaymentOwnerDamage, domain.PaymentStatusFailed).Return([]domain.Payment{
		{OwnerID: 3, AmountCents: 12550, Currency: "USD", Attempts: 2, FailureReason: "card declined"},
	}, nil)
	f.alerter.On("Alert", mock.Anything, "1 failed damage charge(s)", mock.MatchedBy(func(body string) bool {
		return assert.Contains(t, body, "damage report 3: 125.50 USD, 2 attempt(s), last error: card declined")
	})).Return(errors.New("sendgrid down"))

	// A failed alert is logged, not raised.
	f.runner.SendChargeFollowUps()

	f.alerter.AssertExpectations(t)
}

func TestRunWithRecovery(t *testing.T) {
	f := newFixture()
	assert.NotPanics(t, func() {
		f.runner.runWithRecovery("Boom", func(ctx context.Context) { panic("boom") })
	})
}
