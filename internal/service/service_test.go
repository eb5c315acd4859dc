package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Authorize(ctx context.Context, req gateway.AuthorizeRequest) (*gateway.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

func (m *MockGateway) Capture(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*gateway.Result, error) {
	args := m.Called(ctx, transactionID, amountCents, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*gateway.Result, error) {
	args := m.Called(ctx, transactionID, amountCents, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Result), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

const (
	vehicleID  = int32(1)
	customerID = int32(10)
	strangerID = int32(11)
	adminID    = int32(99)
)

var today = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	gw      *MockGateway
	pub     *recordingPublisher
	rentals RentalService
	damages DamageService
}

func newFixture(t *testing.T, gw gateway.PaymentGateway) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutVehicle(domain.Vehicle{ID: vehicleID, Make: "Toyota", Model: "Corolla", Plate: "ABC-123",
		DailyRateCents: 500, Currency: "USD", Status: domain.VehicleStatusAvailable})
	store.PutVehicle(domain.Vehicle{ID: 2, Make: "Ford", Model: "Focus", Plate: "XYZ-999",
		DailyRateCents: 700, Currency: "USD", Status: domain.VehicleStatusMaintenance})
	store.PutCustomer(domain.Customer{ID: customerID, Email: "ann@example.com", DisplayName: "Ann",
		Role: domain.CustomerRoleCustomer, PaymentRef: "cus_10", PaymentMethodRef: "pm_10"})
	store.PutCustomer(domain.Customer{ID: strangerID, Email: "bob@example.com", DisplayName: "Bob",
		Role: domain.CustomerRoleCustomer, PaymentRef: "cus_11"})
	store.PutCustomer(domain.Customer{ID: adminID, Email: "desk@example.com", DisplayName: "Desk",
		Role: domain.CustomerRoleAdmin})

	mg, _ := gw.(*MockGateway)
	if gw == nil {
		mg = new(MockGateway)
		gw = mg
	}

	pub := &recordingPublisher{}
	clock := func() time.Time { return today }
	processor := NewPaymentProcessor(gw, 50*time.Millisecond)
	quoter := pricing.NewRateCardEngine(store.VehicleRegistry, pricing.DefaultTiers, "USD")
	thresholds := domain.SeverityThresholds{MinorCents: 500, ModerateCents: 2000, MajorCents: 10000}

	return &fixture{
		store: store,
		gw:    mg,
		pub:   pub,
		rentals: NewRentalService(store, store.RentalRepository, store.PaymentRepository,
			store.VehicleRegistry, store.CustomerDirectory, quoter, processor, pub, clock),
		damages: NewDamageService(store, store.DamageReportRepository, store.RentalRepository,
			store.PaymentRepository, store.VehicleRegistry, store.CustomerDirectory, processor, pub,
			thresholds, "USD", clock),
	}
}

func approved(txID string) *gateway.Result {
	return &gateway.Result{Success: true, TransactionID: txID}
}

func (f *fixture) vehicleStatus(t *testing.T) domain.VehicleStatus {
	t.Helper()
	status, err := f.store.GetStatus(context.Background(), vehicleID)
	require.NoError(t, err)
	return status
}

func (f *fixture) rental(t *testing.T, id int32) *domain.Rental {
	t.Helper()
	r, err := f.store.RentalRepository.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (f *fixture) rentalPayment(t *testing.T, rentalID int32) *domain.Payment {
	t.Helper()
	p, err := f.store.GetByOwner(context.Background(), domain.PaymentOwnerRental, rentalID)
	require.NoError(t, err)
	return p
}

// confirmed books start..end and confirms it with an authorization txID.
func (f *fixture) confirmed(t *testing.T, start, end, txID string) *domain.Rental {
	t.Helper()
	ctx := context.Background()
	r, err := f.rentals.RequestRental(ctx, vehicleID, customerID, start, end)
	require.NoError(t, err)

	amount := r.TotalPriceCents
	f.gw.On("Authorize", mock.Anything, mock.MatchedBy(func(req gateway.AuthorizeRequest) bool {
		return req.AmountCents == amount
	})).Return(approved(txID), nil).Once()

	r, _, err = f.rentals.ConfirmRental(ctx, r.ID)
	require.NoError(t, err)
	return r
}

// inUse books, confirms and picks up start..end.
func (f *fixture) inUse(t *testing.T, start, end, txID string) *domain.Rental {
	t.Helper()
	r := f.confirmed(t, start, end, txID)
	f.gw.On("Capture", mock.Anything, txID, r.TotalPriceCents, mock.Anything).Return(approved(txID), nil).Once()

	r, err := f.rentals.PickupRental(context.Background(), r.ID, "full tank")
	require.NoError(t, err)
	return r
}
