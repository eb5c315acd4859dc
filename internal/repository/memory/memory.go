// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized behind a single mutex and
// rolled back by restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type tables struct {
	rentals   map[int32]domain.Rental
	payments  map[int32]domain.Payment
	damages   map[int32]domain.DamageReport
	vehicles  map[int32]domain.Vehicle
	customers map[int32]domain.Customer

	nextRentalID  int32
	nextPaymentID int32
	nextDamageID  int32
}

func newTables() *tables {
	return &tables{
		rentals:   map[int32]domain.Rental{},
		payments:  map[int32]domain.Payment{},
		damages:   map[int32]domain.DamageReport{},
		vehicles:  map[int32]domain.Vehicle{},
		customers: map[int32]domain.Customer{},
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		rentals:       make(map[int32]domain.Rental, len(t.rentals)),
		payments:      make(map[int32]domain.Payment, len(t.payments)),
		damages:       make(map[int32]domain.DamageReport, len(t.damages)),
		vehicles:      make(map[int32]domain.Vehicle, len(t.vehicles)),
		customers:     make(map[int32]domain.Customer, len(t.customers)),
		nextRentalID:  t.nextRentalID,
		nextPaymentID: t.nextPaymentID,
		nextDamageID:  t.nextDamageID,
	}
	for k, v := range t.rentals {
		c.rentals[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.damages {
		if v.PaymentID != nil {
			id := *v.PaymentID
			v.PaymentID = &id
		}
		c.damages[k] = v
	}
	for k, v := range t.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range t.customers {
		c.customers[k] = v
	}
	return c
}

type txKey struct{}

type database struct {
	mu   sync.Mutex
	data *tables
	now  func() time.Time
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// read runs fn against the tables, taking the lock unless ctx already
// belongs to a transaction that holds it.
func (d *database) read(ctx context.Context, fn func(t *tables) error) error {
	if inTx(ctx) {
		return fn(d.data)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.data)
}

func (d *database) timestamp() string {
	return d.now().UTC().Format(time.RFC3339)
}

// Store mirrors postgres.Store for the in-process driver.
type Store struct {
	db *database
	repository.RentalRepository
	repository.PaymentRepository
	repository.DamageReportRepository
	repository.VehicleRegistry
	repository.CustomerDirectory
}

func NewStore() *Store {
	db := &database{data: newTables(), now: time.Now}
	return &Store{
		db:                     db,
		RentalRepository:       &rentalRepository{db: db},
		PaymentRepository:      &paymentRepository{db: db},
		DamageReportRepository: &damageReportRepository{db: db},
		VehicleRegistry:        &vehicleRegistry{db: db},
		CustomerDirectory:      &customerDirectory{db: db},
	}
}

// WithTx implements repository.TxManager. Everything fn writes is discarded
// if it returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.db.data = snapshot
			panic(p)
		}
		if err != nil {
			s.db.data = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

// PutVehicle inserts or replaces a vehicle.
func (s *Store) PutVehicle(v domain.Vehicle) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if v.UpdatedOn == "" {
		v.UpdatedOn = s.db.timestamp()
	}
	s.db.data.vehicles[v.ID] = v
}

// PutCustomer inserts or replaces a customer.
func (s *Store) PutCustomer(c domain.Customer) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if c.CreatedOn == "" {
		c.CreatedOn = s.db.timestamp()
	}
	s.db.data.customers[c.ID] = c
}

// Rentals returns every stored rental ordered by id.
func (s *Store) Rentals() []domain.Rental {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]domain.Rental, 0, len(s.db.data.rentals))
	for _, r := range s.db.data.rentals {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
