package memory

import (
	"context"
	"slices"
	"sort"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type rentalRepository struct {
	db *database
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	return r.db.read(ctx, func(t *tables) error {
		t.nextRentalID++
		rt.ID = t.nextRentalID
		rt.Version = 1
		rt.CreatedOn = r.db.timestamp()
		rt.UpdatedOn = rt.CreatedOn
		t.rentals[rt.ID] = *rt
		return nil
	})
}

func (r *rentalRepository) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	var out *domain.Rental
	err := r.db.read(ctx, func(t *tables) error {
		rt, ok := t.rentals[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &rt
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock because the transaction holds the store.
func (r *rentalRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Rental, error) {
	if !inTx(ctx) {
		return nil, repository.ErrNoTransaction
	}
	return r.GetByID(ctx, id)
}

func (r *rentalRepository) Update(ctx context.Context, rt *domain.Rental) error {
	return r.db.read(ctx, func(t *tables) error {
		current, ok := t.rentals[rt.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != rt.Version {
			return repository.ErrVersionConflict
		}
		current.Status = rt.Status
		current.PickupNotes = rt.PickupNotes
		current.ReturnNotes = rt.ReturnNotes
		current.Version++
		current.UpdatedOn = r.db.timestamp()
		t.rentals[rt.ID] = current

		rt.Version = current.Version
		rt.UpdatedOn = current.UpdatedOn
		return nil
	})
}

func (r *rentalRepository) LockVehicle(ctx context.Context, vehicleID int32) error {
	if !inTx(ctx) {
		return repository.ErrNoTransaction
	}
	return nil
}

func (r *rentalRepository) ListByVehicle(ctx context.Context, vehicleID int32, statuses []domain.RentalStatus) ([]domain.Rental, error) {
	return r.filter(ctx, func(rt domain.Rental) bool {
		return rt.VehicleID == vehicleID && slices.Contains(statuses, rt.Status)
	}, byStartDate)
}

func (r *rentalRepository) ListByCustomer(ctx context.Context, customerID int32, status string, page, pageSize int32) ([]domain.Rental, int32, error) {
	all, err := r.filter(ctx, func(rt domain.Rental) bool {
		return rt.CustomerID == customerID && (status == "" || string(rt.Status) == status)
	}, func(a, b domain.Rental) bool { return a.ID > b.ID })
	if err != nil {
		return nil, 0, err
	}

	total := int32(len(all))
	offset := (page - 1) * pageSize
	if offset >= total || offset < 0 {
		return nil, total, nil
	}
	end := min(offset+pageSize, total)
	return all[offset:end], total, nil
}

func (r *rentalRepository) ListOverdue(ctx context.Context, asOf string) ([]domain.Rental, error) {
	return r.filter(ctx, func(rt domain.Rental) bool {
		return rt.Status == domain.RentalStatusInUse && rt.EndDate < asOf
	}, byStartDate)
}

func (r *rentalRepository) ListStaleRequests(ctx context.Context, asOf string) ([]domain.Rental, error) {
	return r.filter(ctx, func(rt domain.Rental) bool {
		return rt.Status == domain.RentalStatusRequested && rt.StartDate < asOf
	}, byStartDate)
}

func byStartDate(a, b domain.Rental) bool {
	if a.StartDate == b.StartDate {
		return a.ID < b.ID
	}
	return a.StartDate < b.StartDate
}

// filter relies on yyyy-mm-dd strings sorting in calendar order.
func (r *rentalRepository) filter(ctx context.Context, keep func(domain.Rental) bool, less func(a, b domain.Rental) bool) ([]domain.Rental, error) {
	var out []domain.Rental
	err := r.db.read(ctx, func(t *tables) error {
		for _, rt := range t.rentals {
			if keep(rt) {
				out = append(out, rt)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, err
}
