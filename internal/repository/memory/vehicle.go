package memory

import (
	"context"
	"slices"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type vehicleRegistry struct {
	db *database
}

func (r *vehicleRegistry) GetByID(ctx context.Context, id int32) (*domain.Vehicle, error) {
	var out *domain.Vehicle
	err := r.db.read(ctx, func(t *tables) error {
		v, ok := t.vehicles[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *vehicleRegistry) GetStatus(ctx context.Context, id int32) (domain.VehicleStatus, error) {
	v, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return v.Status, nil
}

func (r *vehicleRegistry) SetStatus(ctx context.Context, id int32, status domain.VehicleStatus) error {
	return r.db.read(ctx, func(t *tables) error {
		v, ok := t.vehicles[id]
		if !ok {
			return repository.ErrNotFound
		}
		v.Status = status
		v.UpdatedOn = r.db.timestamp()
		t.vehicles[id] = v
		return nil
	})
}

func (r *vehicleRegistry) CompareAndSetStatus(ctx context.Context, id int32, expected []domain.VehicleStatus, next domain.VehicleStatus) (bool, error) {
	swapped := false
	err := r.db.read(ctx, func(t *tables) error {
		v, ok := t.vehicles[id]
		if !ok || !slices.Contains(expected, v.Status) {
			return nil
		}
		v.Status = next
		v.UpdatedOn = r.db.timestamp()
		t.vehicles[id] = v
		swapped = true
		return nil
	})
	return swapped, err
}

type customerDirectory struct {
	db *database
}

func (r *customerDirectory) GetByID(ctx context.Context, id int32) (*domain.Customer, error) {
	var out *domain.Customer
	err := r.db.read(ctx, func(t *tables) error {
		c, ok := t.customers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}
