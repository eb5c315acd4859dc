package memory

import (
	"context"
	"sort"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type damageReportRepository struct {
	db *database
}

func copyReport(d domain.DamageReport) *domain.DamageReport {
	if d.PaymentID != nil {
		id := *d.PaymentID
		d.PaymentID = &id
	}
	return &d
}

func (r *damageReportRepository) Create(ctx context.Context, d *domain.DamageReport) error {
	return r.db.read(ctx, func(t *tables) error {
		t.nextDamageID++
		d.ID = t.nextDamageID
		d.Version = 1
		d.CreatedOn = r.db.timestamp()
		d.UpdatedOn = d.CreatedOn
		t.damages[d.ID] = *copyReport(*d)
		return nil
	})
}

func (r *damageReportRepository) GetByID(ctx context.Context, id int32) (*domain.DamageReport, error) {
	var out *domain.DamageReport
	err := r.db.read(ctx, func(t *tables) error {
		d, ok := t.damages[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyReport(d)
		return nil
	})
	return out, err
}

func (r *damageReportRepository) GetForUpdate(ctx context.Context, id int32) (*domain.DamageReport, error) {
	if !inTx(ctx) {
		return nil, repository.ErrNoTransaction
	}
	return r.GetByID(ctx, id)
}

func (r *damageReportRepository) Update(ctx context.Context, d *domain.DamageReport) error {
	return r.db.read(ctx, func(t *tables) error {
		current, ok := t.damages[d.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != d.Version {
			return repository.ErrVersionConflict
		}
		next := *copyReport(*d)
		next.RentalID = current.RentalID
		next.VehicleID = current.VehicleID
		next.CustomerID = current.CustomerID
		next.CreatedOn = current.CreatedOn
		next.Version = current.Version + 1
		next.UpdatedOn = r.db.timestamp()
		t.damages[d.ID] = next

		d.Version = next.Version
		d.UpdatedOn = next.UpdatedOn
		return nil
	})
}

func (r *damageReportRepository) ListByRental(ctx context.Context, rentalID int32) ([]domain.DamageReport, error) {
	var out []domain.DamageReport
	err := r.db.read(ctx, func(t *tables) error {
		for _, d := range t.damages {
			if d.RentalID == rentalID {
				out = append(out, *copyReport(d))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
