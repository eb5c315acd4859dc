package memory

import (
	"context"
	"sort"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type paymentRepository struct {
	db *database
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return r.db.read(ctx, func(t *tables) error {
		for _, existing := range t.payments {
			if existing.OwnerType == p.OwnerType && existing.OwnerID == p.OwnerID {
				return repository.ErrVersionConflict
			}
		}
		t.nextPaymentID++
		p.ID = t.nextPaymentID
		p.Version = 1
		p.CreatedOn = r.db.timestamp()
		p.UpdatedOn = p.CreatedOn
		t.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepository) GetByID(ctx context.Context, id int32) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.db.read(ctx, func(t *tables) error {
		p, ok := t.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *paymentRepository) GetByOwner(ctx context.Context, ownerType domain.PaymentOwnerType, ownerID int32) (*domain.Payment, error) {
	var out *domain.Payment
	err := r.db.read(ctx, func(t *tables) error {
		for _, p := range t.payments {
			if p.OwnerType == ownerType && p.OwnerID == ownerID {
				out = &p
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	return r.db.read(ctx, func(t *tables) error {
		current, ok := t.payments[p.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != p.Version {
			return repository.ErrVersionConflict
		}
		current.AmountCents = p.AmountCents
		current.Status = p.Status
		current.RefundedCents = p.RefundedCents
		current.TransactionID = p.TransactionID
		current.FailureReason = p.FailureReason
		current.Attempts = p.Attempts
		current.Version++
		current.UpdatedOn = r.db.timestamp()
		t.payments[p.ID] = current

		p.Version = current.Version
		p.UpdatedOn = current.UpdatedOn
		return nil
	})
}

func (r *paymentRepository) ListByStatus(ctx context.Context, ownerType domain.PaymentOwnerType, status domain.PaymentStatus) ([]domain.Payment, error) {
	var out []domain.Payment
	err := r.db.read(ctx, func(t *tables) error {
		for _, p := range t.payments {
			if p.OwnerType == ownerType && p.Status == status {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
