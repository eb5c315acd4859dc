package postgres

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

const paymentColumns = `id, owner_type, owner_id, amount_cents, refunded_cents, currency, status,
	COALESCE(transaction_id, ''), COALESCE(failure_reason, ''), attempts, version, created_on, updated_on`

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p         domain.Payment
		createdOn time.Time
		updatedOn time.Time
	)
	err := row.Scan(&p.ID, &p.OwnerType, &p.OwnerID, &p.AmountCents, &p.RefundedCents, &p.Currency, &p.Status,
		&p.TransactionID, &p.FailureReason, &p.Attempts, &p.Version, &createdOn, &updatedOn)
	if err != nil {
		return nil, err
	}
	p.CreatedOn = formatTimestamp(createdOn)
	p.UpdatedOn = formatTimestamp(updatedOn)
	return &p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	logger.EnterMethod("paymentRepository.Create", "ownerType", p.OwnerType, "ownerID", p.OwnerID, "status", p.Status)

	query := `INSERT INTO payments (owner_type, owner_id, amount_cents, refunded_cents, currency, status,
	              transaction_id, failure_reason, attempts, version, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11) RETURNING id`
	now := time.Now()
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		p.OwnerType, p.OwnerID, p.AmountCents, p.RefundedCents, p.Currency, p.Status,
		p.TransactionID, p.FailureReason, p.Attempts, now, now,
	).Scan(&p.ID)
	if err != nil {
		logger.ExitMethodWithError("paymentRepository.Create", err, "ownerID", p.OwnerID)
		return err
	}

	p.Version = 1
	p.CreatedOn = formatTimestamp(now)
	p.UpdatedOn = p.CreatedOn
	logger.ExitMethod("paymentRepository.Create", "paymentID", p.ID)
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int32) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *paymentRepository) GetByOwner(ctx context.Context, ownerType domain.PaymentOwnerType, ownerID int32) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE owner_type = $1 AND owner_id = $2`
	p, err := scanPayment(conn(ctx, r.db).QueryRowContext(ctx, query, ownerType, ownerID))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// Update never touches amount_cents; refunds only move refunded_cents.
func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	logger.EnterMethod("paymentRepository.Update", "paymentID", p.ID, "status", p.Status, "version", p.Version)

	query := `UPDATE payments SET amount_cents=$1, status=$2, refunded_cents=$3, transaction_id=$4,
	              failure_reason=$5, attempts=$6, version=version+1, updated_on=$7
	          WHERE id=$8 AND version=$9`
	now := time.Now()
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		p.AmountCents, p.Status, p.RefundedCents, p.TransactionID, p.FailureReason, p.Attempts, now, p.ID, p.Version)
	if err != nil {
		logger.ExitMethodWithError("paymentRepository.Update", err, "paymentID", p.ID)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.ExitMethodWithError("paymentRepository.Update", repository.ErrVersionConflict, "paymentID", p.ID)
		return repository.ErrVersionConflict
	}

	p.Version++
	p.UpdatedOn = formatTimestamp(now)
	logger.ExitMethod("paymentRepository.Update", "paymentID", p.ID)
	return nil
}

func (r *paymentRepository) ListByStatus(ctx context.Context, ownerType domain.PaymentOwnerType, status domain.PaymentStatus) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE owner_type = $1 AND status = $2 ORDER BY updated_on`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, ownerType, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
