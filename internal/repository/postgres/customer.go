package postgres

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type customerDirectory struct {
	db *sql.DB
}

func NewCustomerDirectory(db *sql.DB) repository.CustomerDirectory {
	return &customerDirectory{db: db}
}

func (r *customerDirectory) GetByID(ctx context.Context, id int32) (*domain.Customer, error) {
	query := `SELECT id, email, display_name, role, COALESCE(payment_ref, ''), COALESCE(payment_method_ref, ''), created_on
	          FROM customers WHERE id = $1`
	var (
		c         domain.Customer
		createdOn time.Time
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Email, &c.DisplayName, &c.Role, &c.PaymentRef, &c.PaymentMethodRef, &createdOn)
	if err != nil {
		return nil, notFound(err)
	}
	c.CreatedOn = formatTimestamp(createdOn)
	return &c, nil
}
