package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"

	"github.com/lib/pq"
)

// vehicleLockNamespace keeps vehicle advisory locks apart from other
// two-key advisory locks taken on the same database.
const vehicleLockNamespace = 7301

const rentalColumns = `id, vehicle_id, customer_id, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'),
	days, daily_price_cents, total_price_cents, currency, status, pickup_notes, return_notes, version, created_on, updated_on`

type rentalRepository struct {
	db *sql.DB
}

func NewRentalRepository(db *sql.DB) repository.RentalRepository {
	return &rentalRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRental(row rowScanner) (*domain.Rental, error) {
	var (
		rt        domain.Rental
		createdOn time.Time
		updatedOn time.Time
	)
	err := row.Scan(&rt.ID, &rt.VehicleID, &rt.CustomerID, &rt.StartDate, &rt.EndDate,
		&rt.Days, &rt.DailyPriceCents, &rt.TotalPriceCents, &rt.Currency, &rt.Status,
		&rt.PickupNotes, &rt.ReturnNotes, &rt.Version, &createdOn, &updatedOn)
	if err != nil {
		return nil, err
	}
	rt.CreatedOn = formatTimestamp(createdOn)
	rt.UpdatedOn = formatTimestamp(updatedOn)
	return &rt, nil
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	logger.EnterMethod("rentalRepository.Create", "vehicleID", rt.VehicleID, "customerID", rt.CustomerID)

	query := `INSERT INTO rentals (vehicle_id, customer_id, start_date, end_date, days, daily_price_cents,
	              total_price_cents, currency, status, pickup_notes, return_notes, version, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13) RETURNING id`
	now := time.Now()
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		rt.VehicleID, rt.CustomerID, rt.StartDate, rt.EndDate, rt.Days, rt.DailyPriceCents,
		rt.TotalPriceCents, rt.Currency, rt.Status, rt.PickupNotes, rt.ReturnNotes, now, now,
	).Scan(&rt.ID)
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.Create", err, "vehicleID", rt.VehicleID)
		return err
	}

	rt.Version = 1
	rt.CreatedOn = formatTimestamp(now)
	rt.UpdatedOn = rt.CreatedOn
	logger.ExitMethod("rentalRepository.Create", "rentalID", rt.ID)
	return nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id int32) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	rt, err := scanRental(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rt, nil
}

func (r *rentalRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Rental, error) {
	if !inTx(ctx) {
		return nil, repository.ErrNoTransaction
	}
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1 FOR UPDATE`
	rt, err := scanRental(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rt, nil
}

func (r *rentalRepository) Update(ctx context.Context, rt *domain.Rental) error {
	logger.EnterMethod("rentalRepository.Update", "rentalID", rt.ID, "status", rt.Status, "version", rt.Version)

	query := `UPDATE rentals SET status=$1, pickup_notes=$2, return_notes=$3, version=version+1, updated_on=$4
	          WHERE id=$5 AND version=$6`
	now := time.Now()
	res, err := conn(ctx, r.db).ExecContext(ctx, query, rt.Status, rt.PickupNotes, rt.ReturnNotes, now, rt.ID, rt.Version)
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.Update", err, "rentalID", rt.ID)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.ExitMethodWithError("rentalRepository.Update", repository.ErrVersionConflict, "rentalID", rt.ID)
		return repository.ErrVersionConflict
	}

	rt.Version++
	rt.UpdatedOn = formatTimestamp(now)
	logger.ExitMethod("rentalRepository.Update", "rentalID", rt.ID)
	return nil
}

func (r *rentalRepository) LockVehicle(ctx context.Context, vehicleID int32) error {
	if !inTx(ctx) {
		return repository.ErrNoTransaction
	}
	query := `SELECT pg_advisory_xact_lock($1, $2)`
	logger.DatabaseCall("LockVehicle", query, "vehicleID", vehicleID)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, vehicleLockNamespace, vehicleID)
	logger.DatabaseResult("LockVehicle", 0, err, "vehicleID", vehicleID)
	return err
}

func (r *rentalRepository) ListByVehicle(ctx context.Context, vehicleID int32, statuses []domain.RentalStatus) ([]domain.Rental, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE vehicle_id = $1 AND status = ANY($2) ORDER BY start_date`
	return r.list(ctx, query, vehicleID, pq.Array(names))
}

func (r *rentalRepository) ListByCustomer(ctx context.Context, customerID int32, status string, page, pageSize int32) ([]domain.Rental, int32, error) {
	offset := (page - 1) * pageSize
	where := ` FROM rentals WHERE customer_id = $1`
	args := []any{customerID}
	argIdx := 2
	if status != "" {
		where += " AND status = $2"
		args = append(args, status)
		argIdx++
	}

	var count int32
	if err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT count(*)"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + rentalColumns + where + fmt.Sprintf(" ORDER BY created_on DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, offset)
	rentals, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rentals, count, nil
}

func (r *rentalRepository) ListOverdue(ctx context.Context, asOf string) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE status = $1 AND end_date < $2 ORDER BY end_date`
	return r.list(ctx, query, domain.RentalStatusInUse, asOf)
}

func (r *rentalRepository) ListStaleRequests(ctx context.Context, asOf string) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE status = $1 AND start_date < $2 ORDER BY start_date`
	return r.list(ctx, query, domain.RentalStatusRequested, asOf)
}

func (r *rentalRepository) list(ctx context.Context, query string, args ...any) ([]domain.Rental, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rentals []domain.Rental
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
	}
	return rentals, rows.Err()
}
