package postgres

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"

	"github.com/lib/pq"
)

type vehicleRegistry struct {
	db *sql.DB
}

func NewVehicleRegistry(db *sql.DB) repository.VehicleRegistry {
	return &vehicleRegistry{db: db}
}

func (r *vehicleRegistry) GetByID(ctx context.Context, id int32) (*domain.Vehicle, error) {
	query := `SELECT id, make, model, plate, daily_rate_cents, currency, status, updated_on FROM vehicles WHERE id = $1`
	var (
		v         domain.Vehicle
		updatedOn time.Time
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.Make, &v.Model, &v.Plate, &v.DailyRateCents, &v.Currency, &v.Status, &updatedOn)
	if err != nil {
		return nil, notFound(err)
	}
	v.UpdatedOn = formatTimestamp(updatedOn)
	return &v, nil
}

func (r *vehicleRegistry) GetStatus(ctx context.Context, id int32) (domain.VehicleStatus, error) {
	var status domain.VehicleStatus
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT status FROM vehicles WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return "", notFound(err)
	}
	return status, nil
}

func (r *vehicleRegistry) SetStatus(ctx context.Context, id int32, status domain.VehicleStatus) error {
	query := `UPDATE vehicles SET status = $1, updated_on = $2 WHERE id = $3`
	logger.DatabaseCall("SetVehicleStatus", query, "vehicleID", id, "status", status)
	res, err := conn(ctx, r.db).ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		logger.DatabaseResult("SetVehicleStatus", 0, err)
		return err
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("SetVehicleStatus", n, nil)
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *vehicleRegistry) CompareAndSetStatus(ctx context.Context, id int32, expected []domain.VehicleStatus, next domain.VehicleStatus) (bool, error) {
	names := make([]string, len(expected))
	for i, s := range expected {
		names[i] = string(s)
	}

	query := `UPDATE vehicles SET status = $1, updated_on = $2 WHERE id = $3 AND status = ANY($4)`
	logger.DatabaseCall("CompareAndSetVehicleStatus", query, "vehicleID", id, "expected", names, "next", next)
	res, err := conn(ctx, r.db).ExecContext(ctx, query, next, time.Now(), id, pq.Array(names))
	if err != nil {
		logger.DatabaseResult("CompareAndSetVehicleStatus", 0, err)
		return false, err
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("CompareAndSetVehicleStatus", n, nil)
	return n == 1, nil
}
