package postgres

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

const damageColumns = `id, rental_id, vehicle_id, customer_id, description, severity, repair_cost_cents,
	customer_liability_cents, insured, deductible_cents, status, requires_admin_review,
	COALESCE(dispute_reason, ''), COALESCE(resolution_notes, ''), payment_id, version, created_on, updated_on`

type damageReportRepository struct {
	db *sql.DB
}

func NewDamageReportRepository(db *sql.DB) repository.DamageReportRepository {
	return &damageReportRepository{db: db}
}

func scanDamageReport(row rowScanner) (*domain.DamageReport, error) {
	var (
		d         domain.DamageReport
		paymentID sql.NullInt32
		createdOn time.Time
		updatedOn time.Time
	)
	err := row.Scan(&d.ID, &d.RentalID, &d.VehicleID, &d.CustomerID, &d.Description, &d.Severity, &d.RepairCostCents,
		&d.CustomerLiabilityCents, &d.Insured, &d.DeductibleCents, &d.Status, &d.RequiresAdminReview,
		&d.DisputeReason, &d.ResolutionNotes, &paymentID, &d.Version, &createdOn, &updatedOn)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		id := paymentID.Int32
		d.PaymentID = &id
	}
	d.CreatedOn = formatTimestamp(createdOn)
	d.UpdatedOn = formatTimestamp(updatedOn)
	return &d, nil
}

func (r *damageReportRepository) Create(ctx context.Context, d *domain.DamageReport) error {
	logger.EnterMethod("damageReportRepository.Create", "rentalID", d.RentalID, "severity", d.Severity)

	query := `INSERT INTO damage_reports (rental_id, vehicle_id, customer_id, description, severity, repair_cost_cents,
	              customer_liability_cents, insured, deductible_cents, status, requires_admin_review,
	              version, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13) RETURNING id`
	now := time.Now()
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		d.RentalID, d.VehicleID, d.CustomerID, d.Description, d.Severity, d.RepairCostCents,
		d.CustomerLiabilityCents, d.Insured, d.DeductibleCents, d.Status, d.RequiresAdminReview, now, now,
	).Scan(&d.ID)
	if err != nil {
		logger.ExitMethodWithError("damageReportRepository.Create", err, "rentalID", d.RentalID)
		return err
	}

	d.Version = 1
	d.CreatedOn = formatTimestamp(now)
	d.UpdatedOn = d.CreatedOn
	logger.ExitMethod("damageReportRepository.Create", "damageID", d.ID)
	return nil
}

func (r *damageReportRepository) GetByID(ctx context.Context, id int32) (*domain.DamageReport, error) {
	query := `SELECT ` + damageColumns + ` FROM damage_reports WHERE id = $1`
	d, err := scanDamageReport(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (r *damageReportRepository) GetForUpdate(ctx context.Context, id int32) (*domain.DamageReport, error) {
	if !inTx(ctx) {
		return nil, repository.ErrNoTransaction
	}
	query := `SELECT ` + damageColumns + ` FROM damage_reports WHERE id = $1 FOR UPDATE`
	d, err := scanDamageReport(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (r *damageReportRepository) Update(ctx context.Context, d *domain.DamageReport) error {
	logger.EnterMethod("damageReportRepository.Update", "damageID", d.ID, "status", d.Status, "version", d.Version)

	query := `UPDATE damage_reports SET severity=$1, repair_cost_cents=$2, customer_liability_cents=$3, insured=$4,
	              deductible_cents=$5, status=$6, requires_admin_review=$7, dispute_reason=$8, resolution_notes=$9,
	              payment_id=$10, version=version+1, updated_on=$11
	          WHERE id=$12 AND version=$13`
	now := time.Now()
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		d.Severity, d.RepairCostCents, d.CustomerLiabilityCents, d.Insured, d.DeductibleCents, d.Status,
		d.RequiresAdminReview, d.DisputeReason, d.ResolutionNotes, d.PaymentID, now, d.ID, d.Version)
	if err != nil {
		logger.ExitMethodWithError("damageReportRepository.Update", err, "damageID", d.ID)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.ExitMethodWithError("damageReportRepository.Update", repository.ErrVersionConflict, "damageID", d.ID)
		return repository.ErrVersionConflict
	}

	d.Version++
	d.UpdatedOn = formatTimestamp(now)
	logger.ExitMethod("damageReportRepository.Update", "damageID", d.ID)
	return nil
}

func (r *damageReportRepository) ListByRental(ctx context.Context, rentalID int32) ([]domain.DamageReport, error) {
	query := `SELECT ` + damageColumns + ` FROM damage_reports WHERE rental_id = $1 ORDER BY created_on`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, rentalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.DamageReport
	for rows.Next() {
		d, err := scanDamageReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *d)
	}
	return reports, rows.Err()
}
