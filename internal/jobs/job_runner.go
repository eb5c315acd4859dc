package jobs

import (
	"context"
	"time"

	"carrental-backend/internal/config"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

// RentalFinder lists rentals the jobs act on.
type RentalFinder interface {
	ListOverdue(ctx context.Context, asOf string) ([]domain.Rental, error)
	ListStaleRequests(ctx context.Context, asOf string) ([]domain.Rental, error)
}

type PaymentFinder interface {
	ListByStatus(ctx context.Context, ownerType domain.PaymentOwnerType, status domain.PaymentStatus) ([]domain.Payment, error)
}

// RentalCanceller is the slice of the rental service the jobs drive.
type RentalCanceller interface {
	CancelRental(ctx context.Context, rentalID, actorID int32) (*domain.Rental, error)
}

// Alerter emails the rental desk.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Services holds all dependencies needed by jobs
type Services struct {
	Rentals  RentalCanceller
	Finder   RentalFinder
	Payments PaymentFinder
	Alerts   Alerter
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	now      func() time.Time
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config, now func() time.Time) *JobRunner {
	if now == nil {
		now = time.Now
	}
	return &JobRunner{
		services: services,
		config:   cfg,
		now:      now,
	}
}

// Config returns the configuration the runner was built with.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

func (jr *JobRunner) today() string {
	return domain.FormatDate(jr.now())
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx := logger.WithAttrs(context.Background(), "job", jobName)
	logger.InfoContext(ctx, "Starting job")
	start := time.Now()
	jobFunc(ctx)
	logger.InfoContext(ctx, "Job completed", "duration", time.Since(start))
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireStaleRequests()
	jr.SendOverdueAlerts()
	jr.SendChargeFollowUps()
}
