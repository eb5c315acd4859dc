package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/events"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

const damageOwner = "damage"

// maintenanceFrom is every vehicle status a damage report may pull into
// MAINTENANCE. A sold vehicle is out of reach.
var maintenanceFrom = []domain.VehicleStatus{
	domain.VehicleStatusAvailable,
	domain.VehicleStatusReserved,
	domain.VehicleStatusDamaged,
	domain.VehicleStatusInspection,
}

type damageService struct {
	tx         repository.TxManager
	damageRepo repository.DamageReportRepository
	rentalRepo repository.RentalRepository
	payRepo    repository.PaymentRepository
	vehicles   repository.VehicleRegistry
	customers  repository.CustomerDirectory
	payments   *PaymentProcessor
	publisher  events.Publisher
	thresholds domain.SeverityThresholds
	currency   string
	now        Clock
}

func NewDamageService(
	tx repository.TxManager,
	damageRepo repository.DamageReportRepository,
	rentalRepo repository.RentalRepository,
	payRepo repository.PaymentRepository,
	vehicles repository.VehicleRegistry,
	customers repository.CustomerDirectory,
	payments *PaymentProcessor,
	publisher events.Publisher,
	thresholds domain.SeverityThresholds,
	defaultCurrency string,
	now Clock,
) DamageService {
	if now == nil {
		now = time.Now
	}
	return &damageService{
		tx:         tx,
		damageRepo: damageRepo,
		rentalRepo: rentalRepo,
		payRepo:    payRepo,
		vehicles:   vehicles,
		customers:  customers,
		payments:   payments,
		publisher:  publisher,
		thresholds: thresholds,
		currency:   defaultCurrency,
		now:        now,
	}
}

func (s *damageService) ReportDamage(ctx context.Context, rentalID int32, description string, severityGuess domain.Severity) (*domain.DamageReport, error) {
	logger.EnterMethod("damageService.ReportDamage", "rentalID", rentalID, "severity", severityGuess)

	description = strings.TrimSpace(description)
	if description == "" {
		return nil, domain.Validationf("damage description is required")
	}
	if !severityGuess.Valid() {
		return nil, domain.Validationf("unknown severity %q", severityGuess)
	}

	var (
		report   *domain.DamageReport
		currency string
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		rental, err := s.rentalRepo.GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		if rental.Status != domain.RentalStatusInUse && rental.Status != domain.RentalStatusReturned {
			return domain.InvalidStatef("rental %d is %s, damage can only be reported during or after use", rentalID, rental.Status)
		}
		currency = rental.Currency

		report = &domain.DamageReport{
			RentalID:    rental.ID,
			VehicleID:   rental.VehicleID,
			CustomerID:  rental.CustomerID,
			Description: description,
			Severity:    severityGuess,
			Status:      domain.DamageStatusReported,
		}
		if err := s.damageRepo.Create(ctx, report); err != nil {
			return err
		}
		return s.applySeverityEffect(ctx, report)
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("damage report for rental %d", rentalID))
		logger.ExitMethodWithError("damageService.ReportDamage", err, "rentalID", rentalID)
		return nil, err
	}

	publish(ctx, s.publisher, damageEvent(domain.EventDamageReported, s.now(), report, currency))
	logger.ExitMethod("damageService.ReportDamage", "damageID", report.ID)
	return report, nil
}

// applySeverityEffect moves the vehicle into MAINTENANCE when the severity
// calls for it.
func (s *damageService) applySeverityEffect(ctx context.Context, report *domain.DamageReport) error {
	if !domain.EffectOf(report.Severity).RequiresMaintenance {
		return nil
	}
	swapped, err := s.vehicles.CompareAndSetStatus(ctx, report.VehicleID, maintenanceFrom, domain.VehicleStatusMaintenance)
	if err != nil {
		return err
	}
	if swapped {
		logger.Transition(ctx, "vehicle", report.VehicleID, "", string(domain.VehicleStatusMaintenance))
	}
	return nil
}

func (s *damageService) AssessDamage(ctx context.Context, damageID int32, repairCostCents int64, severityOverride *domain.Severity, insurance domain.InsuranceInfo) (*domain.DamageReport, error) {
	logger.EnterMethod("damageService.AssessDamage", "damageID", damageID, "repairCost", repairCostCents)

	if insurance.DeductibleCents < 0 {
		return nil, domain.Validationf("deductible cannot be negative")
	}
	if severityOverride != nil && !severityOverride.Valid() {
		return nil, domain.Validationf("unknown severity %q", *severityOverride)
	}

	var report *domain.DamageReport
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.damageRepo.GetForUpdate(ctx, damageID)
		if err != nil {
			return err
		}
		if !report.Assessable() {
			return domain.InvalidStatef("damage report %d is %s and cannot be assessed", damageID, report.Status)
		}

		severity := domain.ClassifySeverity(repairCostCents, s.thresholds)
		if severityOverride != nil {
			severity = *severityOverride
		}
		from := report.Status
		report.Severity = severity
		report.RepairCostCents = repairCostCents
		report.Insured = insurance.Insured
		report.DeductibleCents = insurance.DeductibleCents
		report.CustomerLiabilityCents = domain.ComputeLiability(repairCostCents, insurance)
		report.RequiresAdminReview = domain.EffectOf(severity).RequiresAdminDecision
		report.Status = domain.DamageStatusAssessed

		if err := s.damageRepo.Update(ctx, report); err != nil {
			return err
		}
		logger.Transition(ctx, "damage", report.ID, string(from), string(report.Status))
		return s.applySeverityEffect(ctx, report)
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("damage report %d", damageID))
		logger.ExitMethodWithError("damageService.AssessDamage", err, "damageID", damageID)
		return nil, err
	}

	evts := []domain.Event{damageEvent(domain.EventDamageAssessed, s.now(), report, s.currency)}
	if report.RequiresAdminReview {
		evts = append(evts, damageEvent(domain.EventDamageAdminReview, s.now(), report, s.currency))
	}
	publish(ctx, s.publisher, evts...)

	logger.ExitMethod("damageService.AssessDamage", "damageID", damageID, "severity", report.Severity, "liability", report.CustomerLiabilityCents)
	return report, nil
}

func (s *damageService) DisputeDamage(ctx context.Context, damageID, customerID int32, reason string) (*domain.DamageReport, error) {
	logger.EnterMethod("damageService.DisputeDamage", "damageID", damageID, "customerID", customerID)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validationf("a dispute reason is required")
	}

	var report *domain.DamageReport
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.damageRepo.GetForUpdate(ctx, damageID)
		if err != nil {
			return err
		}
		if !report.Disputable() {
			return domain.InvalidStatef("damage report %d is %s and cannot be disputed", damageID, report.Status)
		}
		if report.CustomerID != customerID {
			return domain.AccessDeniedf("customer %d did not rent the vehicle in damage report %d", customerID, damageID)
		}

		from := report.Status
		report.Status = domain.DamageStatusDisputed
		report.DisputeReason = reason
		if err := s.damageRepo.Update(ctx, report); err != nil {
			return err
		}
		logger.Transition(ctx, "damage", report.ID, string(from), string(report.Status))
		return nil
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("damage report %d", damageID))
		logger.ExitMethodWithError("damageService.DisputeDamage", err, "damageID", damageID)
		return nil, err
	}

	e := damageEvent(domain.EventDamageDisputed, s.now(), report, s.currency)
	e.Attributes["reason"] = reason
	publish(ctx, s.publisher, e)

	logger.ExitMethod("damageService.DisputeDamage", "damageID", damageID)
	return report, nil
}

func (s *damageService) ResolveDispute(ctx context.Context, damageID int32, adjustedLiabilityCents, adjustedRepairCostCents int64, notes string) (*domain.DamageReport, error) {
	logger.EnterMethod("damageService.ResolveDispute", "damageID", damageID, "liability", adjustedLiabilityCents, "repairCost", adjustedRepairCostCents)

	if adjustedLiabilityCents < 0 || adjustedRepairCostCents < 0 {
		return nil, domain.Validationf("adjusted amounts cannot be negative")
	}
	if adjustedLiabilityCents > adjustedRepairCostCents {
		return nil, domain.Validationf("liability %d exceeds repair cost %d", adjustedLiabilityCents, adjustedRepairCostCents)
	}

	var (
		report   *domain.DamageReport
		payment  *domain.Payment
		refunded int64
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.damageRepo.GetForUpdate(ctx, damageID)
		if err != nil {
			return err
		}
		if report.Status != domain.DamageStatusDisputed {
			return domain.InvalidStatef("damage report %d is %s, only DISPUTED reports can be resolved", damageID, report.Status)
		}

		if report.PaymentID != nil {
			payment, err = s.payRepo.GetByID(ctx, *report.PaymentID)
			if err != nil {
				return err
			}
			if payment.Status == domain.PaymentStatusCaptured {
				net := payment.RefundableCents()
				if adjustedLiabilityCents > net {
					return domain.InvalidStatef("damage report %d already collected %d, liability cannot rise to %d",
						damageID, net, adjustedLiabilityCents)
				}
				if delta := net - adjustedLiabilityCents; delta > 0 {
					key := gateway.IdempotencyKey(damageOwner, report.ID, "refund", payment.Version)
					if err := s.payments.Refund(ctx, payment.TransactionID, delta, key); err != nil {
						return err
					}
					if err := payment.ApplyRefund(delta); err != nil {
						return err
					}
					if err := s.payRepo.Update(ctx, payment); err != nil {
						return err
					}
					refunded = delta
				}
			}
		}

		report.CustomerLiabilityCents = adjustedLiabilityCents
		report.RepairCostCents = adjustedRepairCostCents
		report.ResolutionNotes = notes
		report.Status = domain.DamageStatusResolved
		if err := s.damageRepo.Update(ctx, report); err != nil {
			return err
		}
		logger.Transition(ctx, "damage", report.ID, string(domain.DamageStatusDisputed), string(report.Status))
		return nil
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("damage report %d", damageID))
		logger.ExitMethodWithError("damageService.ResolveDispute", err, "damageID", damageID)
		return nil, err
	}

	evts := []domain.Event{damageEvent(domain.EventDamageResolved, s.now(), report, s.currency)}
	if refunded > 0 {
		e := damageEvent(domain.EventPaymentRefunded, s.now(), report, payment.Currency)
		e.AmountCents = refunded
		e.Attributes["payment_id"] = fmt.Sprint(payment.ID)
		evts = append(evts, e)
	}
	publish(ctx, s.publisher, evts...)

	logger.ExitMethod("damageService.ResolveDispute", "damageID", damageID, "refunded", refunded)
	return report, nil
}

// ChargeDamage collects the liability with the same authorize-then-capture
// discipline as rental fees. A declined charge is recorded as a FAILED payment
// for manual follow-up and the report keeps its status. A timed out charge
// commits nothing.
func (s *damageService) ChargeDamage(ctx context.Context, damageID int32) (*domain.DamageReport, *domain.Payment, error) {
	logger.EnterMethod("damageService.ChargeDamage", "damageID", damageID)

	var (
		report    *domain.DamageReport
		payment   *domain.Payment
		chargeErr error
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.damageRepo.GetForUpdate(ctx, damageID)
		if err != nil {
			return err
		}
		if !report.Chargeable() {
			return domain.InvalidStatef("damage report %d is %s with liability %d and cannot be charged",
				damageID, report.Status, report.CustomerLiabilityCents)
		}
		rental, err := s.rentalRepo.GetByID(ctx, report.RentalID)
		if err != nil {
			return err
		}
		customer, err := s.customers.GetByID(ctx, report.CustomerID)
		if err != nil {
			return err
		}

		payment, err = s.payRepo.GetByOwner(ctx, domain.PaymentOwnerDamage, report.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			payment = &domain.Payment{
				OwnerType:   domain.PaymentOwnerDamage,
				OwnerID:     report.ID,
				AmountCents: report.CustomerLiabilityCents,
				Currency:    rental.Currency,
				Status:      domain.PaymentStatusPending,
				Attempts:    1,
			}
			if err := s.payRepo.Create(ctx, payment); err != nil {
				return err
			}
		case err != nil:
			return err
		case payment.Status == domain.PaymentStatusFailed || payment.Status == domain.PaymentStatusPending:
			payment.Attempts++
			payment.AmountCents = report.CustomerLiabilityCents
			payment.Status = domain.PaymentStatusPending
			payment.FailureReason = ""
			payment.TransactionID = ""
		default:
			return domain.InvalidStatef("damage report %d already has a %s payment", damageID, payment.Status)
		}
		report.PaymentID = &payment.ID

		txID, err := s.payments.Authorize(ctx, gateway.AuthorizeRequest{
			AmountCents:      payment.AmountCents,
			Currency:         payment.Currency,
			CustomerRef:      customer.PaymentRef,
			PaymentMethodRef: customer.PaymentMethodRef,
			Description:      fmt.Sprintf("Damage report #%d on rental #%d", report.ID, report.RentalID),
			IdempotencyKey:   gateway.IdempotencyKey(damageOwner, report.ID, "authorize", payment.Attempts),
		})
		if err == nil {
			payment.TransactionID = txID
			payment.Status = domain.PaymentStatusAuthorized
			captureKey := gateway.IdempotencyKey(damageOwner, report.ID, "capture", payment.Attempts)
			if err = s.payments.Capture(ctx, txID, payment.AmountCents, captureKey); err != nil && !timedOut(err) {
				voidKey := gateway.IdempotencyKey(damageOwner, report.ID, "void", payment.Attempts)
				s.payments.VoidQuietly(ctx, txID, payment.AmountCents, voidKey)
			}
		}
		if err != nil {
			// A timed out call may have reached the processor. Rolling back keeps
			// the attempt number, so the retry sends the same idempotency keys.
			if domain.KindOf(err) != domain.KindPaymentFailed || timedOut(err) {
				return err
			}
			chargeErr = err
			payment.MarkFailed(err.Error())
			if err := s.payRepo.Update(ctx, payment); err != nil {
				return err
			}
			return s.damageRepo.Update(ctx, report)
		}

		if err := payment.MarkCaptured(); err != nil {
			return err
		}
		if err := s.payRepo.Update(ctx, payment); err != nil {
			return err
		}
		from := report.Status
		report.Status = domain.DamageStatusCharged
		if err := s.damageRepo.Update(ctx, report); err != nil {
			return err
		}
		logger.Transition(ctx, "damage", report.ID, string(from), string(report.Status))
		return nil
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("damage report %d", damageID))
		logger.ExitMethodWithError("damageService.ChargeDamage", err, "damageID", damageID)
		return nil, nil, err
	}

	if chargeErr != nil {
		e := damageEvent(domain.EventDamageChargeFailed, s.now(), report, payment.Currency)
		e.Attributes["reason"] = payment.FailureReason
		e.Attributes["attempts"] = fmt.Sprint(payment.Attempts)
		publish(ctx, s.publisher, e)
		logger.ExitMethodWithError("damageService.ChargeDamage", chargeErr, "damageID", damageID, "paymentID", payment.ID)
		return nil, nil, chargeErr
	}

	publish(ctx, s.publisher, damageEvent(domain.EventDamageCharged, s.now(), report, payment.Currency))
	logger.ExitMethod("damageService.ChargeDamage", "damageID", damageID, "paymentID", payment.ID)
	return report, payment, nil
}

func (s *damageService) GetDamageReport(ctx context.Context, damageID int32) (*domain.DamageReport, *domain.Payment, error) {
	report, err := s.damageRepo.GetByID(ctx, damageID)
	if err != nil {
		return nil, nil, storageError(err, fmt.Sprintf("damage report %d", damageID))
	}
	if report.PaymentID == nil {
		return report, nil, nil
	}
	payment, err := s.payRepo.GetByID(ctx, *report.PaymentID)
	if err != nil {
		return nil, nil, storageError(err, fmt.Sprintf("payment %d", *report.PaymentID))
	}
	return report, payment, nil
}

func (s *damageService) ListDamageReports(ctx context.Context, rentalID int32) ([]domain.DamageReport, error) {
	reports, err := s.damageRepo.ListByRental(ctx, rentalID)
	if err != nil {
		return nil, storageError(err, fmt.Sprintf("damage reports of rental %d", rentalID))
	}
	return reports, nil
}
