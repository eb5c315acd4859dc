package jobs

import (
	"context"
	"fmt"
	"strings"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

// SendChargeFollowUps lists damage charges whose last attempt failed so the
// desk can chase the customer or retry the charge.
func (jr *JobRunner) SendChargeFollowUps() {
	jr.runWithRecovery("SendChargeFollowUps", func(ctx context.Context) {
		failed, err := jr.services.Payments.ListByStatus(ctx, domain.PaymentOwnerDamage, domain.PaymentStatusFailed)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to list failed damage charges", "error", err)
			return
		}
		if len(failed) == 0 {
			return
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d damage charge(s) need follow-up:\n\n", len(failed))
		for _, p := range failed {
			fmt.Fprintf(&b, "- damage report %d: %d.%02d %s, %d attempt(s), last error: %s\n",
				p.OwnerID, p.AmountCents/100, p.AmountCents%100, p.Currency, p.Attempts, p.FailureReason)
		}

		subject := fmt.Sprintf("%d failed damage charge(s)", len(failed))
		if err := jr.services.Alerts.Alert(ctx, subject, b.String()); err != nil {
			logger.ErrorContext(ctx, "Failed to send charge follow-up", "error", err)
			return
		}
		logger.InfoContext(ctx, "Sent charge follow-up", "count", len(failed))
	})
}
