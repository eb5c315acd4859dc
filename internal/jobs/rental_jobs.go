package jobs

import (
	"context"
	"fmt"
	"strings"

	"carrental-backend/internal/logger"
)

// ExpireStaleRequests cancels REQUESTED rentals whose start date has passed
// without a confirmation. The cancellation runs as the system actor so it
// goes through the same checks as an admin cancel.
func (jr *JobRunner) ExpireStaleRequests() {
	jr.runWithRecovery("ExpireStaleRequests", func(ctx context.Context) {
		stale, err := jr.services.Finder.ListStaleRequests(ctx, jr.today())
		if err != nil {
			logger.ErrorContext(ctx, "Failed to list stale requests", "error", err)
			return
		}

		actor := jr.config.Jobs.SystemActorID
		expired := 0
		for _, r := range stale {
			if _, err := jr.services.Rentals.CancelRental(ctx, r.ID, actor); err != nil {
				// The rental may have been confirmed or cancelled since it was listed.
				logger.WarnContext(ctx, "Failed to expire rental request", "rental_id", r.ID, "error", err)
				continue
			}
			expired++
			logger.DebugContext(ctx, "Expired rental request", "rental_id", r.ID, "start_date", r.StartDate)
		}

		logger.InfoContext(ctx, "Expired stale rental requests", "found", len(stale), "expired", expired)
	})
}

// SendOverdueAlerts tells the rental desk about vehicles that are still out
// after their rental ended.
func (jr *JobRunner) SendOverdueAlerts() {
	jr.runWithRecovery("SendOverdueAlerts", func(ctx context.Context) {
		overdue, err := jr.services.Finder.ListOverdue(ctx, jr.today())
		if err != nil {
			logger.ErrorContext(ctx, "Failed to list overdue rentals", "error", err)
			return
		}
		if len(overdue) == 0 {
			return
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d rental(s) are past their return date:\n\n", len(overdue))
		for _, r := range overdue {
			fmt.Fprintf(&b, "- rental %d: vehicle %d, customer %d, due %s\n", r.ID, r.VehicleID, r.CustomerID, r.EndDate)
		}

		subject := fmt.Sprintf("%d overdue rental(s)", len(overdue))
		if err := jr.services.Alerts.Alert(ctx, subject, b.String()); err != nil {
			logger.ErrorContext(ctx, "Failed to send overdue alert", "error", err)
			return
		}
		logger.InfoContext(ctx, "Sent overdue alert", "count", len(overdue))
	})
}
