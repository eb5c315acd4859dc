// Package gateway talks to the card processor. Every operation returns a
// Result for business outcomes (approved or declined) and an error only for
// infrastructure failures.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type AuthorizeRequest struct {
	AmountCents      int64
	Currency         string
	CustomerRef      string
	PaymentMethodRef string
	Description      string
	IdempotencyKey   string
}

type Result struct {
	Success       bool
	TransactionID string
	Message       string
}

type PaymentGateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error)
	Capture(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*Result, error)
	// Refund returns captured money. Refunding an authorization that was
	// never captured voids it.
	Refund(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*Result, error)
}

var idempotencyNamespace = uuid.MustParse("5f0c8b7e-3f7a-4c1d-9a55-0d6f1c2b9e41")

// IdempotencyKey derives a stable key for one money movement so a retried
// call is recognized by the processor instead of charging twice.
func IdempotencyKey(owner string, ownerID int32, operation string, attempt int32) string {
	name := fmt.Sprintf("%s:%d:%s:%d", owner, ownerID, operation, attempt)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}
