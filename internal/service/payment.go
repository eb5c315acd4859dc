package service

import (
	"context"
	"errors"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/logger"
)

// DefaultGatewayTimeout bounds a single gateway call when none is configured.
const DefaultGatewayTimeout = 10 * time.Second

// PaymentProcessor wraps the gateway with a per-call timeout and turns its
// answers into taxonomy errors: a decline or a timeout is PAYMENT_FAILED,
// any other transport failure is TRANSIENT.
type PaymentProcessor struct {
	gateway gateway.PaymentGateway
	timeout time.Duration
}

func NewPaymentProcessor(gw gateway.PaymentGateway, timeout time.Duration) *PaymentProcessor {
	if timeout <= 0 {
		timeout = DefaultGatewayTimeout
	}
	return &PaymentProcessor{gateway: gw, timeout: timeout}
}

func (p *PaymentProcessor) call(ctx context.Context, op string, fn func(ctx context.Context) (*gateway.Result, error)) (*gateway.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := fn(callCtx)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return nil, domain.PaymentFailed(err, "payment %s timed out after %s", op, p.timeout)
	case err != nil:
		return nil, domain.Transient(err, "payment %s unavailable", op)
	case res == nil || !res.Success:
		msg := "declined"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		return nil, domain.PaymentFailed(nil, "payment %s failed: %s", op, msg)
	}
	return res, nil
}

// timedOut reports whether a gateway call gave up waiting. The processor may
// still have acted on it.
func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Authorize reserves funds and returns the processor's transaction id.
func (p *PaymentProcessor) Authorize(ctx context.Context, req gateway.AuthorizeRequest) (string, error) {
	res, err := p.call(ctx, "authorize", func(ctx context.Context) (*gateway.Result, error) {
		return p.gateway.Authorize(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return res.TransactionID, nil
}

func (p *PaymentProcessor) Capture(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) error {
	_, err := p.call(ctx, "capture", func(ctx context.Context) (*gateway.Result, error) {
		return p.gateway.Capture(ctx, transactionID, amountCents, idempotencyKey)
	})
	return err
}

func (p *PaymentProcessor) Refund(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) error {
	_, err := p.call(ctx, "refund", func(ctx context.Context) (*gateway.Result, error) {
		return p.gateway.Refund(ctx, transactionID, amountCents, idempotencyKey)
	})
	return err
}

// VoidQuietly releases an authorization that will not be used. It runs even
// when ctx is already cancelled and only logs failures.
func (p *PaymentProcessor) VoidQuietly(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) {
	if transactionID == "" {
		return
	}
	if err := p.Refund(context.WithoutCancel(ctx), transactionID, amountCents, idempotencyKey); err != nil {
		logger.ErrorContext(ctx, "Failed to void authorization, manual release required",
			"transaction", transactionID, "amount", amountCents, "error", err)
	}
}
