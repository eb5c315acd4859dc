package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carrental-backend/internal/logger"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const stripeService = "stripe"

// StripeGateway authorizes with manual-capture PaymentIntents.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error) {
	logger.ExternalServiceCall(stripeService, "Authorize", "amount", req.AmountCents, "currency", req.Currency, "customer", req.CustomerRef)

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	}
	if req.PaymentMethodRef != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodRef)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if res, handled := declined(err); handled {
		logger.ExternalServiceResult(stripeService, "Authorize", nil, "declined", res.Message)
		return res, nil
	}
	if err != nil {
		logger.ExternalServiceResult(stripeService, "Authorize", err)
		return nil, fmt.Errorf("stripe authorize: %w", err)
	}

	logger.ExternalServiceResult(stripeService, "Authorize", nil, "paymentIntent", pi.ID, "status", pi.Status)
	if pi.Status != stripe.PaymentIntentStatusRequiresCapture {
		return &Result{TransactionID: pi.ID, Message: fmt.Sprintf("payment intent is %s", pi.Status)}, nil
	}
	return &Result{Success: true, TransactionID: pi.ID}, nil
}

func (g *StripeGateway) Capture(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*Result, error) {
	logger.ExternalServiceCall(stripeService, "Capture", "paymentIntent", transactionID, "amount", amountCents)

	params := &stripe.PaymentIntentCaptureParams{AmountToCapture: stripe.Int64(amountCents)}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := g.api.PaymentIntents.Capture(transactionID, params)
	if res, handled := declined(err); handled {
		logger.ExternalServiceResult(stripeService, "Capture", nil, "declined", res.Message)
		return res, nil
	}
	if err != nil {
		logger.ExternalServiceResult(stripeService, "Capture", err)
		return nil, fmt.Errorf("stripe capture: %w", err)
	}

	logger.ExternalServiceResult(stripeService, "Capture", nil, "paymentIntent", pi.ID, "status", pi.Status)
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &Result{TransactionID: pi.ID, Message: fmt.Sprintf("payment intent is %s", pi.Status)}, nil
	}
	return &Result{Success: true, TransactionID: pi.ID}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*Result, error) {
	logger.ExternalServiceCall(stripeService, "Refund", "paymentIntent", transactionID, "amount", amountCents)

	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := g.api.PaymentIntents.Get(transactionID, getParams)
	if res, handled := declined(err); handled {
		return res, nil
	}
	if err != nil {
		logger.ExternalServiceResult(stripeService, "Refund", err)
		return nil, fmt.Errorf("stripe load payment intent: %w", err)
	}

	if pi.Status == stripe.PaymentIntentStatusRequiresCapture {
		return g.void(ctx, transactionID, idempotencyKey)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	refund, err := g.api.Refunds.New(params)
	if res, handled := declined(err); handled {
		logger.ExternalServiceResult(stripeService, "Refund", nil, "declined", res.Message)
		return res, nil
	}
	if err != nil {
		logger.ExternalServiceResult(stripeService, "Refund", err)
		return nil, fmt.Errorf("stripe refund: %w", err)
	}

	logger.ExternalServiceResult(stripeService, "Refund", nil, "refund", refund.ID, "status", refund.Status)
	if refund.Status == stripe.RefundStatusFailed || refund.Status == stripe.RefundStatusCanceled {
		return &Result{TransactionID: refund.ID, Message: fmt.Sprintf("refund is %s", refund.Status)}, nil
	}
	return &Result{Success: true, TransactionID: refund.ID}, nil
}

func (g *StripeGateway) void(ctx context.Context, transactionID, idempotencyKey string) (*Result, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := g.api.PaymentIntents.Cancel(transactionID, params)
	if res, handled := declined(err); handled {
		return res, nil
	}
	if err != nil {
		logger.ExternalServiceResult(stripeService, "Void", err)
		return nil, fmt.Errorf("stripe void: %w", err)
	}
	logger.ExternalServiceResult(stripeService, "Void", nil, "paymentIntent", pi.ID)
	return &Result{Success: true, TransactionID: pi.ID}, nil
}

// declined turns card and request errors into a failed Result. Anything
// else is left for the caller to report as an infrastructure error.
func declined(err error) (*Result, bool) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil, false
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
		msg := stripeErr.Msg
		if stripeErr.Code != "" {
			msg = fmt.Sprintf("%s (%s)", msg, stripeErr.Code)
		}
		return &Result{Message: msg}, true
	}
	return nil, false
}
