package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"carrental-backend/internal/logger"

	"github.com/google/uuid"
)

const sandboxService = "sandbox"

// DeclinePrefix makes the sandbox decline every authorization for a
// customer reference that starts with it.
const DeclinePrefix = "decline"

type sandboxCharge struct {
	amountCents   int64
	captured      bool
	voided        bool
	refundedCents int64
}

// SandboxGateway is an in-process processor for development and demos.
// It honors idempotency keys the way a real processor does.
type SandboxGateway struct {
	mu       sync.Mutex
	charges  map[string]*sandboxCharge
	results  map[string]Result
	maxCents int64
	latency  time.Duration
}

// NewSandboxGateway declines authorizations above maxCents when maxCents is
// positive and waits latency before answering each call.
func NewSandboxGateway(maxCents int64, latency time.Duration) *SandboxGateway {
	return &SandboxGateway{
		charges:  map[string]*sandboxCharge{},
		results:  map[string]Result{},
		maxCents: maxCents,
		latency:  latency,
	}
}

func (g *SandboxGateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// remember replays a stored result for a repeated idempotency key.
func (g *SandboxGateway) remember(key string, op func() Result) *Result {
	if key != "" {
		if res, ok := g.results[key]; ok {
			return &res
		}
	}
	res := op()
	if key != "" {
		g.results[key] = res
	}
	return &res
}

func (g *SandboxGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error) {
	logger.ExternalServiceCall(sandboxService, "Authorize", "amount", req.AmountCents, "customer", req.CustomerRef)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	res := g.remember(req.IdempotencyKey, func() Result {
		switch {
		case strings.HasPrefix(req.CustomerRef, DeclinePrefix):
			return Result{Message: "card declined"}
		case req.AmountCents <= 0:
			return Result{Message: "amount must be positive"}
		case g.maxCents > 0 && req.AmountCents > g.maxCents:
			return Result{Message: fmt.Sprintf("amount %d exceeds limit %d", req.AmountCents, g.maxCents)}
		}
		id := "sbx_" + uuid.NewString()
		g.charges[id] = &sandboxCharge{amountCents: req.AmountCents}
		return Result{Success: true, TransactionID: id}
	})
	logger.ExternalServiceResult(sandboxService, "Authorize", nil, "success", res.Success)
	return res, nil
}

func (g *SandboxGateway) Capture(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*Result, error) {
	logger.ExternalServiceCall(sandboxService, "Capture", "transaction", transactionID, "amount", amountCents)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	res := g.remember(idempotencyKey, func() Result {
		c, ok := g.charges[transactionID]
		switch {
		case !ok:
			return Result{Message: "unknown authorization"}
		case c.voided:
			return Result{Message: "authorization was voided"}
		case c.captured:
			return Result{Message: "authorization already captured"}
		case amountCents > c.amountCents:
			return Result{Message: "capture exceeds authorized amount"}
		}
		c.captured = true
		c.amountCents = amountCents
		return Result{Success: true, TransactionID: transactionID}
	})
	logger.ExternalServiceResult(sandboxService, "Capture", nil, "success", res.Success)
	return res, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, transactionID string, amountCents int64, idempotencyKey string) (*Result, error) {
	logger.ExternalServiceCall(sandboxService, "Refund", "transaction", transactionID, "amount", amountCents)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	res := g.remember(idempotencyKey, func() Result {
		c, ok := g.charges[transactionID]
		switch {
		case !ok:
			return Result{Message: "unknown transaction"}
		case c.voided:
			return Result{Message: "authorization already voided"}
		case !c.captured:
			c.voided = true
			return Result{Success: true, TransactionID: transactionID}
		case amountCents <= 0 || c.refundedCents+amountCents > c.amountCents:
			return Result{Message: "refund exceeds captured amount"}
		}
		c.refundedCents += amountCents
		return Result{Success: true, TransactionID: "sbx_re_" + uuid.NewString()}
	})
	logger.ExternalServiceResult(sandboxService, "Refund", nil, "success", res.Success)
	return res, nil
}
