package domain

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusAuthorized PaymentStatus = "AUTHORIZED"
	PaymentStatusCaptured   PaymentStatus = "CAPTURED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// PaymentOwnerType says whether a payment belongs to a rental fee or to a
// damage charge. Each owner has at most one payment.
type PaymentOwnerType string

const (
	PaymentOwnerRental PaymentOwnerType = "RENTAL"
	PaymentOwnerDamage PaymentOwnerType = "DAMAGE"
)

type Payment struct {
	ID          int32            `json:"id"`
	OwnerType   PaymentOwnerType `json:"owner_type"`
	OwnerID     int32            `json:"owner_id"`
	AmountCents int64            `json:"amount_cents"`
	// RefundedCents is the running total of money returned against this
	// payment. AmountCents never changes after capture.
	RefundedCents int64         `json:"refunded_cents"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Attempts      int32         `json:"attempts"`
	Version       int32         `json:"version"`
	CreatedOn     string        `json:"created_on"`
	UpdatedOn     string        `json:"updated_on"`
}

// RefundableCents is what can still be returned to the customer.
func (p *Payment) RefundableCents() int64 {
	if p.Status != PaymentStatusCaptured {
		return 0
	}
	return p.AmountCents - p.RefundedCents
}

// MarkCaptured records a successful capture.
func (p *Payment) MarkCaptured() error {
	if p.Status != PaymentStatusAuthorized {
		return InvalidStatef("payment %d cannot be captured from %s", p.ID, p.Status)
	}
	p.Status = PaymentStatusCaptured
	p.FailureReason = ""
	return nil
}

// ApplyRefund adds a refund delta to the running total. The payment becomes
// REFUNDED once everything captured has been returned.
func (p *Payment) ApplyRefund(cents int64) error {
	if cents <= 0 {
		return Validationf("refund amount must be positive, got %d", cents)
	}
	if cents > p.RefundableCents() {
		return InvalidStatef("payment %d cannot refund %d, only %d refundable", p.ID, cents, p.RefundableCents())
	}
	p.RefundedCents += cents
	if p.RefundedCents == p.AmountCents {
		p.Status = PaymentStatusRefunded
	}
	return nil
}

// Void releases an authorization that was never captured.
func (p *Payment) Void() error {
	if p.Status != PaymentStatusAuthorized {
		return InvalidStatef("payment %d cannot be voided from %s", p.ID, p.Status)
	}
	p.Status = PaymentStatusRefunded
	return nil
}

func (p *Payment) MarkFailed(reason string) {
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
}
