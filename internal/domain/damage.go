package domain

type DamageStatus string

const (
	DamageStatusReported DamageStatus = "REPORTED"
	DamageStatusAssessed DamageStatus = "ASSESSED"
	DamageStatusDisputed DamageStatus = "DISPUTED"
	DamageStatusResolved DamageStatus = "RESOLVED"
	DamageStatusCharged  DamageStatus = "CHARGED"
)

type DamageReport struct {
	ID          int32    `json:"id"`
	RentalID    int32    `json:"rental_id"`
	VehicleID   int32    `json:"vehicle_id"`
	CustomerID  int32    `json:"customer_id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	// RepairCostCents is the assessor's estimate; zero until assessed.
	RepairCostCents        int64        `json:"repair_cost_cents"`
	CustomerLiabilityCents int64        `json:"customer_liability_cents"`
	Insured                bool         `json:"insured"`
	DeductibleCents        int64        `json:"deductible_cents"`
	Status                 DamageStatus `json:"status"`
	RequiresAdminReview    bool         `json:"requires_admin_review"`
	DisputeReason          string       `json:"dispute_reason,omitempty"`
	ResolutionNotes        string       `json:"resolution_notes,omitempty"`
	PaymentID              *int32       `json:"payment_id,omitempty"`
	Version                int32        `json:"version"`
	CreatedOn              string       `json:"created_on"`
	UpdatedOn              string       `json:"updated_on"`
}

// Assessable reports whether the report may be (re)assessed.
func (d *DamageReport) Assessable() bool {
	return d.Status == DamageStatusReported || d.Status == DamageStatusAssessed
}

// Disputable reports whether the customer may still contest the liability.
// A charged report can be disputed so that an agreed reduction is refunded.
func (d *DamageReport) Disputable() bool {
	return d.Status == DamageStatusAssessed || d.Status == DamageStatusCharged
}

// Chargeable reports whether the liability can be collected now.
func (d *DamageReport) Chargeable() bool {
	return (d.Status == DamageStatusAssessed || d.Status == DamageStatusResolved) && d.CustomerLiabilityCents > 0
}

// InsuranceInfo describes the coverage applied during assessment.
type InsuranceInfo struct {
	Insured         bool  `json:"insured"`
	DeductibleCents int64 `json:"deductible_cents"`
}

// ComputeLiability is the share of the repair cost the customer owes.
// Insured customers pay at most their deductible.
func ComputeLiability(repairCostCents int64, insurance InsuranceInfo) int64 {
	if repairCostCents <= 0 {
		return 0
	}
	if !insurance.Insured {
		return repairCostCents
	}
	deductible := insurance.DeductibleCents
	if deductible < 0 {
		deductible = 0
	}
	return min(repairCostCents, deductible)
}
