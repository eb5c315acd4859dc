package http

import (
	"net/http"

	"carrental-backend/internal/domain"
)

type reportDamageBody struct {
	Description string          `json:"description"`
	Severity    domain.Severity `json:"severity"`
}

type assessDamageBody struct {
	RepairCostCents  int64            `json:"repair_cost_cents"`
	SeverityOverride *domain.Severity `json:"severity_override,omitempty"`
	Insured          bool             `json:"insured"`
	DeductibleCents  int64            `json:"deductible_cents"`
}

type disputeDamageBody struct {
	Reason string `json:"reason"`
}

type resolveDisputeBody struct {
	AdjustedLiabilityCents  int64  `json:"adjusted_liability_cents"`
	AdjustedRepairCostCents int64  `json:"adjusted_repair_cost_cents"`
	Notes                   string `json:"notes"`
}

type damageResponse struct {
	Damage  *domain.DamageReport `json:"damage"`
	Payment *domain.Payment      `json:"payment,omitempty"`
}

type damageListResponse struct {
	Damages []domain.DamageReport `json:"damages"`
}

func (h *Handler) ReportDamage(w http.ResponseWriter, r *http.Request) {
	rentalID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body reportDamageBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.damages.ReportDamage(r.Context(), rentalID, body.Description, body.Severity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, damageResponse{Damage: report})
}

func (h *Handler) ListDamages(w http.ResponseWriter, r *http.Request) {
	rentalID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, _, err := h.ownedRental(r, rentalID); err != nil {
		writeError(w, r, err)
		return
	}

	reports, err := h.damages.ListDamageReports(r.Context(), rentalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []domain.DamageReport{}
	}
	writeJSON(w, http.StatusOK, damageListResponse{Damages: reports})
}

func (h *Handler) GetDamage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, payment, err := h.damages.GetDamageReport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	claims, err := callerClaims(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !claims.IsAdmin() && report.CustomerID != claims.CustomerID {
		writeError(w, r, domain.AccessDeniedf("damage report %d belongs to another customer", id))
		return
	}
	writeJSON(w, http.StatusOK, damageResponse{Damage: report, Payment: payment})
}

func (h *Handler) AssessDamage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body assessDamageBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.damages.AssessDamage(r.Context(), id, body.RepairCostCents, body.SeverityOverride,
		domain.InsuranceInfo{Insured: body.Insured, DeductibleCents: body.DeductibleCents})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, damageResponse{Damage: report})
}

func (h *Handler) DisputeDamage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body disputeDamageBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	claims, err := callerClaims(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.damages.DisputeDamage(r.Context(), id, claims.CustomerID, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, damageResponse{Damage: report})
}

func (h *Handler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body resolveDisputeBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.damages.ResolveDispute(r.Context(), id, body.AdjustedLiabilityCents, body.AdjustedRepairCostCents, body.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, damageResponse{Damage: report})
}

func (h *Handler) ChargeDamage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, payment, err := h.damages.ChargeDamage(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, damageResponse{Damage: report, Payment: payment})
}
