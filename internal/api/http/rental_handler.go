package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/security"

	"github.com/gorilla/mux"
)

type requestRentalBody struct {
	VehicleID  int32  `json:"vehicle_id"`
	CustomerID int32  `json:"customer_id,omitempty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type notesBody struct {
	Notes string `json:"notes"`
}

type rentalResponse struct {
	Rental  *domain.Rental  `json:"rental"`
	Payment *domain.Payment `json:"payment,omitempty"`
}

type rentalListResponse struct {
	Rentals    []domain.Rental `json:"rentals"`
	TotalCount int32           `json:"total_count"`
	Page       int32           `json:"page"`
}

func pathID(r *http.Request) (int32, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid id %q", mux.Vars(r)["id"])
	}
	return int32(id), nil
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.Validationf("malformed request body: %v", err)
}

func queryInt32(r *http.Request, key string) (int32, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, domain.Validationf("invalid %s %q", key, raw)
	}
	return int32(v), nil
}

// errNoClaims means a handler was reached without passing the auth
// middleware. writeError answers it with 401.
var errNoClaims = errors.New("request carries no authenticated caller")

func callerClaims(r *http.Request) (*security.ActorClaims, error) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return nil, errNoClaims
	}
	return claims, nil
}

// ownedRental loads a rental and checks the caller may see it.
func (h *Handler) ownedRental(r *http.Request, id int32) (*domain.Rental, *domain.Payment, error) {
	rental, payment, err := h.rentals.GetRental(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	claims, err := callerClaims(r)
	if err != nil {
		return nil, nil, err
	}
	if !claims.IsAdmin() && rental.CustomerID != claims.CustomerID {
		return nil, nil, domain.AccessDeniedf("rental %d belongs to another customer", id)
	}
	return rental, payment, nil
}

func (h *Handler) RequestRental(w http.ResponseWriter, r *http.Request) {
	var body requestRentalBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	claims, err := callerClaims(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	customerID := claims.CustomerID
	if body.CustomerID != 0 && body.CustomerID != customerID {
		if !claims.IsAdmin() {
			writeError(w, r, domain.AccessDeniedf("cannot request a rental for another customer"))
			return
		}
		customerID = body.CustomerID
	}

	rental, err := h.rentals.RequestRental(r.Context(), body.VehicleID, customerID, body.StartDate, body.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rentalResponse{Rental: rental})
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rental, payment, err := h.ownedRental(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rentalResponse{Rental: rental, Payment: payment})
}

func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	claims, err := callerClaims(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	customerID, err := queryInt32(r, "customer_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if customerID == 0 {
		customerID = claims.CustomerID
	}
	if customerID != claims.CustomerID && !claims.IsAdmin() {
		writeError(w, r, domain.AccessDeniedf("cannot list rentals of another customer"))
		return
	}

	page, err := queryInt32(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	pageSize, err := queryInt32(r, "page_size")
	if err != nil {
		writeError(w, r, err)
		return
	}

	rentals, total, err := h.rentals.ListCustomerRentals(r.Context(), customerID, r.URL.Query().Get("status"), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page < 1 {
		page = 1
	}
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	writeJSON(w, http.StatusOK, rentalListResponse{Rentals: rentals, TotalCount: total, Page: page})
}

func (h *Handler) ConfirmRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, _, err := h.ownedRental(r, id); err != nil {
		writeError(w, r, err)
		return
	}

	rental, payment, err := h.rentals.ConfirmRental(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rentalResponse{Rental: rental, Payment: payment})
}

func (h *Handler) PickupRental(w http.ResponseWriter, r *http.Request) {
	h.handover(w, r, h.rentals.PickupRental)
}

func (h *Handler) ReturnRental(w http.ResponseWriter, r *http.Request) {
	h.handover(w, r, h.rentals.ReturnRental)
}

// handover serves the two counter operations, pickup and return, which take
// only free-text notes.
func (h *Handler) handover(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int32, notes string) (*domain.Rental, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body notesBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	rental, err := op(r.Context(), id, body.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rentalResponse{Rental: rental})
}

func (h *Handler) CancelRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims, err := callerClaims(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The service decides whether the actor may cancel.
	rental, err := h.rentals.CancelRental(r.Context(), id, claims.CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rentalResponse{Rental: rental})
}
