package http

import (
	"net/http"

	"carrental-backend/internal/security"
	"carrental-backend/internal/service"

	"github.com/gorilla/mux"
)

// Handler exposes the rental and damage services over REST.
type Handler struct {
	rentals service.RentalService
	damages service.DamageService
}

func NewHandler(rentals service.RentalService, damages service.DamageService) *Handler {
	return &Handler{rentals: rentals, damages: damages}
}

// NewRouter registers every route under /api/v1. Route names are the keys of
// config.EndpointSecurityConfig.
func NewRouter(h *Handler, tm security.TokenManager, limiter *RateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recover, RequestID)
	if limiter != nil {
		router.Use(limiter.Handler)
	}
	router.Use(NewAuthMiddleware(tm).Handler)

	router.HandleFunc("/healthz", h.Health).Methods("GET").Name("healthz")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/rentals", h.RequestRental).Methods("POST").Name("requestRental")
	api.HandleFunc("/rentals", h.ListRentals).Methods("GET").Name("listRentals")
	api.HandleFunc("/rentals/{id:[0-9]+}", h.GetRental).Methods("GET").Name("getRental")
	api.HandleFunc("/rentals/{id:[0-9]+}/confirm", h.ConfirmRental).Methods("POST").Name("confirmRental")
	api.HandleFunc("/rentals/{id:[0-9]+}/pickup", h.PickupRental).Methods("POST").Name("pickupRental")
	api.HandleFunc("/rentals/{id:[0-9]+}/return", h.ReturnRental).Methods("POST").Name("returnRental")
	api.HandleFunc("/rentals/{id:[0-9]+}/cancel", h.CancelRental).Methods("POST").Name("cancelRental")

	api.HandleFunc("/rentals/{id:[0-9]+}/damages", h.ReportDamage).Methods("POST").Name("reportDamage")
	api.HandleFunc("/rentals/{id:[0-9]+}/damages", h.ListDamages).Methods("GET").Name("listDamages")
	api.HandleFunc("/damages/{id:[0-9]+}", h.GetDamage).Methods("GET").Name("getDamage")
	api.HandleFunc("/damages/{id:[0-9]+}/assess", h.AssessDamage).Methods("POST").Name("assessDamage")
	api.HandleFunc("/damages/{id:[0-9]+}/dispute", h.DisputeDamage).Methods("POST").Name("disputeDamage")
	api.HandleFunc("/damages/{id:[0-9]+}/resolve", h.ResolveDispute).Methods("POST").Name("resolveDispute")
	api.HandleFunc("/damages/{id:[0-9]+}/charge", h.ChargeDamage).Methods("POST").Name("chargeDamage")

	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
