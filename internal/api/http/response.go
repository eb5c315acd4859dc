package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Message: message})
}

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAccessDenied:
		return http.StatusForbidden
	case domain.KindPaymentFailed:
		return http.StatusPaymentRequired
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errNoClaims) {
		logger.ErrorContext(r.Context(), "Route is not behind the auth middleware", "path", r.URL.Path)
		writeMessage(w, http.StatusUnauthorized, err.Error())
		return
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		logger.ErrorContext(r.Context(), "Unclassified service error", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := statusFor(de.Kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "kind", de.Kind, "error", err)
	} else {
		logger.InfoContext(r.Context(), "Request rejected", "kind", de.Kind, "message", de.Message)
	}
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Kind: string(de.Kind), Message: de.Message})
}
