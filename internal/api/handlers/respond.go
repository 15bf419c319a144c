package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// errorResponse is the uniform error body
type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a JSON error body with the given status
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Error: message})
}

// WriteDomainError maps a domain error to its HTTP status. Authorization
// failures always surface as the same uniform denial; upstream failures
// are logged with detail and surfaced generically.
func WriteDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var ue *domain.UpstreamError

	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, domain.ErrUsernameExists),
		errors.Is(err, domain.ErrEmailExists):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusForbidden, "admin access required")
	case domain.IsConflict(err):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ue):
		slog.Error("upstream failure", "op", ue.Op, "error", ue.Err)
		WriteError(w, http.StatusInternalServerError, "upstream failure")
	default:
		slog.Error("internal error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
