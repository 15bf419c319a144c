package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/audiogate/internal/admin"
	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// AdminHandler handles the privileged management endpoints
type AdminHandler struct {
	gate  *auth.Gate
	admin *admin.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(gate *auth.Gate, adminService *admin.Service) *AdminHandler {
	return &AdminHandler{gate: gate, admin: adminService}
}

// CreateUserRequest is the request body for admin user creation
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
}

// UpdateUserRequest is the request body for partial user update
type UpdateUserRequest struct {
	IsActive *bool   `json:"is_active,omitempty"`
	IsAdmin  *bool   `json:"is_admin,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// SessionResponse is a session as listed in the admin surface
type SessionResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
	IsValid   bool   `json:"is_valid"`
}

// requireAdmin resolves the request to an acting admin, writing the
// uniform denial on failure.
func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) *domain.User {
	actor, err := h.gate.RequireAdmin(r.Context(), sessionToken(r))
	if err != nil {
		WriteDomainError(w, err)
		return nil
	}
	return actor
}

// ListUsers lists all users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, newUserResponse(user))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// CreateUser creates a new user
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.admin.CreateUser(r.Context(), admin.CreateUserRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, newUserResponse(user))
}

// UpdateUser applies a partial update to a user
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor := h.requireAdmin(w, r)
	if actor == nil {
		return
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.admin.UpdateUser(r.Context(), actor, userID, admin.UpdateUserRequest{
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
		FullName: req.FullName,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// DeleteUser removes a user and all of the user's sessions
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := h.requireAdmin(w, r)
	if actor == nil {
		return
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.admin.DeleteUser(r.Context(), actor, userID); err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListSessions lists all sessions with their owners' usernames
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	sessions, err := h.admin.ListSessions(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, SessionResponse{
			ID:        s.ID.String(),
			UserID:    s.UserID.String(),
			Username:  s.Username,
			CreatedAt: s.CreatedAt.Format(time.RFC3339),
			ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
			IsValid:   s.IsValid,
		})
	}
	WriteJSON(w, http.StatusOK, resp)
}

// RevokeSession marks a session invalid
func (h *AdminHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := h.admin.RevokeSession(r.Context(), sessionID); err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
