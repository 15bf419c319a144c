package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	IsActive     bool
	IsAdmin      bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

// Session represents an issued bearer session. Sessions are soft-deleted:
// logout, admin revocation, and lazy expiry flip IsValid, the row stays.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	IsValid   bool
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Live reports whether the session record itself is usable. The owning
// user's activity is a separate condition checked at lookup time.
func (s *Session) Live(now time.Time) bool {
	return s.IsValid && s.ExpiresAt.After(now)
}

// SessionInfo is a session joined with its owner's username, as listed
// in the admin surface.
type SessionInfo struct {
	Session
	Username string
}
