package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by repositories
// and services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// User errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

// Session errors
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrDuplicateToken     = errors.New("session token already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Authorization failures collapse to this single error regardless of the
// root cause (missing token, expired session, insufficient role) so that
// callers cannot enumerate accounts or roles from response differences.
var ErrUnauthorized = errors.New("unauthorized")

// Conflict errors for admin self-protection
var (
	ErrSelfDeactivation = errors.New("cannot disable your own account")
	ErrSelfDemotion     = errors.New("cannot remove your own admin privileges")
	ErrSelfDeletion     = errors.New("cannot delete your own account")
)

// ValidationError is a caller-input fault: malformed upload, bad size or
// type. It is surfaced verbatim and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf creates a ValidationError with a formatted message
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a caller-input fault
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrUsernameExists) ||
		errors.Is(err, ErrEmailExists)
}

// UpstreamError is a relational-store or object-store failure. It carries
// operator-diagnosable detail and is never silently retried here; retry
// policy belongs to the caller.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is one of the admin self-protection rules
func IsConflict(err error) bool {
	return errors.Is(err, ErrSelfDeactivation) ||
		errors.Is(err, ErrSelfDemotion) ||
		errors.Is(err, ErrSelfDeletion)
}
