package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/audiogate/internal/credential"
	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// DefaultSessionTTL is how long a session stays eligible for validation
// unless configured otherwise.
const DefaultSessionTTL = 7 * 24 * time.Hour

const (
	// tokenBytes is the entropy of a session token before encoding.
	tokenBytes = 32

	// maxTokenAttempts bounds the retry loop on token collisions. A
	// collision is astronomically unlikely, so exhausting this means the
	// store is misbehaving, not that we were unlucky.
	maxTokenAttempts = 5
)

// Repository defines the relational-store contract for auth data access.
// The store is the single source of truth; it serializes concurrent
// mutation through its own transactional guarantees.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
	// DeleteUser removes a user and all of that user's sessions.
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// CreateSession returns domain.ErrDuplicateToken when the token
	// collides with any session ever issued.
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSessionByToken(ctx context.Context, token string) (*domain.Session, error)
	GetSessionByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	// CASInvalidateSession flips is_valid to false only when the row
	// currently has is_valid == expectedValid, as a single guarded
	// mutation. It reports whether a row transitioned.
	CASInvalidateSession(ctx context.Context, token string, expectedValid bool) (bool, error)
	SetSessionValid(ctx context.Context, token string, valid bool) error
	ListSessionsWithUsername(ctx context.Context) ([]*domain.SessionInfo, error)
}

// Transition is the state change ValidateSession applied to the session
// record, reported next to the read result so callers and tests can
// observe the lazy-expiry write independently of the returned user.
type Transition int

const (
	// TransitionNone means the session record was left untouched.
	TransitionNone Transition = iota
	// TransitionExpired means this call flipped is_valid on an expired
	// session.
	TransitionExpired
)

// Service owns the session lifecycle: issue, lazily-expiring validate,
// invalidate. Expiry is enforced opportunistically at read time; there is
// no background sweeper.
type Service struct {
	repo  Repository
	vault *credential.Vault
	ttl   time.Duration
}

// NewService creates a new session service. A non-positive ttl selects
// DefaultSessionTTL.
func NewService(repo Repository, vault *credential.Vault, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		repo:  repo,
		vault: vault,
		ttl:   ttl,
	}
}

// GenerateToken creates a cryptographically secure URL-safe session token
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateSession issues a new session for userID and returns its token.
// A non-positive ttl selects the configured default.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := GenerateToken()
		if err != nil {
			return "", err
		}

		now := time.Now().UTC()
		session := &domain.Session{
			ID:        uuid.New(),
			UserID:    userID,
			Token:     token,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
			IsValid:   true,
		}

		err = s.repo.CreateSession(ctx, session)
		if errors.Is(err, domain.ErrDuplicateToken) {
			continue
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}

	return "", &domain.UpstreamError{
		Op:  "create session",
		Err: fmt.Errorf("token collided %d times in a row", maxTokenAttempts),
	}
}

// ValidateSession resolves a token to its owning user. It returns a nil
// user for an unknown, invalidated, or expired token and for a token
// whose owner is missing or inactive; the caller cannot distinguish
// these. The first validation after expiry flips is_valid through a
// single conditional update, so two racing validations cannot both
// observe a valid session or double-apply the invalidation. Deactivating
// a user does not touch their session records: they simply stop
// resolving here until they expire.
func (s *Service) ValidateSession(ctx context.Context, token string) (*domain.User, Transition, error) {
	session, err := s.repo.GetSessionByToken(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, TransitionNone, nil
	}
	if err != nil {
		return nil, TransitionNone, err
	}

	if !session.IsValid {
		return nil, TransitionNone, nil
	}

	if session.IsExpired(time.Now().UTC()) {
		applied, err := s.repo.CASInvalidateSession(ctx, token, true)
		if err != nil {
			return nil, TransitionNone, err
		}
		if applied {
			return nil, TransitionExpired, nil
		}
		// A concurrent validation won the race and applied it first.
		return nil, TransitionNone, nil
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, TransitionNone, nil
	}
	if err != nil {
		return nil, TransitionNone, err
	}
	if !user.IsActive {
		return nil, TransitionNone, nil
	}

	return user, TransitionNone, nil
}

// InvalidateSession marks a session invalid. It is idempotent and reports
// whether a record was found, not whether any state changed.
func (s *Service) InvalidateSession(ctx context.Context, token string) (bool, error) {
	err := s.repo.SetSessionValid(ctx, token, false)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate verifies a username/password pair. On success it updates
// last_login_at as its only side effect and returns the user. Unknown
// username, inactive user, and wrong password all return a nil user with
// no observable side effect; the three causes are deliberately not
// distinguished.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}

	ok, err := s.vault.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// RegisterRequest contains registration data
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	FullName string
}

// Register creates a new active, non-admin account and issues a session
// with the default TTL.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, string, error) {
	if existing, err := s.repo.GetUserByUsername(ctx, req.Username); err == nil && existing != nil {
		return nil, "", domain.ErrUsernameExists
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", err
	}
	if existing, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, "", domain.ErrEmailExists
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", err
	}

	hash, err := s.vault.Hash(req.Password)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		IsActive:     true,
		IsAdmin:      false,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.CreateSession(ctx, user.ID, 0)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Login authenticates a user and issues a session with the default TTL
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.CreateSession(ctx, user.ID, 0)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}
