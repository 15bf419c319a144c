// Package memory implements the auth repository in process memory. It
// backs unit tests and carries the same contract semantics as the SQL
// repositories, including the guarded invalidation update.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// Repository is an in-memory auth.Repository.
type Repository struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*domain.User
	sessions map[string]*domain.Session // keyed by token
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		users:    make(map[uuid.UUID]*domain.User),
		sessions: make(map[string]*domain.Session),
	}
}

// CreateUser inserts a new user.
func (r *Repository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return domain.ErrUsernameExists
		}
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// GetUserByEmail retrieves a user by email.
func (r *Repository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

// UpdateUser persists mutable user fields.
func (r *Repository) UpdateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

// ListUsers returns all users ordered by creation time.
func (r *Repository) ListUsers(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

// DeleteUser removes a user and cascades deletion of the user's sessions.
func (r *Repository) DeleteUser(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	for token, s := range r.sessions {
		if s.UserID == id {
			delete(r.sessions, token)
		}
	}
	return nil
}

// CreateSession inserts a new session.
func (r *Repository) CreateSession(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.Token]; exists {
		return domain.ErrDuplicateToken
	}
	clone := *session
	r.sessions[session.Token] = &clone
	return nil
}

// GetSessionByToken retrieves a session by token.
func (r *Repository) GetSessionByToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

// GetSessionByID retrieves a session by id.
func (r *Repository) GetSessionByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// CASInvalidateSession flips is_valid to false only when the record
// currently matches expectedValid.
func (r *Repository) CASInvalidateSession(_ context.Context, token string, expectedValid bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok || s.IsValid != expectedValid {
		return false, nil
	}
	s.IsValid = false
	return true, nil
}

// SetSessionValid sets a session's validity flag.
func (r *Repository) SetSessionValid(_ context.Context, token string, valid bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.IsValid = valid
	return nil
}

// ListSessionsWithUsername returns every session joined with its owner.
func (r *Repository) ListSessionsWithUsername(_ context.Context) ([]*domain.SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sessions []*domain.SessionInfo
	for _, s := range r.sessions {
		info := &domain.SessionInfo{Session: *s}
		if u, ok := r.users[s.UserID]; ok {
			info.Username = u.Username
		}
		sessions = append(sessions, info)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	return sessions, nil
}

// Ensure Repository implements auth.Repository
var _ auth.Repository = (*Repository)(nil)
