// Package admin implements the privileged user and session management
// operations. Authorization is the caller's job (via auth.Gate); this
// package enforces the self-protection invariants on the mutations it
// owns.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/credential"
	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// Service handles administrative user and session management
type Service struct {
	repo  auth.Repository
	vault *credential.Vault
}

// NewService creates a new admin service
func NewService(repo auth.Repository, vault *credential.Vault) *Service {
	return &Service{repo: repo, vault: vault}
}

// ListUsers returns all users
func (s *Service) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateUserRequest contains the fields for an admin-created account
type CreateUserRequest struct {
	Username string
	Email    string
	Password string
	FullName string
	IsAdmin  bool
}

// CreateUser creates a new active account, optionally with admin role
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if existing, err := s.repo.GetUserByUsername(ctx, req.Username); err == nil && existing != nil {
		return nil, domain.ErrUsernameExists
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if existing, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, domain.ErrEmailExists
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.vault.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		IsActive:     true,
		IsAdmin:      req.IsAdmin,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserRequest is a partial update; nil fields are left unchanged
type UpdateUserRequest struct {
	IsActive *bool
	IsAdmin  *bool
	FullName *string
}

// UpdateUser applies a partial update to a user. The acting admin cannot
// deactivate or demote themself.
func (s *Service) UpdateUser(ctx context.Context, actor *domain.User, userID uuid.UUID, req UpdateUserRequest) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.ID == actor.ID {
		if req.IsActive != nil && !*req.IsActive {
			return nil, domain.ErrSelfDeactivation
		}
		if req.IsAdmin != nil && !*req.IsAdmin {
			return nil, domain.ErrSelfDemotion
		}
	}

	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user and, by cascade, every session the user
// owns. The acting admin cannot delete themself.
func (s *Service) DeleteUser(ctx context.Context, actor *domain.User, userID uuid.UUID) error {
	if userID == actor.ID {
		return domain.ErrSelfDeletion
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}

	return s.repo.DeleteUser(ctx, userID)
}

// ListSessions returns every session joined with its owner's username
func (s *Service) ListSessions(ctx context.Context) ([]*domain.SessionInfo, error) {
	return s.repo.ListSessionsWithUsername(ctx)
}

// RevokeSession marks a session invalid by its id
func (s *Service) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.repo.SetSessionValid(ctx, session.Token, false)
}
