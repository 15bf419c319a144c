package auth

import (
	"context"

	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// Gate answers "is this token an active admin". It is stateless per call
// and holds no mutation authority of its own: self-protection rules live
// with the callers that own the mutations.
type Gate struct {
	sessions *Service
}

// NewGate creates an authorization gate over the session service
func NewGate(sessions *Service) *Gate {
	return &Gate{sessions: sessions}
}

// RequireAdmin resolves token to an active admin user. An invalid session
// and a valid session of a non-admin both yield domain.ErrUnauthorized;
// the two failure paths are indistinguishable to the caller. Store
// failures pass through as their own error class.
func (g *Gate) RequireAdmin(ctx context.Context, token string) (*domain.User, error) {
	user, _, err := g.sessions.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsAdmin {
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}
