// Package postgres implements the auth repository over PostgreSQL. The
// schema is owned externally; this package only reads and writes it.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// Repository implements auth.Repository using PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Connect opens a pgx pool and verifies connectivity
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const userColumns = `id, username, email, password_hash, full_name, is_active, is_admin, last_login_at, created_at`

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.FullName,
		user.IsActive, user.IsAdmin, user.LastLoginAt, user.CreatedAt,
	)
	return mapUniqueViolation(err)
}

// GetUserByUsername retrieves a user by username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName,
		&user.IsActive, &user.IsAdmin, &user.LastLoginAt, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, &domain.UpstreamError{Op: "get user", Err: err}
	}
	return user, nil
}

// UpdateUser persists mutable user fields
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, full_name = $3, is_active = $4, is_admin = $5, last_login_at = $6
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.FullName, user.IsActive, user.IsAdmin, user.LastLoginAt,
	)
	if err != nil {
		return &domain.UpstreamError{Op: "update user", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListUsers returns all users ordered by creation time
func (r *Repository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list users", Err: err}
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName,
			&user.IsActive, &user.IsAdmin, &user.LastLoginAt, &user.CreatedAt,
		); err != nil {
			return nil, &domain.UpstreamError{Op: "scan user", Err: err}
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.UpstreamError{Op: "list users", Err: err}
	}
	return users, nil
}

// DeleteUser removes a user and cascades deletion of the user's sessions
// in one transaction.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &domain.UpstreamError{Op: "delete user", Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
		return &domain.UpstreamError{Op: "delete user sessions", Err: err}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return &domain.UpstreamError{Op: "delete user", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.UpstreamError{Op: "delete user", Err: err}
	}
	return nil
}

const sessionColumns = `id, user_id, session_token, expires_at, created_at, is_valid`

// CreateSession inserts a new session
func (r *Repository) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID, session.UserID, session.Token,
		session.ExpiresAt, session.CreatedAt, session.IsValid,
	)
	return mapUniqueViolation(err)
}

// GetSessionByToken retrieves a session by token
func (r *Repository) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_token = $1`, token)
}

// GetSessionByID retrieves a session by id
func (r *Repository) GetSessionByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

func (r *Repository) getSession(ctx context.Context, query string, arg any) (*domain.Session, error) {
	session := &domain.Session{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&session.ID, &session.UserID, &session.Token,
		&session.ExpiresAt, &session.CreatedAt, &session.IsValid,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, &domain.UpstreamError{Op: "get session", Err: err}
	}
	return session, nil
}

// CASInvalidateSession flips is_valid to false through a single guarded
// update, so concurrent callers cannot double-apply the transition.
func (r *Repository) CASInvalidateSession(ctx context.Context, token string, expectedValid bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_valid = FALSE
		WHERE session_token = $1 AND is_valid = $2
	`, token, expectedValid)
	if err != nil {
		return false, &domain.UpstreamError{Op: "invalidate session", Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

// SetSessionValid sets a session's validity flag
func (r *Repository) SetSessionValid(ctx context.Context, token string, valid bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET is_valid = $2 WHERE session_token = $1
	`, token, valid)
	if err != nil {
		return &domain.UpstreamError{Op: "set session validity", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// ListSessionsWithUsername returns every session joined with its owner
func (r *Repository) ListSessionsWithUsername(ctx context.Context) ([]*domain.SessionInfo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.user_id, s.session_token, s.expires_at, s.created_at, s.is_valid, u.username
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.created_at
	`)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	var sessions []*domain.SessionInfo
	for rows.Next() {
		info := &domain.SessionInfo{}
		if err := rows.Scan(
			&info.ID, &info.UserID, &info.Token,
			&info.ExpiresAt, &info.CreatedAt, &info.IsValid, &info.Username,
		); err != nil {
			return nil, &domain.UpstreamError{Op: "scan session", Err: err}
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.UpstreamError{Op: "list sessions", Err: err}
	}
	return sessions, nil
}

// mapUniqueViolation translates postgres unique violations into the
// domain duplicate errors by constraint name.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "username"):
			return domain.ErrUsernameExists
		case strings.Contains(pgErr.ConstraintName, "email"):
			return domain.ErrEmailExists
		case strings.Contains(pgErr.ConstraintName, "token"):
			return domain.ErrDuplicateToken
		}
	}
	return &domain.UpstreamError{Op: "insert", Err: err}
}

// Ensure Repository implements auth.Repository
var _ auth.Repository = (*Repository)(nil)
