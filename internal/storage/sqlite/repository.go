package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// Repository implements auth.Repository backed by SQLite.
type Repository struct {
	db *DB
}

// NewRepository creates a new SQLite-backed repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, email, password_hash, full_name, is_active, is_admin, last_login_at, created_at`

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.Email, user.PasswordHash, user.FullName,
		user.IsActive, user.IsAdmin, nullTime(user.LastLoginAt), user.CreatedAt,
	)
	return mapUniqueViolation(err)
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetUserByEmail retrieves a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, &domain.UpstreamError{Op: "get user", Err: err}
	}
	return user, nil
}

// UpdateUser persists mutable user fields.
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, full_name = ?, is_active = ?, is_admin = ?, last_login_at = ?
		WHERE id = ?`,
		user.Email, user.FullName, user.IsActive, user.IsAdmin,
		nullTime(user.LastLoginAt), user.ID.String(),
	)
	if err != nil {
		return &domain.UpstreamError{Op: "update user", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ListUsers returns all users ordered by creation time.
func (r *Repository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list users", Err: err}
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.UpstreamError{Op: "delete user", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, id.String()); err != nil {
		return &domain.UpstreamError{Op: "delete user sessions", Err: err}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return &domain.UpstreamError{Op: "delete user", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return &domain.UpstreamError{Op: "delete user", Err: err}
	}
	return nil
}

const sessionColumns = `id, user_id, session_token, expires_at, created_at, is_valid`

// CreateSession inserts a new session.
func (r *Repository) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID.String(), session.UserID.String(), session.Token,
		session.ExpiresAt, session.CreatedAt, session.IsValid,
	)
	return mapUniqueViolation(err)
}

// GetSessionByToken retrieves a session by token.
func (r *Repository) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_token = ?`, token)
}

// GetSessionByID retrieves a session by id.
func (r *Repository) GetSessionByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id.String())
}

func (r *Repository) getSession(ctx context.Context, query string, arg any) (*domain.Session, error) {
	session := &domain.Session{}
	var id, userID string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&id, &userID, &session.Token,
		&session.ExpiresAt, &session.CreatedAt, &session.IsValid,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, &domain.UpstreamError{Op: "get session", Err: err}
	}
	if session.ID, err = uuid.Parse(id); err != nil {
		return nil, &domain.UpstreamError{Op: "parse session id", Err: err}
	}
	if session.UserID, err = uuid.Parse(userID); err != nil {
		return nil, &domain.UpstreamError{Op: "parse session user id", Err: err}
	}
	return session, nil
}

// CASInvalidateSession flips is_valid to false through a single guarded
// update.
func (r *Repository) CASInvalidateSession(ctx context.Context, token string, expectedValid bool) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_valid = 0
		WHERE session_token = ? AND is_valid = ?`,
		token, expectedValid,
	)
	if err != nil {
		return false, &domain.UpstreamError{Op: "invalidate session", Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, &domain.UpstreamError{Op: "invalidate session", Err: err}
	}
	return n == 1, nil
}

// SetSessionValid sets a session's validity flag.
func (r *Repository) SetSessionValid(ctx context.Context, token string, valid bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_valid = ? WHERE session_token = ?`,
		valid, token,
	)
	if err != nil {
		return &domain.UpstreamError{Op: "set session validity", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// ListSessionsWithUsername returns every session joined with its owner.
func (r *Repository) ListSessionsWithUsername(ctx context.Context) ([]*domain.SessionInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.session_token, s.expires_at, s.created_at, s.is_valid, u.username
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.created_at`)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	var sessions []*domain.SessionInfo
	for rows.Next() {
		info := &domain.SessionInfo{}
		var id, userID string
		if err := rows.Scan(
			&id, &userID, &info.Token,
			&info.ExpiresAt, &info.CreatedAt, &info.IsValid, &info.Username,
		); err != nil {
			return nil, &domain.UpstreamError{Op: "scan session", Err: err}
		}
		if info.ID, err = uuid.Parse(id); err != nil {
			return nil, &domain.UpstreamError{Op: "parse session id", Err: err}
		}
		if info.UserID, err = uuid.Parse(userID); err != nil {
			return nil, &domain.UpstreamError{Op: "parse session user id", Err: err}
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.UpstreamError{Op: "list sessions", Err: err}
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var id string
	var lastLogin sql.NullTime
	err := row.Scan(
		&id, &user.Username, &user.Email, &user.PasswordHash, &user.FullName,
		&user.IsActive, &user.IsAdmin, &lastLogin, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return user, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// mapUniqueViolation translates SQLite unique violations into the domain
// duplicate errors by the offending column.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		msg := sqliteErr.Error()
		switch {
		case strings.Contains(msg, "users.username"):
			return domain.ErrUsernameExists
		case strings.Contains(msg, "users.email"):
			return domain.ErrEmailExists
		case strings.Contains(msg, "sessions.session_token"):
			return domain.ErrDuplicateToken
		}
	}
	return &domain.UpstreamError{Op: "insert", Err: err}
}

// Ensure Repository implements auth.Repository
var _ auth.Repository = (*Repository)(nil)
