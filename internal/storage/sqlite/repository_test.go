package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/audiogate/internal/domain"
	"github.com/felixgeelhaar/audiogate/internal/storage/sqlite"
)

func newTestRepository(t *testing.T) *sqlite.Repository {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "audiogate.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlite.NewRepository(db)
}

func newUser(username string) *domain.User {
	return &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: "$2a$04$notarealhash",
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func newSession(userID uuid.UUID, token string) *domain.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		IsValid:   true,
	}
}

func TestUserRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := newUser("alice")
	user.FullName = "Alice A."
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	for name, get := range map[string]func() (*domain.User, error){
		"by username": func() (*domain.User, error) { return repo.GetUserByUsername(ctx, "alice") },
		"by email":    func() (*domain.User, error) { return repo.GetUserByEmail(ctx, "alice@x.com") },
		"by id":       func() (*domain.User, error) { return repo.GetUserByID(ctx, user.ID) },
	} {
		got, err := get()
		if err != nil {
			t.Fatalf("get user %s error = %v", name, err)
		}
		if got.ID != user.ID || got.Username != "alice" || got.FullName != "Alice A." {
			t.Errorf("get user %s = %+v; want %+v", name, got, user)
		}
		if got.LastLoginAt != nil {
			t.Errorf("get user %s LastLoginAt = %v; want nil", name, got.LastLoginAt)
		}
	}
}

func TestGetUser_NotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.GetUserByUsername(ctx, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUserByUsername() error = %v; want ErrUserNotFound", err)
	}
	if _, err := repo.GetUserByID(ctx, uuid.New()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUserByID() error = %v; want ErrUserNotFound", err)
	}
}

func TestCreateUser_UniqueViolations(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, newUser("alice")); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	dupName := newUser("alice")
	dupName.Email = "other@x.com"
	if err := repo.CreateUser(ctx, dupName); !errors.Is(err, domain.ErrUsernameExists) {
		t.Errorf("duplicate username error = %v; want ErrUsernameExists", err)
	}

	dupEmail := newUser("alice2")
	dupEmail.Email = "alice@x.com"
	if err := repo.CreateUser(ctx, dupEmail); !errors.Is(err, domain.ErrEmailExists) {
		t.Errorf("duplicate email error = %v; want ErrEmailExists", err)
	}
}

func TestUpdateUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := newUser("alice")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	lastLogin := time.Now().UTC().Truncate(time.Second)
	user.IsAdmin = true
	user.FullName = "Alice Admin"
	user.LastLoginAt = &lastLogin
	if err := repo.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if !got.IsAdmin || got.FullName != "Alice Admin" {
		t.Errorf("updated user = %+v", got)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(lastLogin) {
		t.Errorf("LastLoginAt = %v; want %v", got.LastLoginAt, lastLogin)
	}

	if err := repo.UpdateUser(ctx, newUser("ghost")); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("UpdateUser(missing) error = %v; want ErrUserNotFound", err)
	}
}

func TestListUsers_OrderedByCreation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, name := range []string{"alice", "bob", "carol"} {
		u := newUser(name)
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%q) error = %v", name, err)
		}
	}

	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("ListUsers() returned %d users; want 3", len(users))
	}
	for i, want := range []string{"alice", "bob", "carol"} {
		if users[i].Username != want {
			t.Errorf("users[%d] = %q; want %q", i, users[i].Username, want)
		}
	}
}

func TestDeleteUser_CascadesSessions(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := newUser("alice")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	session := newSession(user.ID, "tok-1")
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := repo.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := repo.GetUserByID(ctx, user.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUserByID() error = %v; want ErrUserNotFound", err)
	}
	if _, err := repo.GetSessionByToken(ctx, "tok-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("GetSessionByToken() error = %v; want cascade-deleted session", err)
	}

	if err := repo.DeleteUser(ctx, uuid.New()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("DeleteUser(missing) error = %v; want ErrUserNotFound", err)
	}
}

func TestSessionRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := newUser("alice")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	session := newSession(user.ID, "tok-1")
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	byToken, err := repo.GetSessionByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetSessionByToken() error = %v", err)
	}
	byID, err := repo.GetSessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSessionByID() error = %v", err)
	}
	for _, got := range []*domain.Session{byToken, byID} {
		if got.ID != session.ID || got.UserID != user.ID || !got.IsValid {
			t.Errorf("session = %+v; want %+v", got, session)
		}
		if !got.ExpiresAt.Equal(session.ExpiresAt) {
			t.Errorf("ExpiresAt = %v; want %v", got.ExpiresAt, session.ExpiresAt)
		}
	}

	dup := newSession(user.ID, "tok-1")
	if err := repo.CreateSession(ctx, dup); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("duplicate token error = %v; want ErrDuplicateToken", err)
	}
}

func TestCASInvalidateSession_AppliesOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := newUser("alice")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := repo.CreateSession(ctx, newSession(user.ID, "tok-1")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	applied, err := repo.CASInvalidateSession(ctx, "tok-1", true)
	if err != nil {
		t.Fatalf("CASInvalidateSession() error = %v", err)
	}
	if !applied {
		t.Error("first CASInvalidateSession() = false; want true")
	}

	// The guard no longer matches: the second call is a no-op.
	applied, err = repo.CASInvalidateSession(ctx, "tok-1", true)
	if err != nil {
		t.Fatalf("CASInvalidateSession() error = %v", err)
	}
	if applied {
		t.Error("second CASInvalidateSession() = true; want false")
	}

	got, err := repo.GetSessionByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetSessionByToken() error = %v", err)
	}
	if got.IsValid {
		t.Error("session still valid after CAS invalidation")
	}
}

func TestSetSessionValid(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user := newUser("alice")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := repo.CreateSession(ctx, newSession(user.ID, "tok-1")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := repo.SetSessionValid(ctx, "tok-1", false); err != nil {
		t.Fatalf("SetSessionValid() error = %v", err)
	}
	got, err := repo.GetSessionByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetSessionByToken() error = %v", err)
	}
	if got.IsValid {
		t.Error("session still valid after SetSessionValid(false)")
	}

	if err := repo.SetSessionValid(ctx, "ghost", false); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("SetSessionValid(missing) error = %v; want ErrSessionNotFound", err)
	}
}

func TestListSessionsWithUsername(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	alice := newUser("alice")
	bob := newUser("bob")
	for _, u := range []*domain.User{alice, bob} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
	}
	if err := repo.CreateSession(ctx, newSession(alice.ID, "tok-a")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := repo.CreateSession(ctx, newSession(bob.ID, "tok-b")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	infos, err := repo.ListSessionsWithUsername(ctx)
	if err != nil {
		t.Fatalf("ListSessionsWithUsername() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("ListSessionsWithUsername() returned %d; want 2", len(infos))
	}

	byToken := map[string]string{}
	for _, info := range infos {
		byToken[info.Token] = info.Username
	}
	if byToken["tok-a"] != "alice" || byToken["tok-b"] != "bob" {
		t.Errorf("session owners = %v; want tok-a owned by alice and tok-b by bob", byToken)
	}
}
