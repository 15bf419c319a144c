package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/audiogate/internal/admin"
	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/credential"
	"github.com/felixgeelhaar/audiogate/internal/domain"
	"github.com/felixgeelhaar/audiogate/internal/storage/memory"
)

func newTestServices(t *testing.T) (*admin.Service, *auth.Service, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	vault := credential.NewVault(bcrypt.MinCost)
	return admin.NewService(repo, vault), auth.NewService(repo, vault, 0), repo
}

func createUser(t *testing.T, svc *admin.Service, username string, isAdmin bool) *domain.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), admin.CreateUserRequest{
		Username: username,
		Email:    username + "@x.com",
		Password: "pw123456",
		IsAdmin:  isAdmin,
	})
	if err != nil {
		t.Fatalf("CreateUser(%q) error = %v", username, err)
	}
	return user
}

func boolp(b bool) *bool { return &b }

func TestCreateUser_DuplicateChecks(t *testing.T) {
	svc, _, _ := newTestServices(t)
	createUser(t, svc, "alice", false)

	_, err := svc.CreateUser(context.Background(), admin.CreateUserRequest{
		Username: "alice",
		Email:    "other@x.com",
		Password: "pw123456",
	})
	if !errors.Is(err, domain.ErrUsernameExists) {
		t.Errorf("CreateUser() error = %v; want ErrUsernameExists", err)
	}

	_, err = svc.CreateUser(context.Background(), admin.CreateUserRequest{
		Username: "alice2",
		Email:    "alice@x.com",
		Password: "pw123456",
	})
	if !errors.Is(err, domain.ErrEmailExists) {
		t.Errorf("CreateUser() error = %v; want ErrEmailExists", err)
	}
}

func TestUpdateUser_PartialUpdate(t *testing.T) {
	svc, _, repo := newTestServices(t)
	actor := createUser(t, svc, "root", true)
	target := createUser(t, svc, "bob", false)

	name := "Bob Builder"
	updated, err := svc.UpdateUser(context.Background(), actor, target.ID, admin.UpdateUserRequest{
		IsAdmin:  boolp(true),
		FullName: &name,
	})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if !updated.IsAdmin {
		t.Error("UpdateUser() IsAdmin = false; want true")
	}
	if updated.FullName != name {
		t.Errorf("UpdateUser() FullName = %q; want %q", updated.FullName, name)
	}
	if !updated.IsActive {
		t.Error("UpdateUser() flipped IsActive without being asked")
	}

	stored, err := repo.GetUserByID(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if !stored.IsAdmin || stored.FullName != name {
		t.Errorf("stored user = %+v; update not persisted", stored)
	}
}

func TestUpdateUser_SelfProtection(t *testing.T) {
	svc, _, _ := newTestServices(t)
	actor := createUser(t, svc, "root", true)

	_, err := svc.UpdateUser(context.Background(), actor, actor.ID, admin.UpdateUserRequest{
		IsActive: boolp(false),
	})
	if !errors.Is(err, domain.ErrSelfDeactivation) {
		t.Errorf("self-deactivate error = %v; want ErrSelfDeactivation", err)
	}

	_, err = svc.UpdateUser(context.Background(), actor, actor.ID, admin.UpdateUserRequest{
		IsAdmin: boolp(false),
	})
	if !errors.Is(err, domain.ErrSelfDemotion) {
		t.Errorf("self-demote error = %v; want ErrSelfDemotion", err)
	}

	// The actor may still edit their own name.
	name := "Head Admin"
	if _, err := svc.UpdateUser(context.Background(), actor, actor.ID, admin.UpdateUserRequest{
		FullName: &name,
	}); err != nil {
		t.Errorf("self name change error = %v", err)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	svc, _, _ := newTestServices(t)
	actor := createUser(t, svc, "root", true)

	_, err := svc.UpdateUser(context.Background(), actor, uuid.New(), admin.UpdateUserRequest{})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("UpdateUser() error = %v; want ErrUserNotFound", err)
	}
}

func TestDeleteUser_CascadesSessions(t *testing.T) {
	svc, sessions, repo := newTestServices(t)
	actor := createUser(t, svc, "root", true)
	target := createUser(t, svc, "bob", false)

	token, err := sessions.CreateSession(context.Background(), target.ID, 0)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := svc.DeleteUser(context.Background(), actor, target.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := repo.GetUserByID(context.Background(), target.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUserByID() error = %v; want ErrUserNotFound", err)
	}
	if _, err := repo.GetSessionByToken(context.Background(), token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("GetSessionByToken() error = %v; want session removed by cascade", err)
	}
}

func TestDeleteUser_Self(t *testing.T) {
	svc, _, _ := newTestServices(t)
	actor := createUser(t, svc, "root", true)

	err := svc.DeleteUser(context.Background(), actor, actor.ID)
	if !errors.Is(err, domain.ErrSelfDeletion) {
		t.Errorf("DeleteUser() error = %v; want ErrSelfDeletion", err)
	}
}

func TestListSessions_JoinsUsernames(t *testing.T) {
	svc, sessions, _ := newTestServices(t)
	alice := createUser(t, svc, "alice", false)
	bob := createUser(t, svc, "bob", false)

	for _, u := range []*domain.User{alice, bob} {
		if _, err := sessions.CreateSession(context.Background(), u.ID, 0); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	infos, err := svc.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("ListSessions() returned %d sessions; want 2", len(infos))
	}
	names := map[string]bool{}
	for _, info := range infos {
		names[info.Username] = true
	}
	if !names["alice"] || !names["bob"] {
		t.Errorf("ListSessions() usernames = %v; want alice and bob", names)
	}
}

func TestRevokeSession(t *testing.T) {
	svc, sessions, repo := newTestServices(t)
	bob := createUser(t, svc, "bob", false)

	token, err := sessions.CreateSession(context.Background(), bob.ID, 0)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	session, err := repo.GetSessionByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("GetSessionByToken() error = %v", err)
	}

	if err := svc.RevokeSession(context.Background(), session.ID); err != nil {
		t.Fatalf("RevokeSession() error = %v", err)
	}

	user, _, err := sessions.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if user != nil {
		t.Errorf("ValidateSession() after revoke = %+v; want nil", user)
	}

	// The record is soft-deleted, not removed.
	stored, err := repo.GetSessionByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("GetSessionByToken() error = %v", err)
	}
	if stored.IsValid {
		t.Error("revoked session still marked valid")
	}
}

func TestRevokeSession_NotFound(t *testing.T) {
	svc, _, _ := newTestServices(t)

	err := svc.RevokeSession(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("RevokeSession() error = %v; want ErrSessionNotFound", err)
	}
}
