package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"idea-portal/internal/auth"
	"idea-portal/internal/config"
	"idea-portal/internal/models"
)

func newUserService(t *testing.T) (*UserService, *memUsers, *memAudit, *auth.Service) {
	t.Helper()
	authSvc, err := auth.NewService(&config.JWTConfig{Expiration: time.Hour, Issuer: "test"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	users := usersFixture()
	audit := &memAudit{}
	return NewUserService(users, authSvc, NewAuditService(audit)), users, audit, authSvc
}

func TestCreateUser(t *testing.T) {
	svc, users, audit, authSvc := newUserService(t)
	ctx := context.Background()

	valid := NewUser{
		Email:     "  New.Person@Example.com ",
		Password:  "password123",
		FirstName: "Nora",
		LastName:  "New",
		Roles:     []string{models.RoleEmployee},
	}

	profile, err := svc.CreateUser(ctx, admin, valid)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if profile.User.Email != "new.person@example.com" || !profile.User.IsActive {
		t.Errorf("user = %+v", profile.User)
	}
	if err := authSvc.VerifyPassword(users.byID[profile.User.ID].PasswordHash, "password123"); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if roles := users.roles[profile.User.ID]; len(roles) != 1 || roles[0] != models.RoleEmployee {
		t.Errorf("roles = %v", roles)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "create" {
		t.Errorf("audit actions = %v", got)
	}

	tests := []struct {
		name   string
		actor  auth.Principal
		mutate func(*NewUser)
		want   error
	}{
		{"not admin", manager, func(*NewUser) {}, ErrForbidden},
		{"duplicate email", admin, func(u *NewUser) { u.Email = "max@example.com" }, ErrUserExists},
		{"bad email", admin, func(u *NewUser) { u.Email = "nope" }, ErrInvalidUser},
		{"short password", admin, func(u *NewUser) { u.Email = "a@example.com"; u.Password = "short" }, ErrInvalidUser},
		{"no roles", admin, func(u *NewUser) { u.Email = "b@example.com"; u.Roles = nil }, ErrInvalidUser},
		{"unknown role", admin, func(u *NewUser) { u.Email = "c@example.com"; u.Roles = []string{"owner"} }, ErrInvalidUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := svc.CreateUser(ctx, tt.actor, in); !errors.Is(err, tt.want) {
				t.Errorf("CreateUser() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	svc, users, _, _ := newUserService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "root@example.com", "password123")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin() = %v, %v", created, err)
	}
	u, err := users.GetByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("bootstrap admin missing: %v", err)
	}
	roles, _ := users.GetUserRoles(ctx, u.ID)
	if !(auth.Principal{Roles: roles}).IsAdmin() {
		t.Errorf("bootstrap roles = %v", roles)
	}

	created, err = svc.EnsureAdmin(ctx, "ROOT@example.com", "password123")
	if err != nil || created {
		t.Errorf("second EnsureAdmin() = %v, %v; want no-op", created, err)
	}
}

func TestProfile(t *testing.T) {
	svc, _, _, _ := newUserService(t)

	profile, err := svc.Profile(context.Background(), manager)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.User.ID != manager.UserID || len(profile.Roles) == 0 {
		t.Errorf("profile = %+v", profile)
	}

	if _, err := svc.Profile(context.Background(), auth.Principal{UserID: 999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Profile(unknown) error = %v, want ErrNotFound", err)
	}
}
