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

func TestLogin(t *testing.T) {
	authSvc, err := auth.NewService(&config.JWTConfig{Expiration: time.Hour, Issuer: "test"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	hash, err := authSvc.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	users := usersFixture()
	users.byID[manager.UserID].PasswordHash = hash
	users.byID[employee.UserID].PasswordHash = hash
	users.byID[employee.UserID].IsActive = false
	audit := &memAudit{}
	svc := NewAuthService(users, authSvc, NewAuditService(audit))
	ctx := context.Background()

	res, err := svc.Login(ctx, "MAX@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := authSvc.ValidateToken(res.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if p := claims.Principal(); p.UserID != manager.UserID || !p.HasRole(models.RoleManager) || p.Name != "Max Manager" {
		t.Errorf("principal = %+v", p)
	}
	if users.byID[manager.UserID].LastLoginAt == nil {
		t.Error("last login should be recorded")
	}

	tests := []struct {
		name, email, password string
		want                  error
	}{
		{"wrong password", "max@example.com", "nope", ErrInvalidCredentials},
		{"unknown user", "ghost@example.com", "password123", ErrInvalidCredentials},
		{"inactive user", "eli@example.com", "password123", ErrUserInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(ctx, tt.email, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("Login() error = %v, want %v", err, tt.want)
			}
		})
	}

	if got := audit.actions(); len(got) != 1 || got[0] != "login" {
		t.Errorf("audit actions = %v", got)
	}
}
