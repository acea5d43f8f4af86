package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"idea-portal/internal/auth"
	"idea-portal/internal/models"
	"idea-portal/internal/repository"
)

// LoginResult is what a successful login returns
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	Roles     []string     `json:"roles"`
}

// AuthService exchanges credentials for a token
type AuthService struct {
	userRepo UserStore
	authSvc  *auth.Service
	audit    *AuditService
}

// NewAuthService creates a new authentication service
func NewAuthService(userRepo UserStore, authSvc *auth.Service, audit *AuditService) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		authSvc:  authSvc,
		audit:    audit,
	}
}

// Login authenticates a user and returns a signed token carrying their roles
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.authSvc.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	roles, err := s.userRepo.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	p := auth.Principal{UserID: user.ID, Email: user.Email, Name: user.FullName(), Roles: roles}
	token, expiresAt, err := s.authSvc.GenerateToken(p)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("Failed to update last login", "user_id", user.ID, "error", err)
	}
	s.audit.Log(ctx, user.ID, "login", "auth", "User logged in")

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user, Roles: roles}, nil
}
