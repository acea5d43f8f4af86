package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"idea-portal/internal/auth"
	"idea-portal/internal/models"
	"idea-portal/internal/repository"
	"idea-portal/pkg/validator"
)

var knownRoles = []string{models.RoleEmployee, models.RoleManager, models.RoleAdmin}

// UserProfile is an account together with its roles
type UserProfile struct {
	User  *models.User `json:"user"`
	Roles []string     `json:"roles"`
}

// NewUser describes an account to provision
type NewUser struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Department string
	Roles      []string
}

// UserService manages portal accounts
type UserService struct {
	userRepo UserAdminStore
	authSvc  *auth.Service
	audit    *AuditService
}

// NewUserService creates a new user service
func NewUserService(userRepo UserAdminStore, authSvc *auth.Service, audit *AuditService) *UserService {
	return &UserService{
		userRepo: userRepo,
		authSvc:  authSvc,
		audit:    audit,
	}
}

// Profile returns the caller's own account
func (s *UserService) Profile(ctx context.Context, p auth.Principal) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	roles, err := s.userRepo.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	return &UserProfile{User: user, Roles: roles}, nil
}

func (s *UserService) create(ctx context.Context, in NewUser) (*UserProfile, error) {
	email := validator.SanitizeEmail(in.Email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters long", ErrInvalidUser)
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, fmt.Errorf("%w: first name is required", ErrInvalidUser)
	}
	if len(in.Roles) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", ErrInvalidUser)
	}
	for _, role := range in.Roles {
		if !slices.Contains(knownRoles, role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
		}
	}

	hash, err := s.authSvc.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Department:   strings.TrimSpace(in.Department),
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, err
	}
	for _, role := range in.Roles {
		if err := s.userRepo.AssignRole(ctx, user.ID, role); err != nil {
			return nil, err
		}
	}
	return &UserProfile{User: user, Roles: slices.Clone(in.Roles)}, nil
}

// CreateUser provisions an account (admin only)
func (s *UserService) CreateUser(ctx context.Context, p auth.Principal, in NewUser) (*UserProfile, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins create users", ErrForbidden)
	}
	profile, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, p.UserID, "create", "user",
		fmt.Sprintf("Created user %d (%s) with roles %s", profile.User.ID, profile.User.Email, strings.Join(in.Roles, ",")))
	return profile, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is already taken.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if _, err := s.userRepo.GetByEmail(ctx, validator.SanitizeEmail(email)); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return false, err
	}

	profile, err := s.create(ctx, NewUser{
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		Roles:     []string{models.RoleAdmin, models.RoleManager},
	})
	if errors.Is(err, ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	slog.Info("Bootstrap admin created", "user_id", profile.User.ID, "email", profile.User.Email)
	return true, nil
}
