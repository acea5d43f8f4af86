package auth

import (
	"context"

	"idea-portal/internal/models"
)

// Principal is the authenticated actor of a request. It is passed explicitly to
// services rather than read from shared state.
type Principal struct {
	UserID uint     `json:"user_id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
}

// HasRole reports whether the principal holds role
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal holds at least one of roles
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal is an administrator
func (p Principal) IsAdmin() bool {
	return p.HasRole(models.RoleAdmin)
}

// IsReviewer reports whether the principal may rate and decide on proposals
func (p Principal) IsReviewer() bool {
	return p.HasAnyRole(models.RoleManager, models.RoleAdmin)
}

type principalKey struct{}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
