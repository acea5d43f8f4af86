package service

import (
	"context"

	"idea-portal/internal/models"
	"idea-portal/internal/repository"
)

// The services depend on these narrow views of the repositories so they can
// run against in-memory stores in tests.

// ProposalStore persists proposals
type ProposalStore interface {
	Create(ctx context.Context, p *models.Proposal) error
	GetByID(ctx context.Context, id uint) (*models.Proposal, error)
	GetByCode(ctx context.Context, code string) (*models.Proposal, error)
	List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, error)
	ListRecentByCategory(ctx context.Context, category string, excludeID uint, limit int) ([]models.Proposal, error)
	UpdateContent(ctx context.Context, p *models.Proposal) error
	UpdateStatus(ctx context.Context, p *models.Proposal, expected string) error
	CreateLinked(ctx context.Context, p *models.Proposal, targetID uint, groupID string) error
	SetDuplicateResult(ctx context.Context, proposalID uint, state string, verdict *models.DuplicateVerdict) error
}

// TemplateStore persists proposal templates
type TemplateStore interface {
	Create(ctx context.Context, t *models.Template) error
	Update(ctx context.Context, t *models.Template) error
	GetByID(ctx context.Context, id uint) (*models.Template, error)
	List(ctx context.Context, activeOnly bool) ([]models.Template, error)
}

// RatingStore persists ratings and the aggregate snapshot
type RatingStore interface {
	ListByProposal(ctx context.Context, proposalID uint) ([]models.Rating, error)
	UpsertAndAggregate(ctx context.Context, rating *models.Rating, aggregate repository.AggregateFunc) (models.RatingSummary, error)
}

// UserStore reads accounts
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserRoles(ctx context.Context, userID uint) ([]string, error)
	UpdateLastLogin(ctx context.Context, userID uint) error
}

// UserAdminStore provisions accounts
type UserAdminStore interface {
	UserStore
	Create(ctx context.Context, user *models.User) error
	AssignRole(ctx context.Context, userID uint, roleName string) error
}

// AuditStore writes audit entries
type AuditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// CommentSealer encrypts rating comments at rest
type CommentSealer interface {
	SealComment(ctx context.Context, proposalID, raterID uint, comment string) (string, error)
	OpenComment(ctx context.Context, proposalID, raterID uint, ciphertext string) (string, error)
}

// StatusNotifier tells authors about status changes
type StatusNotifier interface {
	SendStatusChangeNotification(to, authorName string, p *models.Proposal, from, toStatus string) error
}

var (
	_ ProposalStore  = (*repository.ProposalRepository)(nil)
	_ TemplateStore  = (*repository.TemplateRepository)(nil)
	_ RatingStore    = (*repository.RatingRepository)(nil)
	_ UserStore      = (*repository.UserRepository)(nil)
	_ UserAdminStore = (*repository.UserRepository)(nil)
	_ AuditStore     = (*repository.AuditRepository)(nil)
)
