package service

import (
	"context"
	"log/slog"

	"idea-portal/internal/models"
)

// AuditService handles audit logging
type AuditService struct {
	auditRepo AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo AuditStore) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
	}
}

// Log creates an audit log entry, ignoring errors
// This is the recommended way to log audit events as it won't fail the main operation
func (s *AuditService) Log(ctx context.Context, userID uint, action, resource, details string) {
	if err := s.LogError(ctx, userID, action, resource, details); err != nil {
		slog.Warn("Failed to write audit log", "action", action, "resource", resource, "error", err)
	}
}

// LogError creates an audit log entry and returns any error
// Use this when you need to handle audit logging errors explicitly
func (s *AuditService) LogError(ctx context.Context, userID uint, action, resource, details string) error {
	if s == nil || s.auditRepo == nil {
		return nil
	}
	return s.auditRepo.Create(ctx, &models.AuditLog{
		UserID:   &userID,
		Action:   action,
		Resource: resource,
		Details:  details,
	})
}
