package handlers

import (
	"context"
	"net/http"
	"strconv"

	"idea-portal/internal/models"
)

// AuditLister reads the audit trail
type AuditLister interface {
	ListByResource(ctx context.Context, resource string, limit int) ([]models.AuditLog, error)
}

// AuditHandler handles audit log requests
type AuditHandler struct {
	auditRepo AuditLister
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditRepo AuditLister) *AuditHandler {
	return &AuditHandler{
		auditRepo: auditRepo,
	}
}

// ListAuditLogs lists the newest audit entries of one resource type (admin only)
// @Summary List audit logs
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param resource query string true "Resource (proposal, template, auth)"
// @Param limit query int false "Maximum number of entries" default(50)
// @Success 200 {array} models.AuditLog
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Router /admin/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		respondWithError(w, http.StatusBadRequest, "resource is required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 500 {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = l
	}

	logs, err := h.auditRepo.ListByResource(r.Context(), resource, limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, logs)
}
