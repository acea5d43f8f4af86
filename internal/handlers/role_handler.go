package handlers

import (
	"context"
	"net/http"

	"idea-portal/internal/models"
)

// RoleLister reads the configured roles
type RoleLister interface {
	List(ctx context.Context) ([]models.RoleSummary, error)
}

// RoleHandler handles role requests
type RoleHandler struct {
	roleRepo RoleLister
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roleRepo RoleLister) *RoleHandler {
	return &RoleHandler{roleRepo: roleRepo}
}

// ListRoles returns every role with its active user count (admin only)
// @Summary List roles
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.RoleSummary
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Router /admin/roles [get]
func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleRepo.List(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, roles)
}
