package handlers

import (
	"net/http"

	"idea-portal/internal/middleware"
	"idea-portal/internal/models"
)

// Router wires the API handlers to their routes
type Router struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Templates *TemplateHandler
	Proposals *ProposalHandler
	Ratings   *RatingHandler
	Config    *ConfigHandler
	Audit     *AuditHandler
	Roles     *RoleHandler
	Health    *HealthHandler

	AuthMw  *middleware.AuthMiddleware
	AuditMw *middleware.AuditMiddleware
}

// Register adds every API route to mux
func (rt *Router) Register(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc, guards ...func(http.Handler) http.Handler) http.Handler {
		return middleware.Chain(h, append([]func(http.Handler) http.Handler{rt.AuthMw.Authenticate}, guards...)...)
	}
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	authors := middleware.RequireAnyRole(models.RoleEmployee, models.RoleAdmin)
	raters := middleware.RequireRole(models.RoleManager)
	reviewers := middleware.RequireAnyRole(models.RoleManager, models.RoleAdmin)

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/login", rt.Auth.Login)
	mux.HandleFunc("GET /api/v1/config/app", rt.Config.GetAppConfig)
	mux.HandleFunc("GET /health", rt.Health.Health)

	// Account routes
	mux.Handle("GET /api/v1/auth/me", authed(rt.Auth.Me))
	mux.Handle("GET /api/v1/users/profile", authed(rt.Users.GetProfile))

	// Template routes
	mux.Handle("GET /api/v1/templates", authed(rt.Templates.ListTemplates))
	mux.Handle("GET /api/v1/templates/{id}", authed(rt.Templates.GetTemplate))

	// Proposal routes
	mux.Handle("POST /api/v1/proposals", authed(rt.Proposals.CreateProposal, authors))
	mux.Handle("GET /api/v1/proposals", authed(rt.Proposals.ListProposals))
	mux.Handle("GET /api/v1/proposals/clusters", authed(rt.Proposals.ListClusters))
	mux.Handle("GET /api/v1/proposals/{ref}", authed(rt.Proposals.GetProposal))
	mux.Handle("PUT /api/v1/proposals/{id}", authed(rt.Proposals.UpdateProposal, authors))
	mux.Handle("PUT /api/v1/proposals/{id}/status", authed(rt.Proposals.ChangeStatus))
	mux.Handle("GET /api/v1/proposals/{id}/transitions", authed(rt.Proposals.GetTransitions))

	// Review routes
	mux.Handle("POST /api/v1/review/proposals/{id}/ratings/preview", authed(rt.Ratings.PreviewRating, raters))
	mux.Handle("POST /api/v1/review/proposals/{id}/ratings", authed(rt.Ratings.SubmitRating, raters))
	mux.Handle("GET /api/v1/review/proposals/{id}/ratings", authed(rt.Ratings.ListRatings, reviewers))

	// Admin routes
	mux.Handle("POST /api/v1/admin/templates", authed(rt.Templates.CreateTemplate, adminOnly, rt.AuditMw.Log("admin.template.create", "templates")))
	mux.Handle("PUT /api/v1/admin/templates/{id}", authed(rt.Templates.UpdateTemplate, adminOnly, rt.AuditMw.Log("admin.template.update", "templates")))
	mux.Handle("POST /api/v1/admin/users", authed(rt.Users.CreateUser, adminOnly, rt.AuditMw.Log("admin.user.create", "users")))
	mux.Handle("GET /api/v1/admin/audit-logs", authed(rt.Audit.ListAuditLogs, adminOnly))
	mux.Handle("GET /api/v1/admin/roles", authed(rt.Roles.ListRoles, adminOnly))
}
