package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker func(ctx context.Context) error

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// HealthHandler reports service health
type HealthHandler struct {
	version string
	checks  map[string]HealthChecker
}

// NewHealthHandler creates a health handler; checks are keyed by dependency name
func NewHealthHandler(version string, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

// Health runs every dependency check
// @Summary Health check
// @Tags Operations
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Version: h.version, Checks: map[string]string{}}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Checks[name] = "error"
			continue
		}
		resp.Checks[name] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, resp)
}
