package handlers

import (
	"net/http"

	"idea-portal/internal/config"
	"idea-portal/internal/evaluation"
)

// AppConfigResponse is the public configuration the frontend needs
type AppConfigResponse struct {
	Name           string                `json:"name"`
	Version        string                `json:"version"`
	Env            string                `json:"env"`
	MinScore       int                   `json:"min_score"`
	MaxScore       int                   `json:"max_score"`
	MissingScore   int                   `json:"missing_score"`
	GradeTable     evaluation.GradeTable `json:"grade_table"`
	DuplicateCheck bool                  `json:"duplicate_check"`
	SealedComments bool                  `json:"sealed_comments"`
}

// ConfigHandler handles configuration requests
type ConfigHandler struct {
	config *config.Config
	policy evaluation.Policy
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, policy evaluation.Policy) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		policy: policy,
	}
}

// GetAppConfig returns application metadata and the scoring policy in effect
// @Summary Get app configuration
// @Tags Configuration
// @Produce json
// @Success 200 {object} AppConfigResponse
// @Router /config/app [get]
func (h *ConfigHandler) GetAppConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, AppConfigResponse{
		Name:           h.config.App.Name,
		Version:        h.config.App.Version,
		Env:            h.config.App.Env,
		MinScore:       evaluation.MinScore,
		MaxScore:       evaluation.MaxScore,
		MissingScore:   h.policy.MissingScore,
		GradeTable:     h.policy.Thresholds,
		DuplicateCheck: h.config.LLM.Enabled,
		SealedComments: h.config.Vault.Enabled,
	})
}
