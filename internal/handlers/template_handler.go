package handlers

import (
	"net/http"

	"idea-portal/internal/models"
	"idea-portal/internal/service"
)

// TemplateRequest is the body for creating or replacing a template
type TemplateRequest struct {
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description"`
	Fields      []models.TemplateField `json:"fields"`
	Criteria    []models.Criterion     `json:"criteria"`
	IsActive    *bool                  `json:"is_active,omitempty"`
}

func (req *TemplateRequest) toModel() *models.Template {
	t := &models.Template{
		Title:       req.Title,
		Description: req.Description,
		Fields:      req.Fields,
		Criteria:    req.Criteria,
		IsActive:    true,
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	return t
}

// TemplateHandler handles proposal template requests
type TemplateHandler struct {
	templateService *service.TemplateService
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templateService *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
	}
}

// ListTemplates returns the templates visible to the caller
// @Summary List templates
// @Description Active templates for everyone, all templates for admins
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Template
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /templates [get]
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	templates, err := h.templateService.List(r.Context(), p)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, templates)
}

// GetTemplate returns one template
// @Summary Get template
// @Tags Templates
// @Produce json
// @Security BearerAuth
// @Param id path int true "Template ID"
// @Success 200 {object} models.Template
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Failure 404 {object} ErrorResponse "Template not found"
// @Router /templates/{id} [get]
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.templateService.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

// CreateTemplate creates a template
// @Summary Create template
// @Description Create a proposal template (admin only). Criterion weights that do not sum to 100 produce a warning, not an error.
// @Tags Templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param template body TemplateRequest true "Template"
// @Success 201 {object} models.TemplateWithWarnings
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Router /admin/templates [post]
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req TemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.templateService.Create(r.Context(), p, req.toModel())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// UpdateTemplate replaces a template
// @Summary Update template
// @Description Replace a template's content (admin only). Existing ratings keep their recorded detail.
// @Tags Templates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Template ID"
// @Param template body TemplateRequest true "Template"
// @Success 200 {object} models.TemplateWithWarnings
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Failure 404 {object} ErrorResponse "Template not found"
// @Router /admin/templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req TemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := req.toModel()
	t.ID = id
	updated, err := h.templateService.Update(r.Context(), p, t)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}
