package handlers

import (
	"net/http"
	"strconv"

	"idea-portal/internal/models"
	"idea-portal/internal/service"
	"idea-portal/pkg/validator"
)

// ProposalRequest is the body for creating a proposal
type ProposalRequest struct {
	TemplateID      uint            `json:"template_id" validate:"required"`
	Title           string          `json:"title" validate:"required,max=200"`
	Category        string          `json:"category" validate:"max=100"`
	FormData        models.FormData `json:"form_data"`
	CoverImage      *string         `json:"cover_image,omitempty"`
	LinkedReference string          `json:"linked_reference,omitempty" validate:"max=64"`
	Submit          bool            `json:"submit"`
}

// UpdateProposalRequest is the body for editing a proposal's content
type UpdateProposalRequest struct {
	Title      string          `json:"title" validate:"required,max=200"`
	Category   string          `json:"category" validate:"max=100"`
	FormData   models.FormData `json:"form_data"`
	CoverImage *string         `json:"cover_image,omitempty"`
}

// StatusRequest is the body of a status change
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TransitionsResponse lists the statuses the caller may move a proposal to
type TransitionsResponse struct {
	Status      string   `json:"status"`
	Transitions []string `json:"transitions"`
}

// ProposalHandler handles proposal requests
type ProposalHandler struct {
	proposalService *service.ProposalService
}

// NewProposalHandler creates a new proposal handler
func NewProposalHandler(proposalService *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{
		proposalService: proposalService,
	}
}

// CreateProposal creates a draft or submits a new proposal
// @Summary Create proposal
// @Description Create a proposal against an active template. With submit=true the proposal is submitted immediately and queued for duplicate screening. linked_reference joins the collaboration group of an existing proposal (id or code).
// @Tags Proposals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param proposal body ProposalRequest true "Proposal"
// @Success 201 {object} models.Proposal
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Failure 422 {object} ErrorResponse "Linked proposal not found"
// @Router /proposals [post]
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req ProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	proposal, err := h.proposalService.Create(r.Context(), p, service.ProposalInput{
		TemplateID:      req.TemplateID,
		Title:           validator.SanitizeString(req.Title),
		Category:        validator.SanitizeString(req.Category),
		FormData:        req.FormData,
		CoverImage:      req.CoverImage,
		LinkedReference: validator.SanitizeString(req.LinkedReference),
		Submit:          req.Submit,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, proposal)
}

func filterFromQuery(r *http.Request, userID uint) (models.ProposalFilter, error) {
	q := r.URL.Query()
	filter := models.ProposalFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
	}
	if mine, _ := strconv.ParseBool(q.Get("mine")); mine {
		filter.AuthorID = &userID
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return filter, strconv.ErrSyntax
		}
		filter.Limit = n
	}
	return filter, nil
}

// ListProposals returns the proposals visible to the caller
// @Summary List proposals
// @Description Other users' drafts are never listed
// @Tags Proposals
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param category query string false "Category filter"
// @Param mine query bool false "Only the caller's own proposals"
// @Param limit query int false "Maximum number of results"
// @Success 200 {array} models.Proposal
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Router /proposals [get]
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	filter, err := filterFromQuery(r, p.UserID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	proposals, err := h.proposalService.List(r.Context(), p, filter)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, proposals)
}

// ListClusters groups visible proposals by collaboration group
// @Summary Proposal clusters
// @Description Proposals sharing a collaboration group are listed together; unlinked proposals appear as singles
// @Tags Proposals
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param category query string false "Category filter"
// @Success 200 {object} models.ProposalClusters
// @Router /proposals/clusters [get]
func (h *ProposalHandler) ListClusters(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	filter, err := filterFromQuery(r, p.UserID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	clusters, err := h.proposalService.Clusters(r.Context(), p, filter)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, clusters)
}

// GetProposal returns a proposal by numeric id or public code
// @Summary Get proposal
// @Tags Proposals
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Proposal ID or code"
// @Success 200 {object} models.Proposal
// @Failure 404 {object} ErrorResponse "Proposal not found"
// @Router /proposals/{ref} [get]
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	proposal, err := h.proposalService.Get(r.Context(), p, r.PathValue("ref"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, proposal)
}

// UpdateProposal edits a proposal's content
// @Summary Update proposal
// @Description Only the author may edit, and only while the proposal is a draft or needs revision
// @Tags Proposals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Proposal ID"
// @Param proposal body UpdateProposalRequest true "Proposal content"
// @Success 200 {object} models.Proposal
// @Failure 400 {object} ErrorResponse "Invalid input"
// @Failure 403 {object} ErrorResponse "Not the author"
// @Failure 409 {object} ErrorResponse "Proposal is not editable"
// @Router /proposals/{id} [put]
func (h *ProposalHandler) UpdateProposal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	proposal, err := h.proposalService.UpdateFormData(r.Context(), p, id, service.ProposalUpdate{
		Title:      validator.SanitizeString(req.Title),
		Category:   validator.SanitizeString(req.Category),
		FormData:   req.FormData,
		CoverImage: req.CoverImage,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, proposal)
}

// ChangeStatus moves a proposal through the review workflow
// @Summary Change proposal status
// @Description Authors submit and withdraw, managers review, admins may perform any arrow of the workflow
// @Tags Proposals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Proposal ID"
// @Param status body StatusRequest true "Target status"
// @Success 200 {object} models.Proposal
// @Failure 403 {object} ErrorResponse "Role may not perform this transition"
// @Failure 409 {object} ErrorResponse "Transition not allowed from the current status"
// @Router /proposals/{id}/status [put]
func (h *ProposalHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	proposal, err := h.proposalService.ChangeStatus(r.Context(), p, id, req.Status)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, proposal)
}

// GetTransitions lists the statuses the caller may move a proposal to
// @Summary Allowed transitions
// @Tags Proposals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Proposal ID"
// @Success 200 {object} TransitionsResponse
// @Failure 404 {object} ErrorResponse "Proposal not found"
// @Router /proposals/{id}/transitions [get]
func (h *ProposalHandler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	proposal, err := h.proposalService.Get(r.Context(), p, strconv.FormatUint(uint64(id), 10))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	transitions, err := h.proposalService.AllowedTransitions(r.Context(), p, id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TransitionsResponse{Status: proposal.Status, Transitions: transitions})
}
