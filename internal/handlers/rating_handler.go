package handlers

import (
	"net/http"

	"idea-portal/internal/service"
)

// RatingRequest is the body of a rating submission or preview.
// Scores map criterion ids to 1..5; criteria left out are filled by the scoring policy.
type RatingRequest struct {
	Scores  map[string]int `json:"scores"`
	Comment string         `json:"comment" validate:"max=4000"`
}

// RatingHandler handles manager ratings of proposals
type RatingHandler struct {
	ratingService *service.RatingService
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(ratingService *service.RatingService) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
	}
}

// PreviewRating scores a proposal without storing the rating
// @Summary Preview rating
// @Tags Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Proposal ID"
// @Param rating body RatingRequest true "Scores"
// @Success 200 {object} evaluation.Result
// @Failure 400 {object} ErrorResponse "Invalid scores"
// @Failure 403 {object} ErrorResponse "Not allowed to rate this proposal"
// @Failure 409 {object} ErrorResponse "Proposal is not open for rating"
// @Router /review/proposals/{id}/ratings/preview [post]
func (h *RatingHandler) PreviewRating(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RatingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ratingService.Preview(r.Context(), p, id, req.Scores)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// SubmitRating stores the caller's rating and returns the refreshed consensus
// @Summary Submit rating
// @Description Each manager holds one rating per proposal; submitting again replaces it. A 409 with retry=true means a concurrent rating was being stored.
// @Tags Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Proposal ID"
// @Param rating body RatingRequest true "Scores and comment"
// @Success 200 {object} models.RatingOutcome
// @Failure 400 {object} ErrorResponse "Invalid scores"
// @Failure 403 {object} ErrorResponse "Not allowed to rate this proposal"
// @Failure 409 {object} ErrorResponse "Not ratable or concurrent update"
// @Router /review/proposals/{id}/ratings [post]
func (h *RatingHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RatingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.ratingService.Submit(r.Context(), p, id, req.Scores, req.Comment)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, outcome)
}

// ListRatings returns every rating of a proposal
// @Summary List ratings
// @Tags Review
// @Produce json
// @Security BearerAuth
// @Param id path int true "Proposal ID"
// @Success 200 {array} models.Rating
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Failure 404 {object} ErrorResponse "Proposal not found"
// @Router /review/proposals/{id}/ratings [get]
func (h *RatingHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ratings, err := h.ratingService.List(r.Context(), p, id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ratings)
}
