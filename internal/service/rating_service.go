package service

import (
	"context"
	"errors"
	"fmt"

	"idea-portal/internal/auth"
	"idea-portal/internal/evaluation"
	"idea-portal/internal/models"
	"idea-portal/internal/workflow"
)

// ErrNotRatable is returned when a proposal's status does not accept ratings
var ErrNotRatable = errors.New("proposal is not open for rating")

// RatingService scores proposals and keeps their consensus current
type RatingService struct {
	proposalRepo ProposalStore
	templateRepo TemplateStore
	ratingRepo   RatingStore
	sealer       CommentSealer
	policy       evaluation.Policy
	audit        *AuditService
}

// NewRatingService creates a new rating service. With a nil sealer comments are stored as plain text.
func NewRatingService(
	proposalRepo ProposalStore,
	templateRepo TemplateStore,
	ratingRepo RatingStore,
	sealer CommentSealer,
	policy evaluation.Policy,
	audit *AuditService,
) *RatingService {
	return &RatingService{
		proposalRepo: proposalRepo,
		templateRepo: templateRepo,
		ratingRepo:   ratingRepo,
		sealer:       sealer,
		policy:       policy,
		audit:        audit,
	}
}

// Policy returns the scoring policy in effect
func (s *RatingService) Policy() evaluation.Policy {
	return s.policy
}

// rateable loads a proposal p may rate together with its template
func (s *RatingService) rateable(ctx context.Context, p auth.Principal, proposalID uint) (*models.Proposal, *models.Template, error) {
	if !p.HasRole(models.RoleManager) {
		return nil, nil, fmt.Errorf("%w: only managers rate proposals", ErrForbidden)
	}

	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, nil, notFound(err, "proposal")
	}
	if proposal.AuthorID == p.UserID {
		return nil, nil, fmt.Errorf("%w: cannot rate your own proposal", ErrForbidden)
	}
	if !workflow.IsRatable(proposal.Status) {
		return nil, nil, fmt.Errorf("%w: status %s", ErrNotRatable, proposal.Status)
	}

	tpl, err := s.templateRepo.GetByID(ctx, proposal.TemplateID)
	if err != nil {
		return nil, nil, notFound(err, "template")
	}
	return proposal, tpl, nil
}

// Preview scores without storing anything
func (s *RatingService) Preview(ctx context.Context, p auth.Principal, proposalID uint, scores map[string]int) (evaluation.Result, error) {
	_, tpl, err := s.rateable(ctx, p, proposalID)
	if err != nil {
		return evaluation.Result{}, err
	}
	return evaluation.ScoreOne(tpl.Criteria, scores, s.policy)
}

// Submit stores p's rating, replacing any earlier one, and returns the refreshed consensus
func (s *RatingService) Submit(ctx context.Context, p auth.Principal, proposalID uint, scores map[string]int, comment string) (*models.RatingOutcome, error) {
	proposal, tpl, err := s.rateable(ctx, p, proposalID)
	if err != nil {
		return nil, err
	}

	result, err := evaluation.ScoreOne(tpl.Criteria, scores, s.policy)
	if err != nil {
		return nil, err
	}

	rating := models.Rating{
		ProposalID: proposal.ID,
		RaterID:    p.UserID,
		RaterName:  p.Name,
		Detail:     result.Detail,
		Percentage: result.Percentage,
		Grade:      result.Grade,
		Comment:    comment,
	}
	if s.sealer != nil && comment != "" {
		sealed, err := s.sealer.SealComment(ctx, proposal.ID, p.UserID, comment)
		if err != nil {
			return nil, fmt.Errorf("failed to seal comment: %w", err)
		}
		rating.CommentCiphertext = &sealed
		rating.Comment = ""
	}

	summary, err := s.ratingRepo.UpsertAndAggregate(ctx, &rating, func(all []models.Rating) (models.RatingSummary, error) {
		return evaluation.Aggregate(all, s.policy)
	})
	if err != nil {
		return nil, notFound(err, "proposal")
	}
	rating.Comment = comment

	s.audit.Log(ctx, p.UserID, "rate", "proposal",
		fmt.Sprintf("Rated proposal %s: %d%% (%s)", proposal.Code, rating.Percentage, rating.Grade))

	return &models.RatingOutcome{Rating: rating, Summary: summary}, nil
}

// List returns every rating of a proposal with comments opened
func (s *RatingService) List(ctx context.Context, p auth.Principal, proposalID uint) ([]models.Rating, error) {
	if !p.IsReviewer() {
		return nil, fmt.Errorf("%w: only reviewers can read ratings", ErrForbidden)
	}
	if _, err := s.proposalRepo.GetByID(ctx, proposalID); err != nil {
		return nil, notFound(err, "proposal")
	}

	ratings, err := s.ratingRepo.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	for i := range ratings {
		r := &ratings[i]
		if r.CommentCiphertext == nil || s.sealer == nil {
			continue
		}
		comment, err := s.sealer.OpenComment(ctx, r.ProposalID, r.RaterID, *r.CommentCiphertext)
		if err != nil {
			return nil, fmt.Errorf("failed to open comment of rater %d: %w", r.RaterID, err)
		}
		r.Comment = comment
	}
	return ratings, nil
}
