package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"idea-portal/internal/auth"
	"idea-portal/internal/evaluation"
	"idea-portal/internal/linkage"
	"idea-portal/internal/models"
	"idea-portal/internal/repository"
	"idea-portal/internal/workflow"
)

const codeAttempts = 5

// ProposalInput is the author-supplied content of a proposal
type ProposalInput struct {
	TemplateID      uint
	Title           string
	Category        string
	FormData        models.FormData
	CoverImage      *string
	LinkedReference string
	Submit          bool
}

// ProposalService handles proposal submission, editing and the status workflow
type ProposalService struct {
	proposalRepo ProposalStore
	templateRepo TemplateStore
	userRepo     UserStore
	screener     *DuplicateScreener
	notifier     StatusNotifier
	audit        *AuditService

	// overridable in tests
	newCode    func() string
	newGroupID func() string

	background sync.WaitGroup
}

// NewProposalService creates a new proposal service. screener and notifier may be nil.
func NewProposalService(
	proposalRepo ProposalStore,
	templateRepo TemplateStore,
	userRepo UserStore,
	screener *DuplicateScreener,
	notifier StatusNotifier,
	audit *AuditService,
) *ProposalService {
	return &ProposalService{
		proposalRepo: proposalRepo,
		templateRepo: templateRepo,
		userRepo:     userRepo,
		screener:     screener,
		notifier:     notifier,
		audit:        audit,
		newCode:      linkage.NewCode,
		newGroupID:   linkage.NewGroupID,
	}
}

// Wait blocks until background screening and notifications have finished
func (s *ProposalService) Wait() {
	s.background.Wait()
}

// validateFormData checks values against the template schema by field id.
// Required fields are only enforced when complete is set.
func validateFormData(tpl *models.Template, data models.FormData, complete bool) error {
	for id, v := range data {
		field, ok := tpl.FieldByID(id)
		if !ok {
			return fmt.Errorf("%w: unknown field %s", evaluation.ErrInvalidInput, id)
		}
		if v.Kind == "" {
			v.Kind = field.Kind
			data[id] = v
		}
		if v.Kind != field.Kind {
			return fmt.Errorf("%w: field %s expects %s, got %s", evaluation.ErrInvalidInput, id, field.Kind, v.Kind)
		}
		switch field.Kind {
		case models.FieldNumber:
			if v.Number != nil && (math.IsNaN(*v.Number) || math.IsInf(*v.Number, 0)) {
				return fmt.Errorf("%w: field %s is not a finite number", evaluation.ErrInvalidInput, id)
			}
		case models.FieldDate:
			if v.Text != "" {
				if _, err := time.Parse(time.DateOnly, v.Text); err != nil {
					return fmt.Errorf("%w: field %s is not a date (YYYY-MM-DD)", evaluation.ErrInvalidInput, id)
				}
			}
		}
	}

	if !complete {
		return nil
	}
	for _, f := range tpl.Fields {
		if f.Required && !hasValue(data[f.ID]) {
			return fmt.Errorf("%w: field %s is required", evaluation.ErrInvalidInput, f.ID)
		}
	}
	return nil
}

func hasValue(v models.FieldValue) bool {
	switch v.Kind {
	case models.FieldNumber:
		return v.Number != nil
	case models.FieldBoolean:
		return v.Bool != nil
	case models.FieldImageRef:
		return v.ImageRef != ""
	case models.FieldText, models.FieldDate:
		return strings.TrimSpace(v.Text) != ""
	}
	return false
}

// lookup resolves link targets the caller may see. Hidden drafts read as missing.
func (s *ProposalService) lookup(ctx context.Context, p auth.Principal) linkage.Lookup {
	return func(id uint, code string) (*models.Proposal, error) {
		var target *models.Proposal
		var err error
		if id != 0 {
			target, err = s.proposalRepo.GetByID(ctx, id)
		} else {
			target, err = s.proposalRepo.GetByCode(ctx, code)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !canView(p, target) {
			return nil, nil
		}
		return target, nil
	}
}

// resolveGroup turns a linked reference into the group the new proposal joins.
// A non-nil claim means the target has no group yet and the minted id must be
// claimed together with the insert.
func (s *ProposalService) resolveGroup(ctx context.Context, p auth.Principal, ref string) (*string, *linkage.GroupWrite, error) {
	res, err := linkage.Resolve(ref, s.lookup(ctx, p), s.newGroupID)
	if err != nil {
		return nil, nil, err
	}
	if !res.HasGroup() {
		return nil, nil, nil
	}
	return &res.GroupID, res.Write, nil
}

// insert stores proposal under a fresh code, claiming the link target's group in
// the same transaction when needed. Taken codes are retried.
func (s *ProposalService) insert(ctx context.Context, proposal *models.Proposal, claim *linkage.GroupWrite) error {
	var err error
	for attempt := 1; ; attempt++ {
		proposal.Code = s.newCode()
		if claim != nil {
			err = s.proposalRepo.CreateLinked(ctx, proposal, claim.TargetID, claim.GroupID)
		} else {
			err = s.proposalRepo.Create(ctx, proposal)
		}
		if !errors.Is(err, repository.ErrDuplicateCode) || attempt == codeAttempts {
			break
		}
	}
	if claim != nil && errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: linked proposal %d", linkage.ErrLinkTargetNotFound, claim.TargetID)
	}
	return err
}

// Create stores a new proposal as draft, or submits it right away
func (s *ProposalService) Create(ctx context.Context, p auth.Principal, in ProposalInput) (*models.Proposal, error) {
	if !p.HasAnyRole(models.RoleEmployee, models.RoleAdmin) {
		return nil, ErrForbidden
	}

	tpl, err := s.templateRepo.GetByID(ctx, in.TemplateID)
	if err != nil {
		return nil, notFound(err, "template")
	}
	if !tpl.IsActive {
		return nil, fmt.Errorf("%w: template %d is not active", evaluation.ErrInvalidInput, tpl.ID)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", evaluation.ErrInvalidInput)
	}
	if in.FormData == nil {
		in.FormData = models.FormData{}
	}
	if err := validateFormData(tpl, in.FormData, in.Submit); err != nil {
		return nil, err
	}

	status := models.StatusDraft
	if in.Submit {
		status = models.StatusSubmitted
	}
	if !workflow.IsEntryState(status) {
		return nil, fmt.Errorf("%w: cannot create a proposal in %s", workflow.ErrInvalidTransition, status)
	}

	groupID, claim, err := s.resolveGroup(ctx, p, in.LinkedReference)
	if err != nil {
		return nil, err
	}

	proposal := &models.Proposal{
		TemplateID:           tpl.ID,
		AuthorID:             p.UserID,
		AuthorName:           p.Name,
		Title:                title,
		Category:             strings.TrimSpace(in.Category),
		FormData:             in.FormData,
		Status:               status,
		CoverImage:           in.CoverImage,
		CollaborationGroupID: groupID,
		DuplicateCheck:       models.DuplicateCheckPending,
	}
	if status == models.StatusSubmitted {
		proposal.SubmittedAt = ptr(time.Now())
	}

	if err := s.insert(ctx, proposal, claim); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, p.UserID, "create", "proposal",
		fmt.Sprintf("Created proposal %s (ID: %d) as %s", proposal.Code, proposal.ID, status))

	if status == models.StatusSubmitted {
		s.screenAsync(ctx, *proposal)
	}
	return proposal, nil
}

func canView(p auth.Principal, proposal *models.Proposal) bool {
	return proposal.Status != models.StatusDraft || proposal.AuthorID == p.UserID || p.IsAdmin()
}

// Get resolves a numeric id or a public code
func (s *ProposalService) Get(ctx context.Context, p auth.Principal, ref string) (*models.Proposal, error) {
	id, code := linkage.ParseReference(ref)
	var proposal *models.Proposal
	var err error
	switch {
	case id != 0:
		proposal, err = s.proposalRepo.GetByID(ctx, id)
	case code != "":
		proposal, err = s.proposalRepo.GetByCode(ctx, code)
	default:
		return nil, fmt.Errorf("%w: proposal", ErrNotFound)
	}
	if err != nil {
		return nil, notFound(err, "proposal")
	}
	if !canView(p, proposal) {
		return nil, fmt.Errorf("%w: proposal", ErrNotFound)
	}
	return proposal, nil
}

// List returns the proposals visible to p; other people's drafts are hidden
func (s *ProposalService) List(ctx context.Context, p auth.Principal, filter models.ProposalFilter) ([]models.Proposal, error) {
	if filter.Status != "" && !workflow.IsKnown(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %s", evaluation.ErrInvalidInput, filter.Status)
	}
	all, err := s.proposalRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	visible := make([]models.Proposal, 0, len(all))
	for i := range all {
		if canView(p, &all[i]) {
			visible = append(visible, all[i])
		}
	}
	return visible, nil
}

// Clusters groups the visible proposals by collaboration group
func (s *ProposalService) Clusters(ctx context.Context, p auth.Principal, filter models.ProposalFilter) (models.ProposalClusters, error) {
	proposals, err := s.List(ctx, p, filter)
	if err != nil {
		return models.ProposalClusters{}, err
	}
	return linkage.Cluster(proposals), nil
}

// ProposalUpdate is the editable content of a proposal
type ProposalUpdate struct {
	Title      string
	Category   string
	FormData   models.FormData
	CoverImage *string
}

// UpdateFormData lets the author edit a draft or a proposal sent back for revision
func (s *ProposalService) UpdateFormData(ctx context.Context, p auth.Principal, id uint, in ProposalUpdate) (*models.Proposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "proposal")
	}
	if proposal.AuthorID != p.UserID {
		return nil, fmt.Errorf("%w: only the author can edit a proposal", ErrForbidden)
	}
	if !workflow.IsEditable(proposal.Status) {
		return nil, fmt.Errorf("%w: proposal in status %s cannot be edited", workflow.ErrInvalidTransition, proposal.Status)
	}

	tpl, err := s.templateRepo.GetByID(ctx, proposal.TemplateID)
	if err != nil {
		return nil, notFound(err, "template")
	}
	if in.FormData == nil {
		in.FormData = models.FormData{}
	}
	if err := validateFormData(tpl, in.FormData, false); err != nil {
		return nil, err
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		proposal.Title = title
	}
	proposal.Category = strings.TrimSpace(in.Category)
	proposal.FormData = in.FormData
	proposal.CoverImage = in.CoverImage

	if err := s.proposalRepo.UpdateContent(ctx, proposal); err != nil {
		return nil, notFound(err, "proposal")
	}
	s.audit.Log(ctx, p.UserID, "update", "proposal", fmt.Sprintf("Updated proposal %s", proposal.Code))
	return proposal, nil
}

// authorArrow reports whether the move is one only the author (or an admin) takes
func authorArrow(from, to string) bool {
	return to == models.StatusSubmitted && workflow.IsEditable(from)
}

// checkOwnership applies the rules the transition table cannot express:
// authors resubmit only their own proposals and reviewers never decide their own.
func checkOwnership(p auth.Principal, proposal *models.Proposal, to string) error {
	if p.IsAdmin() {
		return nil
	}
	own := proposal.AuthorID == p.UserID
	if authorArrow(proposal.Status, to) && !own {
		return fmt.Errorf("%w: only the author can submit this proposal", ErrForbidden)
	}
	if !authorArrow(proposal.Status, to) && own {
		return fmt.Errorf("%w: cannot decide on your own proposal", ErrForbidden)
	}
	return nil
}

// ChangeStatus moves a proposal along the workflow
func (s *ProposalService) ChangeStatus(ctx context.Context, p auth.Principal, id uint, to string) (*models.Proposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "proposal")
	}
	if !canView(p, proposal) {
		return nil, fmt.Errorf("%w: proposal", ErrNotFound)
	}

	from := proposal.Status
	if err := workflow.TransitionAny(from, to, p.Roles); err != nil {
		return nil, err
	}
	if err := checkOwnership(p, proposal, to); err != nil {
		return nil, err
	}

	if to == models.StatusSubmitted {
		tpl, err := s.templateRepo.GetByID(ctx, proposal.TemplateID)
		if err != nil {
			return nil, notFound(err, "template")
		}
		if err := validateFormData(tpl, proposal.FormData, true); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	proposal.PreviousStatus = ptr(from)
	proposal.Status = to
	switch to {
	case models.StatusSubmitted:
		proposal.SubmittedAt = &now
	case models.StatusApproved, models.StatusRejected:
		proposal.DecidedAt = &now
	case models.StatusPublished:
		proposal.PublishedAt = &now
	case models.StatusArchived:
		proposal.ArchivedAt = &now
	}

	if err := s.proposalRepo.UpdateStatus(ctx, proposal, from); err != nil {
		return nil, notFound(err, "proposal")
	}

	s.audit.Log(ctx, p.UserID, "status_change", "proposal",
		fmt.Sprintf("Proposal %s: %s -> %s", proposal.Code, from, to))

	if proposal.AuthorID != p.UserID {
		s.notifyAsync(ctx, *proposal, from, to)
	}
	if to == models.StatusSubmitted && proposal.DuplicateCheck != models.DuplicateCheckDone {
		s.screenAsync(ctx, *proposal)
	}
	return proposal, nil
}

// AllowedTransitions lists the statuses p may move the proposal to
func (s *ProposalService) AllowedTransitions(ctx context.Context, p auth.Principal, id uint) ([]string, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "proposal")
	}
	if !canView(p, proposal) {
		return nil, fmt.Errorf("%w: proposal", ErrNotFound)
	}

	next := []string{}
	for _, to := range workflow.Allowed(proposal.Status, p.Roles...) {
		if checkOwnership(p, proposal, to) == nil {
			next = append(next, to)
		}
	}
	return next, nil
}

func (s *ProposalService) notifyAsync(ctx context.Context, proposal models.Proposal, from, to string) {
	if s.notifier == nil || s.userRepo == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		author, err := s.userRepo.GetByID(ctx, proposal.AuthorID)
		if err != nil {
			slog.Warn("Failed to load author for notification", "proposal_id", proposal.ID, "error", err)
			return
		}
		if err := s.notifier.SendStatusChangeNotification(author.Email, author.FullName(), &proposal, from, to); err != nil {
			slog.Warn("Failed to send status notification", "proposal_id", proposal.ID, "error", err)
		}
	}()
}

// screenAsync runs the duplicate check without holding up the caller
func (s *ProposalService) screenAsync(ctx context.Context, proposal models.Proposal) {
	if s.screener == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Duplicate screening panicked", "proposal_id", proposal.ID, "panic", r)
			}
		}()
		s.Rescreen(ctx, &proposal)
	}()
}

// Rescreen runs the duplicate check for proposal and stores its advisory result.
// It returns the stored duplicate check state.
func (s *ProposalService) Rescreen(ctx context.Context, proposal *models.Proposal) string {
	if s.screener == nil {
		return proposal.DuplicateCheck
	}

	state := models.DuplicateCheckUnavailable
	verdict, ok := s.screener.Check(ctx, proposal)
	var stored *models.DuplicateVerdict
	if ok {
		state = models.DuplicateCheckDone
		stored = &verdict
	}

	if err := s.proposalRepo.SetDuplicateResult(ctx, proposal.ID, state, stored); err != nil {
		slog.Warn("Failed to store duplicate check result", "proposal_id", proposal.ID, "error", err)
		return proposal.DuplicateCheck
	}
	proposal.DuplicateCheck = state
	proposal.Duplicate = stored
	return state
}
