package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"idea-portal/internal/auth"
	"idea-portal/internal/evaluation"
	"idea-portal/internal/models"
)

var fieldKinds = map[models.FieldKind]struct{}{
	models.FieldText:     {},
	models.FieldNumber:   {},
	models.FieldBoolean:  {},
	models.FieldImageRef: {},
	models.FieldDate:     {},
}

// TemplateService manages proposal templates
type TemplateService struct {
	templateRepo TemplateStore
	audit        *AuditService
}

// NewTemplateService creates a new template service
func NewTemplateService(templateRepo TemplateStore, audit *AuditService) *TemplateService {
	return &TemplateService{templateRepo: templateRepo, audit: audit}
}

// CheckTemplate validates a template's schema and returns the total criterion
// weight together with non-fatal warnings. Weights not summing to 100 only warn.
func CheckTemplate(t *models.Template) (float64, []string, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return 0, nil, fmt.Errorf("%w: title is required", evaluation.ErrInvalidInput)
	}

	fieldIDs := make(map[string]struct{}, len(t.Fields))
	for i, f := range t.Fields {
		if strings.TrimSpace(f.ID) == "" {
			return 0, nil, fmt.Errorf("%w: field %d has no id", evaluation.ErrInvalidInput, i+1)
		}
		if _, dup := fieldIDs[f.ID]; dup {
			return 0, nil, fmt.Errorf("%w: duplicate field id %s", evaluation.ErrInvalidInput, f.ID)
		}
		if _, ok := fieldKinds[f.Kind]; !ok {
			return 0, nil, fmt.Errorf("%w: field %s has unknown kind %q", evaluation.ErrInvalidInput, f.ID, f.Kind)
		}
		fieldIDs[f.ID] = struct{}{}
	}

	var warnings []string
	var total float64
	criterionIDs := make(map[string]struct{}, len(t.Criteria))
	for i, c := range t.Criteria {
		if strings.TrimSpace(c.ID) == "" {
			return 0, nil, fmt.Errorf("%w: criterion %d has no id", evaluation.ErrInvalidInput, i+1)
		}
		if _, dup := criterionIDs[c.ID]; dup {
			return 0, nil, fmt.Errorf("%w: duplicate criterion id %s", evaluation.ErrInvalidInput, c.ID)
		}
		if math.IsNaN(c.Weight) || c.Weight < 0 || c.Weight > 100 {
			return 0, nil, fmt.Errorf("%w: criterion %s weight must be between 0 and 100", evaluation.ErrInvalidInput, c.ID)
		}
		criterionIDs[c.ID] = struct{}{}
		total += c.Weight
	}

	if len(t.Criteria) == 0 {
		warnings = append(warnings, "template has no rating criteria; proposals cannot be rated")
	} else if math.Abs(total-100) > 1e-9 {
		warnings = append(warnings, fmt.Sprintf("criterion weights sum to %g instead of 100", total))
	}
	if warnings == nil {
		warnings = []string{}
	}
	return total, warnings, nil
}

// Create validates and stores a new template
func (s *TemplateService) Create(ctx context.Context, p auth.Principal, t *models.Template) (*models.TemplateWithWarnings, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	total, warnings, err := CheckTemplate(t)
	if err != nil {
		return nil, err
	}

	t.CreatedBy = &p.UserID
	if err := s.templateRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, p.UserID, "create", "template", fmt.Sprintf("Created template %d (%s)", t.ID, t.Title))

	return &models.TemplateWithWarnings{Template: *t, WeightTotal: total, Warnings: warnings}, nil
}

// Update replaces a template's content. Ratings already given keep their own detail.
func (s *TemplateService) Update(ctx context.Context, p auth.Principal, t *models.Template) (*models.TemplateWithWarnings, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	total, warnings, err := CheckTemplate(t)
	if err != nil {
		return nil, err
	}

	existing, err := s.templateRepo.GetByID(ctx, t.ID)
	if err != nil {
		return nil, notFound(err, "template")
	}
	t.CreatedBy = existing.CreatedBy
	t.CreatedAt = existing.CreatedAt

	if err := s.templateRepo.Update(ctx, t); err != nil {
		return nil, notFound(err, "template")
	}
	s.audit.Log(ctx, p.UserID, "update", "template", fmt.Sprintf("Updated template %d (%s)", t.ID, t.Title))

	return &models.TemplateWithWarnings{Template: *t, WeightTotal: total, Warnings: warnings}, nil
}

// Get returns one template
func (s *TemplateService) Get(ctx context.Context, id uint) (*models.Template, error) {
	t, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "template")
	}
	return t, nil
}

// List returns templates; inactive ones only for admins
func (s *TemplateService) List(ctx context.Context, p auth.Principal) ([]models.Template, error) {
	return s.templateRepo.List(ctx, !p.IsAdmin())
}
