package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"idea-portal/internal/models"
)

// TemplateRepository handles proposal template persistence
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, title, description, fields, criteria, is_active, created_by, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*models.Template, error) {
	t := &models.Template{}
	var fields, criteria []byte
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&fields,
		&criteria,
		&t.IsActive,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := fromJSON(fields, &t.Fields); err != nil {
		return nil, err
	}
	if err := fromJSON(criteria, &t.Criteria); err != nil {
		return nil, err
	}
	if t.Fields == nil {
		t.Fields = []models.TemplateField{}
	}
	if t.Criteria == nil {
		t.Criteria = []models.Criterion{}
	}
	return t, nil
}

// Create inserts a template
func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	fields, err := toJSON(t.Fields)
	if err != nil {
		return err
	}
	criteria, err := toJSON(t.Criteria)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO templates (title, description, fields, criteria, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	if err := r.db.QueryRowContext(ctx, query,
		t.Title, t.Description, fields, criteria, t.IsActive, t.CreatedBy, now, now,
	).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// Update replaces a template's content. Existing ratings keep their recorded detail.
func (r *TemplateRepository) Update(ctx context.Context, t *models.Template) error {
	fields, err := toJSON(t.Fields)
	if err != nil {
		return err
	}
	criteria, err := toJSON(t.Criteria)
	if err != nil {
		return err
	}

	query := `
		UPDATE templates
		SET title = $1, description = $2, fields = $3, criteria = $4, is_active = $5, updated_at = $6
		WHERE id = $7
	`

	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, t.Title, t.Description, fields, criteria, t.IsActive, now, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	t.UpdatedAt = now
	return nil
}

// GetByID retrieves a template
func (r *TemplateRepository) GetByID(ctx context.Context, id uint) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = $1`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// List returns templates ordered by title
func (r *TemplateRepository) List(ctx context.Context, activeOnly bool) ([]models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE ($1 = FALSE OR is_active = TRUE) ORDER BY title, id`

	rows, err := r.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []models.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}
