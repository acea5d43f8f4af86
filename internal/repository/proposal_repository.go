package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"idea-portal/internal/database"
	"idea-portal/internal/models"
)

// ProposalRepository handles proposal persistence
type ProposalRepository struct {
	db *sql.DB
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *sql.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, code, template_id, author_id, author_name, title, category, form_data,
	status, previous_status, cover_image, collaboration_group_id, rating_summary,
	duplicate_check, duplicate, created_at, updated_at, submitted_at, decided_at,
	published_at, archived_at`

func scanProposal(row interface{ Scan(...any) error }) (*models.Proposal, error) {
	p := &models.Proposal{}
	var formData, summary, duplicate []byte
	if err := row.Scan(
		&p.ID,
		&p.Code,
		&p.TemplateID,
		&p.AuthorID,
		&p.AuthorName,
		&p.Title,
		&p.Category,
		&formData,
		&p.Status,
		&p.PreviousStatus,
		&p.CoverImage,
		&p.CollaborationGroupID,
		&summary,
		&p.DuplicateCheck,
		&duplicate,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.SubmittedAt,
		&p.DecidedAt,
		&p.PublishedAt,
		&p.ArchivedAt,
	); err != nil {
		return nil, err
	}

	if err := fromJSON(formData, &p.FormData); err != nil {
		return nil, err
	}
	if p.FormData == nil {
		p.FormData = models.FormData{}
	}

	var err error
	if p.RatingSummary, err = fromNullableJSON[models.RatingSummary](summary); err != nil {
		return nil, err
	}
	if p.Duplicate, err = fromNullableJSON[models.DuplicateVerdict](duplicate); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProposalRepository) queryList(ctx context.Context, query string, args ...any) ([]models.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	proposals := []models.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// rowQuerier is satisfied by *sql.DB and *sql.Tx
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Create inserts a proposal. ErrDuplicateCode is returned when the code is taken.
func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal) error {
	return insertProposal(ctx, r.db, p)
}

// CreateLinked claims groupID on the target proposal and inserts p into the group
// the target ends up in. Both happen in one transaction, so a failed insert leaves
// the target untouched.
func (r *ProposalRepository) CreateLinked(ctx context.Context, p *models.Proposal, targetID uint, groupID string) error {
	return database.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		stored, err := claimGroup(ctx, tx, targetID, groupID)
		if err != nil {
			return err
		}
		p.CollaborationGroupID = &stored
		return insertProposal(ctx, tx, p)
	})
}

func insertProposal(ctx context.Context, q rowQuerier, p *models.Proposal) error {
	formData, err := toJSON(p.FormData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO proposals (code, template_id, author_id, author_name, title, category, form_data,
		                       status, cover_image, collaboration_group_id, duplicate_check,
		                       created_at, updated_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	now := time.Now()
	if p.DuplicateCheck == "" {
		p.DuplicateCheck = models.DuplicateCheckPending
	}
	err = q.QueryRowContext(ctx, query,
		p.Code,
		p.TemplateID,
		p.AuthorID,
		p.AuthorName,
		p.Title,
		p.Category,
		formData,
		p.Status,
		p.CoverImage,
		p.CollaborationGroupID,
		p.DuplicateCheck,
		now,
		now,
		p.SubmittedAt,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetByID retrieves a proposal by id
func (r *ProposalRepository) GetByID(ctx context.Context, id uint) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	p, err := scanProposal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// GetByCode retrieves a proposal by its public code
func (r *ProposalRepository) GetByCode(ctx context.Context, code string) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE code = $1`

	p, err := scanProposal(r.db.QueryRowContext(ctx, query, strings.ToUpper(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal by code: %w", err)
	}
	return p, nil
}

// List returns proposals matching filter, newest first
func (r *ProposalRepository) List(ctx context.Context, filter models.ProposalFilter) ([]models.Proposal, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argPos))
		args = append(args, filter.Category)
		argPos++
	}
	if filter.AuthorID != nil {
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", argPos))
		args = append(args, *filter.AuthorID)
		argPos++
	}

	query := `SELECT ` + proposalColumns + ` FROM proposals`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)

	return r.queryList(ctx, query, args...)
}

// ListByGroup returns the members of a collaboration group ordered by id
func (r *ProposalRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE collaboration_group_id = $1 ORDER BY id`
	return r.queryList(ctx, query, groupID)
}

// ListRecentByCategory returns the newest non-draft proposals of a category, excluding one id
func (r *ProposalRepository) ListRecentByCategory(ctx context.Context, category string, excludeID uint, limit int) ([]models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE category = $1 AND id <> $2 AND status <> 'draft'
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	return r.queryList(ctx, query, category, excludeID, limit)
}

// ListByDuplicateCheck returns proposals in a duplicate check state, oldest first
func (r *ProposalRepository) ListByDuplicateCheck(ctx context.Context, state string, limit int) ([]models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE duplicate_check = $1 AND status <> 'draft'
		ORDER BY created_at, id
		LIMIT $2
	`
	return r.queryList(ctx, query, state, limit)
}

// UpdateContent replaces the author-editable fields
func (r *ProposalRepository) UpdateContent(ctx context.Context, p *models.Proposal) error {
	formData, err := toJSON(p.FormData)
	if err != nil {
		return err
	}

	query := `
		UPDATE proposals
		SET title = $1, category = $2, form_data = $3, cover_image = $4, updated_at = $5
		WHERE id = $6
	`

	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, p.Title, p.Category, formData, p.CoverImage, now, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

// UpdateStatus moves a proposal from expected to p.Status. ErrStatusChanged is
// returned when the stored status no longer matches expected.
func (r *ProposalRepository) UpdateStatus(ctx context.Context, p *models.Proposal, expected string) error {
	query := `
		UPDATE proposals
		SET status = $1, previous_status = $2, submitted_at = $3, decided_at = $4,
		    published_at = $5, archived_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9
	`

	now := time.Now()
	res, err := r.db.ExecContext(ctx, query,
		p.Status, p.PreviousStatus, p.SubmittedAt, p.DecidedAt, p.PublishedAt, p.ArchivedAt, now,
		p.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	p.UpdatedAt = now
	return nil
}

// claimGroup sets the collaboration group of an ungrouped proposal and returns the
// group id now stored. When another writer got there first their id is returned.
func claimGroup(ctx context.Context, q rowQuerier, proposalID uint, groupID string) (string, error) {
	query := `
		UPDATE proposals
		SET collaboration_group_id = $2, updated_at = $3
		WHERE id = $1 AND collaboration_group_id IS NULL
		RETURNING collaboration_group_id
	`

	var stored string
	err := q.QueryRowContext(ctx, query, proposalID, groupID, time.Now()).Scan(&stored)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to claim collaboration group: %w", err)
	}

	var existing sql.NullString
	err = q.QueryRowContext(ctx, `SELECT collaboration_group_id FROM proposals WHERE id = $1`, proposalID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read collaboration group: %w", err)
	}
	if !existing.Valid {
		return "", fmt.Errorf("collaboration group claim on proposal %d was not applied", proposalID)
	}
	return existing.String, nil
}

// SetDuplicateResult stores the advisory duplicate judgment
func (r *ProposalRepository) SetDuplicateResult(ctx context.Context, proposalID uint, state string, verdict *models.DuplicateVerdict) error {
	data, err := toNullableJSON(verdict)
	if err != nil {
		return err
	}

	query := `UPDATE proposals SET duplicate_check = $1, duplicate = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, state, data, time.Now(), proposalID); err != nil {
		return fmt.Errorf("failed to store duplicate result: %w", err)
	}
	return nil
}

// ListAwaitingRating returns submitted proposals waiting since before `before`, with their rating count
func (r *ProposalRepository) ListAwaitingRating(ctx context.Context, before time.Time) ([]models.PendingReviewItem, error) {
	query := `
		SELECT p.id, p.code, p.title, p.author_name, p.submitted_at, COUNT(ra.id)
		FROM proposals p
		LEFT JOIN ratings ra ON ra.proposal_id = p.id
		WHERE p.status = 'submitted' AND p.submitted_at IS NOT NULL AND p.submitted_at <= $1
		GROUP BY p.id
		ORDER BY p.submitted_at
	`

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals awaiting rating: %w", err)
	}
	defer rows.Close()

	items := []models.PendingReviewItem{}
	for rows.Next() {
		var item models.PendingReviewItem
		if err := rows.Scan(&item.ProposalID, &item.Code, &item.Title, &item.AuthorName, &item.SubmittedAt, &item.RatingCount); err != nil {
			return nil, fmt.Errorf("failed to scan pending proposal: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
