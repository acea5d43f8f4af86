package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"idea-portal/internal/database"
	"idea-portal/internal/models"
)

// AggregateFunc recomputes a proposal's consensus from its complete rating list
type AggregateFunc func(ratings []models.Rating) (models.RatingSummary, error)

// RatingRepository handles rating persistence
type RatingRepository struct {
	db *sql.DB
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

const ratingColumns = `id, proposal_id, rater_id, rater_name, detail, percentage, grade, comment, comment_ciphertext, created_at, updated_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRatings(ctx context.Context, q queryer, proposalID uint) ([]models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE proposal_id = $1 ORDER BY rater_id`

	rows, err := q.QueryContext(ctx, query, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	ratings := []models.Rating{}
	for rows.Next() {
		var r models.Rating
		var detail []byte
		if err := rows.Scan(
			&r.ID,
			&r.ProposalID,
			&r.RaterID,
			&r.RaterName,
			&detail,
			&r.Percentage,
			&r.Grade,
			&r.Comment,
			&r.CommentCiphertext,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		if err := fromJSON(detail, &r.Detail); err != nil {
			return nil, err
		}
		if r.Detail == nil {
			r.Detail = []models.CriterionScore{}
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// ListByProposal returns every rating of a proposal ordered by rater
func (r *RatingRepository) ListByProposal(ctx context.Context, proposalID uint) ([]models.Rating, error) {
	return listRatings(ctx, r.db, proposalID)
}

// UpsertAndAggregate stores rating as the rater's only rating for its proposal and
// refreshes the proposal's summary in the same transaction. The proposal row is locked
// first, so concurrent raters are serialized and aggregate always sees the full list.
func (r *RatingRepository) UpsertAndAggregate(ctx context.Context, rating *models.Rating, aggregate AggregateFunc) (models.RatingSummary, error) {
	detail, err := toJSON(rating.Detail)
	if err != nil {
		return models.RatingSummary{}, err
	}

	var summary models.RatingSummary
	err = database.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		// lock waits past this surface as 55P03
		if _, err := tx.ExecContext(ctx, `SET LOCAL lock_timeout = '5s'`); err != nil {
			return err
		}

		var lockedID uint
		err := tx.QueryRowContext(ctx, `SELECT id FROM proposals WHERE id = $1 FOR UPDATE`, rating.ProposalID).Scan(&lockedID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		upsert := `
			INSERT INTO ratings (proposal_id, rater_id, rater_name, detail, percentage, grade, comment,
			                     comment_ciphertext, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			ON CONFLICT (proposal_id, rater_id) DO UPDATE
			SET rater_name = EXCLUDED.rater_name,
			    detail = EXCLUDED.detail,
			    percentage = EXCLUDED.percentage,
			    grade = EXCLUDED.grade,
			    comment = EXCLUDED.comment,
			    comment_ciphertext = EXCLUDED.comment_ciphertext,
			    updated_at = EXCLUDED.updated_at
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowContext(ctx, upsert,
			rating.ProposalID,
			rating.RaterID,
			rating.RaterName,
			detail,
			rating.Percentage,
			rating.Grade,
			rating.Comment,
			rating.CommentCiphertext,
			time.Now(),
		).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt); err != nil {
			return err
		}

		all, err := listRatings(ctx, tx, rating.ProposalID)
		if err != nil {
			return err
		}

		summary, err = aggregate(all)
		if err != nil {
			return err
		}
		summary.ComputedAt = time.Now()

		encoded, err := toJSON(summary)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE proposals SET rating_summary = $1, updated_at = $2 WHERE id = $3`,
			encoded, summary.ComputedAt, rating.ProposalID,
		)
		return err
	})

	if err != nil {
		if isConflict(err) {
			return models.RatingSummary{}, fmt.Errorf("%w: %v", ErrAggregationConflict, err)
		}
		if errors.Is(err, ErrNotFound) {
			return models.RatingSummary{}, err
		}
		return models.RatingSummary{}, fmt.Errorf("failed to upsert rating: %w", err)
	}
	return summary, nil
}
