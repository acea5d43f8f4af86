package evaluation

import (
	"fmt"
	"math"

	"idea-portal/internal/models"
)

// Result is a single rater's evaluation of a proposal
type Result struct {
	Percentage int                     `json:"percentage"`
	Grade      string                  `json:"grade"`
	Detail     []models.CriterionScore `json:"detail"`
}

// roundHalfUp rounds x to the nearest integer, ties away from zero for non-negative input.
// The epsilon absorbs binary representation error such as 79.49999999999999.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5 + 1e-9))
}

func roundOneDecimal(x float64) float64 {
	return math.Floor(x*10+0.5+1e-9) / 10
}

func criterionLabel(c models.Criterion) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// ScoreOne computes the weighted percentage and grade for one rater's scores.
// Weights need not sum to 100; the result is normalized by the maximum possible sum.
func ScoreOne(criteria []models.Criterion, scores map[string]int, policy Policy) (Result, error) {
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}
	if len(criteria) == 0 {
		return Result{}, fmt.Errorf("%w: no criteria", ErrInvalidInput)
	}

	known := make(map[string]struct{}, len(criteria))
	var totalWeight float64
	for _, c := range criteria {
		if c.ID == "" {
			return Result{}, fmt.Errorf("%w: criterion without id", ErrInvalidInput)
		}
		if c.Weight < 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			return Result{}, fmt.Errorf("%w: criterion %s has invalid weight %v", ErrInvalidInput, c.ID, c.Weight)
		}
		if _, dup := known[c.ID]; dup {
			return Result{}, fmt.Errorf("%w: duplicate criterion %s", ErrInvalidInput, c.ID)
		}
		known[c.ID] = struct{}{}
		totalWeight += c.Weight
	}
	if totalWeight <= 0 {
		return Result{}, fmt.Errorf("%w: total criterion weight is zero", ErrInvalidInput)
	}

	for id, s := range scores {
		if _, ok := known[id]; !ok {
			return Result{}, fmt.Errorf("%w: score for unknown criterion %s", ErrInvalidInput, id)
		}
		if s < MinScore || s > MaxScore {
			return Result{}, fmt.Errorf("%w: score %d for criterion %s out of range", ErrInvalidInput, s, id)
		}
	}

	detail := make([]models.CriterionScore, 0, len(criteria))
	var weighted, maxPossible float64
	for _, c := range criteria {
		score, ok := scores[c.ID]
		defaulted := false
		if !ok {
			if policy.MissingScore == 0 {
				return Result{}, fmt.Errorf("%w: missing score for criterion %s", ErrInvalidInput, c.ID)
			}
			score = policy.MissingScore
			defaulted = true
		}

		weighted += float64(score) * c.Weight
		maxPossible += MaxScore * c.Weight
		detail = append(detail, models.CriterionScore{
			CriterionID: c.ID,
			Label:       criterionLabel(c),
			Weight:      c.Weight,
			Score:       score,
			Defaulted:   defaulted,
		})
	}

	percentage := roundHalfUp(100 * weighted / maxPossible)
	return Result{
		Percentage: percentage,
		Grade:      policy.Grade(percentage),
		Detail:     detail,
	}, nil
}
