package evaluation

import (
	"fmt"
	"sort"

	"idea-portal/internal/models"
)

type criterionTally struct {
	id     string
	label  string
	labels map[string]struct{}
	sum    int
	count  int
}

// tally is a commutative accumulator over ratings. Only sums and counts are kept,
// so the folded result does not depend on the order ratings are added.
type tally struct {
	percentageSum int
	count         int
	criteria      map[string]*criterionTally
}

func newTally() *tally {
	return &tally{criteria: make(map[string]*criterionTally)}
}

// criterionKey identifies a criterion by id, or by label for entries stored without one
func criterionKey(d models.CriterionScore) string {
	if d.CriterionID != "" {
		return "id:" + d.CriterionID
	}
	if d.Label != "" {
		return "label:" + d.Label
	}
	return ""
}

func (t *tally) add(r models.Rating) error {
	if r.Percentage < 0 || r.Percentage > 100 {
		return fmt.Errorf("%w: rating from rater %d has percentage %d", ErrInvalidInput, r.RaterID, r.Percentage)
	}
	t.percentageSum += r.Percentage
	t.count++

	seen := make(map[string]struct{}, len(r.Detail))
	for _, d := range r.Detail {
		key := criterionKey(d)
		if key == "" {
			continue
		}
		// a rating contributes at most once per criterion
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		ct, ok := t.criteria[key]
		if !ok {
			ct = &criterionTally{id: d.CriterionID, label: d.Label, labels: make(map[string]struct{})}
			t.criteria[key] = ct
		}
		if d.Label != "" {
			ct.labels[d.Label] = struct{}{}
		}
		// renamed criteria keep the smallest label so the result is order-independent
		if ct.label == "" || (d.Label != "" && d.Label < ct.label) {
			ct.label = d.Label
		}
		ct.sum += d.Score
		ct.count++
	}
	return nil
}

// mergeLabelOnly folds entries that carry only a label into the criterion with an id
// known under that label. Labels shared by several ids stay separate.
func (t *tally) mergeLabelOnly() {
	owners := make(map[string][]*criterionTally)
	for _, ct := range t.criteria {
		if ct.id == "" {
			continue
		}
		for label := range ct.labels {
			owners[label] = append(owners[label], ct)
		}
	}
	for key, ct := range t.criteria {
		if ct.id != "" || len(owners[ct.label]) != 1 {
			continue
		}
		owner := owners[ct.label][0]
		owner.sum += ct.sum
		owner.count += ct.count
		delete(t.criteria, key)
	}
}

// Aggregate computes the consensus across all ratings of a proposal.
// ComputedAt is left zero for the caller to stamp.
func Aggregate(ratings []models.Rating, policy Policy) (models.RatingSummary, error) {
	if len(ratings) == 0 {
		return models.RatingSummary{}, fmt.Errorf("%w: no ratings to aggregate", ErrInvalidInput)
	}
	if err := policy.Validate(); err != nil {
		return models.RatingSummary{}, err
	}

	acc := newTally()
	for _, r := range ratings {
		if err := acc.add(r); err != nil {
			return models.RatingSummary{}, err
		}
	}

	acc.mergeLabelOnly()

	percentage := roundHalfUp(float64(acc.percentageSum) / float64(acc.count))

	perCriterion := make([]models.CriterionAverage, 0, len(acc.criteria))
	for _, ct := range acc.criteria {
		perCriterion = append(perCriterion, models.CriterionAverage{
			CriterionID: ct.id,
			Label:       ct.label,
			Average:     roundOneDecimal(float64(ct.sum) / float64(ct.count)),
			Raters:      ct.count,
		})
	}
	sort.Slice(perCriterion, func(i, j int) bool {
		if perCriterion[i].Label != perCriterion[j].Label {
			return perCriterion[i].Label < perCriterion[j].Label
		}
		return perCriterion[i].CriterionID < perCriterion[j].CriterionID
	})

	return models.RatingSummary{
		Percentage:   percentage,
		Grade:        policy.Grade(percentage),
		Count:        acc.count,
		PerCriterion: perCriterion,
	}, nil
}

// UpsertRating replaces any rating by the same rater with r
func UpsertRating(existing []models.Rating, r models.Rating) []models.Rating {
	out := make([]models.Rating, 0, len(existing)+1)
	for _, e := range existing {
		if e.RaterID == r.RaterID {
			continue
		}
		out = append(out, e)
	}
	return append(out, r)
}
