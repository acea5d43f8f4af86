package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"idea-portal/internal/models"
	"idea-portal/internal/repository"
	"idea-portal/internal/testutil"
)

func newProposal(t *testing.T, repo *repository.ProposalRepository, f *testutil.Fixtures, code, status string) *models.Proposal {
	t.Helper()
	p := &models.Proposal{
		Code:       code,
		TemplateID: f.Template.ID,
		AuthorID:   f.Employee.ID,
		AuthorName: f.Employee.FullName(),
		Title:      "Proposal " + code,
		Category:   "operations",
		FormData:   models.FormData{"summary": {Kind: models.FieldText, Text: "text"}},
		Status:     status,
	}
	if status != models.StatusDraft {
		submitted := time.Now().Add(-72 * time.Hour)
		p.SubmittedAt = &submitted
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create(%s) error = %v", code, err)
	}
	return p
}

// averageOf stands in for the evaluation aggregate
func averageOf(ratings []models.Rating) (models.RatingSummary, error) {
	if len(ratings) == 0 {
		return models.RatingSummary{}, errors.New("no ratings")
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Percentage
	}
	return models.RatingSummary{Percentage: sum / len(ratings), Grade: "X", Count: len(ratings)}, nil
}

func TestProposalCodeIsUnique(t *testing.T) {
	db := testutil.SetupPostgres(t)
	f := testutil.SetupFixtures(t, db)
	repo := repository.NewProposalRepository(db)
	ctx := context.Background()

	first := newProposal(t, repo, f, "IDEA-AAAAAA", models.StatusSubmitted)

	dup := &models.Proposal{Code: first.Code, TemplateID: f.Template.ID, AuthorID: f.Employee.ID, Status: models.StatusDraft}
	if err := repo.Create(ctx, dup); !errors.Is(err, repository.ErrDuplicateCode) {
		t.Errorf("Create with taken code error = %v, want ErrDuplicateCode", err)
	}

	got, err := repo.GetByCode(ctx, "IDEA-AAAAAA")
	if err != nil {
		t.Fatalf("GetByCode() error = %v", err)
	}
	if got.ID != first.ID || got.DuplicateCheck != models.DuplicateCheckPending {
		t.Errorf("GetByCode() = %+v", got)
	}
	if _, err := repo.GetByCode(ctx, "IDEA-ZZZZZZ"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByCode(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestCreateLinkedConverges(t *testing.T) {
	db := testutil.SetupPostgres(t)
	f := testutil.SetupFixtures(t, db)
	repo := repository.NewProposalRepository(db)
	target := newProposal(t, repo, f, "IDEA-BBBBBB", models.StatusSubmitted)

	const writers = 8
	created := make([]*models.Proposal, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := &models.Proposal{
				Code:       fmt.Sprintf("IDEA-LINK%02d", i),
				TemplateID: f.Template.ID,
				AuthorID:   f.Employee2.ID,
				Title:      "Linked",
				FormData:   models.FormData{},
				Status:     models.StatusDraft,
			}
			errs[i] = repo.CreateLinked(context.Background(), p, target.ID, fmt.Sprintf("group-%d", i))
			created[i] = p
		}()
	}
	wg.Wait()

	stored, err := repo.GetByID(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.CollaborationGroupID == nil {
		t.Fatal("target should be grouped")
	}
	for i := range writers {
		if errs[i] != nil {
			t.Fatalf("CreateLinked #%d error = %v", i, errs[i])
		}
		if got := created[i].CollaborationGroupID; got == nil || *got != *stored.CollaborationGroupID {
			t.Errorf("writer %d joined %v, want %s", i, got, *stored.CollaborationGroupID)
		}
	}

	missing := &models.Proposal{Code: "IDEA-LINKXX", TemplateID: f.Template.ID, AuthorID: f.Employee.ID, Status: models.StatusDraft}
	if err := repo.CreateLinked(context.Background(), missing, 999999, "group-x"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("CreateLinked(unknown target) error = %v, want ErrNotFound", err)
	}
}

func TestCreateLinkedRollsBackClaim(t *testing.T) {
	db := testutil.SetupPostgres(t)
	f := testutil.SetupFixtures(t, db)
	repo := repository.NewProposalRepository(db)
	ctx := context.Background()
	target := newProposal(t, repo, f, "IDEA-GGGGGG", models.StatusSubmitted)

	dup := &models.Proposal{Code: target.Code, TemplateID: f.Template.ID, AuthorID: f.Employee.ID, Status: models.StatusDraft}
	if err := repo.CreateLinked(ctx, dup, target.ID, "group-lost"); !errors.Is(err, repository.ErrDuplicateCode) {
		t.Fatalf("CreateLinked(taken code) error = %v, want ErrDuplicateCode", err)
	}

	stored, err := repo.GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.CollaborationGroupID != nil {
		t.Errorf("target group = %s, want none after the rolled back insert", *stored.CollaborationGroupID)
	}
}

func TestUpdateStatusDetectsConcurrentChange(t *testing.T) {
	db := testutil.SetupPostgres(t)
	f := testutil.SetupFixtures(t, db)
	repo := repository.NewProposalRepository(db)
	ctx := context.Background()
	p := newProposal(t, repo, f, "IDEA-CCCCCC", models.StatusSubmitted)

	first := *p
	first.Status = models.StatusApproved
	if err := repo.UpdateStatus(ctx, &first, models.StatusSubmitted); err != nil {
		t.Fatalf("first UpdateStatus() error = %v", err)
	}

	second := *p
	second.Status = models.StatusRejected
	if err := repo.UpdateStatus(ctx, &second, models.StatusSubmitted); !errors.Is(err, repository.ErrStatusChanged) {
		t.Errorf("stale UpdateStatus() error = %v, want ErrStatusChanged", err)
	}

	missing := *p
	missing.ID = 999999
	if err := repo.UpdateStatus(ctx, &missing, models.StatusSubmitted); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UpdateStatus(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertAndAggregateConcurrentRaters(t *testing.T) {
	db := testutil.SetupPostgres(t)
	f := testutil.SetupFixtures(t, db)
	proposals := repository.NewProposalRepository(db)
	ratings := repository.NewRatingRepository(db)
	ctx := context.Background()
	p := newProposal(t, proposals, f, "IDEA-DDDDDD", models.StatusSubmitted)

	raters := []*models.User{f.Manager, f.Manager2, f.Admin}
	percentages := []int{100, 40, 70}

	var wg sync.WaitGroup
	errs := make([]error, len(raters))
	for i, rater := range raters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = ratings.UpsertAndAggregate(ctx, &models.Rating{
				ProposalID: p.ID,
				RaterID:    rater.ID,
				RaterName:  rater.FullName(),
				Detail:     []models.CriterionScore{{CriterionID: "impact", Score: 3}},
				Percentage: percentages[i],
				Grade:      "X",
			}, averageOf)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("UpsertAndAggregate #%d error = %v", i, err)
		}
	}

	stored, err := proposals.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.RatingSummary == nil || stored.RatingSummary.Count != 3 || stored.RatingSummary.Percentage != 70 {
		t.Fatalf("summary after concurrent ratings = %+v, want count 3 and 70%%", stored.RatingSummary)
	}

	// re-rating replaces the rater's previous rating
	summary, err := ratings.UpsertAndAggregate(ctx, &models.Rating{
		ProposalID: p.ID, RaterID: f.Manager2.ID, RaterName: "Mira Manager", Percentage: 100, Grade: "X",
	}, averageOf)
	if err != nil {
		t.Fatalf("re-rate error = %v", err)
	}
	if summary.Count != 3 || summary.Percentage != 90 {
		t.Errorf("summary after re-rate = %+v, want count 3 and 90%%", summary)
	}

	all, err := ratings.ListByProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListByProposal() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("stored ratings = %d, want 3", len(all))
	}

	_, err = ratings.UpsertAndAggregate(ctx, &models.Rating{ProposalID: 999999, RaterID: f.Manager.ID}, averageOf)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("rating an unknown proposal error = %v, want ErrNotFound", err)
	}
}

func TestDuplicateCheckAndDigestQueries(t *testing.T) {
	db := testutil.SetupPostgres(t)
	f := testutil.SetupFixtures(t, db)
	repo := repository.NewProposalRepository(db)
	ctx := context.Background()

	waiting := newProposal(t, repo, f, "IDEA-EEEEEE", models.StatusSubmitted)
	newProposal(t, repo, f, "IDEA-FFFFFF", models.StatusDraft)

	pending, err := repo.ListByDuplicateCheck(ctx, models.DuplicateCheckPending, 10)
	if err != nil {
		t.Fatalf("ListByDuplicateCheck() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != waiting.ID {
		t.Errorf("pending duplicate checks = %+v, want only the submitted proposal", pending)
	}

	if err := repo.SetDuplicateResult(ctx, waiting.ID, models.DuplicateCheckUnavailable, nil); err != nil {
		t.Fatalf("SetDuplicateResult() error = %v", err)
	}
	unavailable, err := repo.ListByDuplicateCheck(ctx, models.DuplicateCheckUnavailable, 10)
	if err != nil {
		t.Fatalf("ListByDuplicateCheck() error = %v", err)
	}
	if len(unavailable) != 1 {
		t.Errorf("unavailable duplicate checks = %d, want 1", len(unavailable))
	}

	items, err := repo.ListAwaitingRating(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListAwaitingRating() error = %v", err)
	}
	if len(items) != 1 || items[0].Code != "IDEA-EEEEEE" || items[0].RatingCount != 0 {
		t.Errorf("awaiting rating = %+v", items)
	}

	items, err = repo.ListAwaitingRating(ctx, time.Now().Add(-96*time.Hour))
	if err != nil {
		t.Fatalf("ListAwaitingRating() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("nothing was submitted four days ago, got %+v", items)
	}
}

func TestRoleRepository(t *testing.T) {
	db := testutil.SetupPostgres(t)
	testutil.SetupFixtures(t, db)
	repo := repository.NewRoleRepository(db)
	ctx := context.Background()

	roles, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	counts := map[string]int{}
	for _, r := range roles {
		counts[r.Name] = r.ActiveUsers
	}
	want := map[string]int{models.RoleAdmin: 1, models.RoleEmployee: 2, models.RoleManager: 2}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("active %s users = %d, want %d", name, counts[name], n)
		}
	}

	role, err := repo.GetByName(ctx, models.RoleManager)
	if err != nil || role.Name != models.RoleManager {
		t.Errorf("GetByName(manager) = %+v, %v", role, err)
	}
	if _, err := repo.GetByName(ctx, "auditor"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByName(unknown) error = %v, want ErrNotFound", err)
	}
}
