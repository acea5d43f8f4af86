package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"idea-portal/internal/config"
	"idea-portal/internal/models"
)

type fakeProposals struct {
	byState  map[string][]models.Proposal
	awaiting []models.PendingReviewItem
	before   time.Time
	listErr  error
	limits   []int
}

func (f *fakeProposals) ListByDuplicateCheck(_ context.Context, state string, limit int) ([]models.Proposal, error) {
	f.limits = append(f.limits, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	found := f.byState[state]
	if len(found) > limit {
		found = found[:limit]
	}
	return append([]models.Proposal(nil), found...), nil
}

func (f *fakeProposals) ListAwaitingRating(_ context.Context, before time.Time) ([]models.PendingReviewItem, error) {
	f.before = before
	return f.awaiting, f.listErr
}

type fakeUsers struct {
	users []models.User
	role  string
}

func (f *fakeUsers) GetActiveUsersByRole(_ context.Context, roleName string) ([]models.User, error) {
	f.role = roleName
	return f.users, nil
}

type fakeRescreener struct {
	mu      sync.Mutex
	seen    []uint
	active  int
	peak    int
	outcome string
}

func (f *fakeRescreener) Rescreen(_ context.Context, p *models.Proposal) string {
	f.mu.Lock()
	f.seen = append(f.seen, p.ID)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return f.outcome
}

type sentDigest struct {
	to, name string
	items    int
}

type fakeDigest struct {
	sent []sentDigest
	fail string
}

func (f *fakeDigest) SendManagerDigest(to, managerName string, items []models.PendingReviewItem) error {
	if to == f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, sentDigest{to: to, name: managerName, items: len(items)})
	return nil
}

func proposals(ids ...uint) []models.Proposal {
	out := make([]models.Proposal, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Proposal{ID: id})
	}
	return out
}

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    schedule
		wantErr bool
	}{
		{name: "minute interval", expr: "*/30 * * * *", want: schedule{interval: 30 * time.Minute}},
		{name: "hour interval", expr: "15 */2 * * *", want: schedule{hourInterval: 2, minute: 15}},
		{name: "daily", expr: "0 8 * * *", want: schedule{hour: 8}},
		{name: "weekly", expr: "30 9 * * 1", want: schedule{hour: 9, minute: 30, weekday: time.Monday, weekly: true}},
		{name: "too few fields", expr: "0 8 * *", wantErr: true},
		{name: "bad minute", expr: "61 8 * * *", wantErr: true},
		{name: "bad minute interval", expr: "*/0 * * * *", wantErr: true},
		{name: "bad hour", expr: "0 24 * * *", wantErr: true},
		{name: "bad hour interval", expr: "0 */24 * * *", wantErr: true},
		{name: "bad weekday", expr: "0 8 * * 7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCron(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseCron(%q) = %+v, want %+v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestScheduleNext(t *testing.T) {
	// Wednesday
	from := time.Date(2026, 3, 11, 10, 20, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{name: "minute interval", expr: "*/5 * * * *", want: from.Add(5 * time.Minute)},
		{name: "daily later today", expr: "30 10 * * *", want: time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)},
		{name: "daily tomorrow", expr: "0 8 * * *", want: time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)},
		{name: "daily at exactly now", expr: "20 10 * * *", want: time.Date(2026, 3, 12, 10, 20, 0, 0, time.UTC)},
		{name: "weekly next monday", expr: "0 8 * * 1", want: time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)},
		{name: "weekly later today", expr: "0 12 * * 3", want: time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)},
		{name: "weekly passed today", expr: "0 9 * * 3", want: time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)},
		{name: "every second hour", expr: "15 */2 * * *", want: time.Date(2026, 3, 11, 12, 15, 0, 0, time.UTC)},
		{name: "every third hour", expr: "0 */3 * * *", want: time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := parseCron(tt.expr)
			if err != nil {
				t.Fatalf("parseCron(%q) error = %v", tt.expr, err)
			}
			if got := sc.next(from); !got.Equal(tt.want) {
				t.Errorf("next(%v) = %v, want %v", from, got, tt.want)
			}
		})
	}
}

func TestRescreenPending(t *testing.T) {
	store := &fakeProposals{byState: map[string][]models.Proposal{
		models.DuplicateCheckUnavailable: proposals(1, 2, 3, 4),
		models.DuplicateCheckPending:     proposals(5, 6, 7),
	}}
	rescreener := &fakeRescreener{outcome: models.DuplicateCheckDone}
	cfg := &config.SchedulerConfig{RescreenBatchSize: 6, RescreenParallel: 2}
	s := NewScheduler(store, &fakeUsers{}, rescreener, &fakeDigest{}, cfg)

	s.rescreenPending(context.Background())

	if len(rescreener.seen) != 6 {
		t.Errorf("rescreened %d proposals, want batch size 6", len(rescreener.seen))
	}
	if rescreener.peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", rescreener.peak)
	}
	if len(store.limits) != 2 || store.limits[0] != 6 || store.limits[1] != 2 {
		t.Errorf("list limits = %v, want [6 2]", store.limits)
	}
}

func TestRescreenPendingListError(t *testing.T) {
	store := &fakeProposals{listErr: errors.New("db down")}
	rescreener := &fakeRescreener{}
	s := NewScheduler(store, &fakeUsers{}, rescreener, nil, &config.SchedulerConfig{})

	s.rescreenPending(context.Background())

	if len(rescreener.seen) != 0 {
		t.Errorf("nothing should be rescreened when listing fails, got %v", rescreener.seen)
	}
}

func TestSendManagerDigests(t *testing.T) {
	now := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)
	store := &fakeProposals{awaiting: []models.PendingReviewItem{
		{ProposalID: 1, Code: "IDEA-AAAAAA", Title: "Bike racks"},
		{ProposalID: 2, Code: "IDEA-BBBBBB", Title: "Quiet room"},
	}}
	users := &fakeUsers{users: []models.User{
		{ID: 1, Email: "mia@example.com", FirstName: "Mia", LastName: "Manager"},
		{ID: 2, Email: ""},
		{ID: 3, Email: "broken@example.com", FirstName: "Bo"},
		{ID: 4, Email: "max@example.com", FirstName: "Max", LastName: "Muster"},
	}}
	digest := &fakeDigest{fail: "broken@example.com"}
	s := NewScheduler(store, users, nil, digest, &config.SchedulerConfig{DigestMinAgeInDays: 2})
	s.now = func() time.Time { return now }

	s.sendManagerDigests(context.Background())

	if users.role != models.RoleManager {
		t.Errorf("recipients looked up by role %q, want %q", users.role, models.RoleManager)
	}
	if want := now.AddDate(0, 0, -2); !store.before.Equal(want) {
		t.Errorf("awaiting cutoff = %v, want %v", store.before, want)
	}
	if len(digest.sent) != 2 {
		t.Fatalf("sent %d digests, want 2: %+v", len(digest.sent), digest.sent)
	}
	if digest.sent[0].to != "mia@example.com" || digest.sent[0].name != "Mia Manager" || digest.sent[0].items != 2 {
		t.Errorf("first digest = %+v", digest.sent[0])
	}
}

func TestSendManagerDigestsNothingPending(t *testing.T) {
	users := &fakeUsers{users: []models.User{{ID: 1, Email: "mia@example.com"}}}
	digest := &fakeDigest{}
	s := NewScheduler(&fakeProposals{}, users, nil, digest, &config.SchedulerConfig{})

	s.sendManagerDigests(context.Background())

	if len(digest.sent) != 0 || users.role != "" {
		t.Errorf("no digest should be sent without pending proposals, sent %+v", digest.sent)
	}
}

func TestStartRunsIntervalTaskAndStops(t *testing.T) {
	store := &fakeProposals{byState: map[string][]models.Proposal{
		models.DuplicateCheckUnavailable: proposals(9),
	}}
	rescreener := &fakeRescreener{outcome: models.DuplicateCheckDone}
	cfg := &config.SchedulerConfig{
		RescreenCron:      "*/30 * * * *",
		ManagerDigestCron: "not a cron",
		EnableRescreen:    true,
		EnableDigest:      true,
		RescreenBatchSize: 10,
	}
	s := NewScheduler(store, &fakeUsers{}, rescreener, &fakeDigest{}, cfg)

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rescreener.mu.Lock()
		n := len(rescreener.seen)
		rescreener.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	rescreener.mu.Lock()
	defer rescreener.mu.Unlock()
	if len(rescreener.seen) != 1 || rescreener.seen[0] != 9 {
		t.Errorf("interval task should run once on start, rescreened %v", rescreener.seen)
	}
}
