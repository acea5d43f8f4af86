package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"idea-portal/internal/config"
	"idea-portal/internal/models"

	"golang.org/x/sync/errgroup"
)

// ProposalStore is the proposal query surface the periodic tasks need
type ProposalStore interface {
	ListByDuplicateCheck(ctx context.Context, state string, limit int) ([]models.Proposal, error)
	ListAwaitingRating(ctx context.Context, before time.Time) ([]models.PendingReviewItem, error)
}

// UserLister finds the recipients of the manager digest
type UserLister interface {
	GetActiveUsersByRole(ctx context.Context, roleName string) ([]models.User, error)
}

// Rescreener runs the duplicate check for a single proposal
type Rescreener interface {
	Rescreen(ctx context.Context, proposal *models.Proposal) string
}

// DigestSender delivers the manager digest
type DigestSender interface {
	SendManagerDigest(to, managerName string, items []models.PendingReviewItem) error
}

// Scheduler handles periodic tasks
type Scheduler struct {
	proposals  ProposalStore
	users      UserLister
	rescreener Rescreener
	digest     DigestSender
	config     *config.SchedulerConfig
	now        func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler. rescreener and digest may be nil, which
// disables the corresponding task.
func NewScheduler(
	proposals ProposalStore,
	users UserLister,
	rescreener Rescreener,
	digest DigestSender,
	cfg *config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		proposals:  proposals,
		users:      users,
		rescreener: rescreener,
		digest:     digest,
		config:     cfg,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"rescreen_enabled", s.config.EnableRescreen && s.rescreener != nil,
		"digest_enabled", s.config.EnableDigest && s.digest != nil)

	if s.config.EnableRescreen && s.rescreener != nil {
		if err := s.startCronTask(s.config.RescreenCron, "duplicate_rescreen", s.rescreenPending); err != nil {
			slog.Error("Failed to start duplicate rescreen", "error", err)
		}
	}

	if s.config.EnableDigest && s.digest != nil {
		if err := s.startCronTask(s.config.ManagerDigestCron, "manager_digest", s.sendManagerDigests); err != nil {
			slog.Error("Failed to start manager digest", "error", err)
		}
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// schedule is a parsed cron expression. Interval schedules run immediately and then
// every interval; the others run at the next matching wall clock time.
type schedule struct {
	interval     time.Duration
	hourInterval int
	minute       int
	hour         int
	weekday      time.Weekday
	weekly       bool
}

// parseCron parses the supported subset of "minute hour day month weekday".
// Examples: "0 9 * * 1" = Monday 9 AM, "0 8 * * *" = Daily 8 AM,
// "*/5 * * * *" = Every 5 minutes, "15 */2 * * *" = minute 15 of every second hour.
func parseCron(cronExpr string) (schedule, error) {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return schedule{}, fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return schedule{}, fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		return schedule{interval: time.Duration(interval) * time.Minute}, nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return schedule{}, fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	if strings.HasPrefix(parts[1], "*/") {
		interval, err := strconv.Atoi(parts[1][2:])
		if err != nil || interval < 1 || interval > 23 {
			return schedule{}, fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		return schedule{hourInterval: interval, minute: minute}, nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return schedule{}, fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		return schedule{hour: hour, minute: minute}, nil
	}

	weekday, err := strconv.Atoi(parts[4])
	if err != nil || weekday < 0 || weekday > 6 {
		return schedule{}, fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
	}
	return schedule{hour: hour, minute: minute, weekday: time.Weekday(weekday), weekly: true}, nil
}

// next returns the first run strictly after from
func (sc schedule) next(from time.Time) time.Time {
	switch {
	case sc.interval > 0:
		return from.Add(sc.interval)
	case sc.hourInterval > 0:
		return nextHourlyInterval(from, sc.hourInterval, sc.minute)
	case sc.weekly:
		return nextWeekday(from, sc.weekday, sc.hour, sc.minute)
	default:
		return nextDailyRun(from, sc.hour, sc.minute)
	}
}

// startCronTask parses a cron expression and starts the task
func (s *Scheduler) startCronTask(cronExpr, taskName string, task func(ctx context.Context)) error {
	sc, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go s.run(sc, taskName, task)
	return nil
}

func (s *Scheduler) run(sc schedule, taskName string, task func(ctx context.Context)) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if sc.interval > 0 {
		slog.Info("Running interval task", "task", taskName)
		s.runTask(ctx, taskName, task)
	}

	for {
		now := s.now()
		next := sc.next(now)
		slog.Info("Next task run scheduled", "task", taskName, "next_run", next.Format("2006-01-02 15:04:05"))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			slog.Info("Running scheduled task", "task", taskName)
			s.runTask(ctx, taskName, task)
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, taskName string, task func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Scheduled task panicked", "task", taskName, "panic", r)
		}
	}()
	task(ctx)
}

// nextHourlyInterval calculates the next run time for hourly intervals
func nextHourlyInterval(from time.Time, hourInterval, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), minute, 0, 0, from.Location())

	if !next.After(from) {
		next = next.Add(time.Hour)
	}

	for next.Hour()%hourInterval != 0 {
		next = next.Add(time.Hour)
	}

	return next
}

// nextWeekday calculates the next occurrence of a specific weekday and time
func nextWeekday(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	daysUntil := int(weekday - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}
	next = next.AddDate(0, 0, daysUntil)

	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}

	return next
}

// nextDailyRun calculates the next daily run time
func nextDailyRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// rescreenPending retries the duplicate check of proposals whose screening could
// not complete, a bounded number at a time
func (s *Scheduler) rescreenPending(ctx context.Context) {
	slog.Info("Rescreening proposals with unavailable duplicate check")

	batch := s.config.RescreenBatchSize
	if batch <= 0 {
		batch = 50
	}
	parallel := s.config.RescreenParallel
	if parallel <= 0 {
		parallel = 1
	}

	var proposals []models.Proposal
	for _, state := range []string{models.DuplicateCheckUnavailable, models.DuplicateCheckPending} {
		found, err := s.proposals.ListByDuplicateCheck(ctx, state, batch-len(proposals))
		if err != nil {
			slog.Error("Failed to list proposals for rescreen", "state", state, "error", err)
			return
		}
		proposals = append(proposals, found...)
		if len(proposals) >= batch {
			break
		}
	}

	if len(proposals) == 0 {
		slog.Info("No proposals to rescreen")
		return
	}

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := range proposals {
		proposal := &proposals[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if s.rescreener.Rescreen(gctx, proposal) == models.DuplicateCheckDone {
				mu.Lock()
				done++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Duplicate rescreen completed", "checked", len(proposals), "done", done)
}

// sendManagerDigests mails every active manager the proposals still awaiting a rating
func (s *Scheduler) sendManagerDigests(ctx context.Context) {
	slog.Info("Sending manager digests")

	before := s.now().AddDate(0, 0, -s.config.DigestMinAgeInDays)
	items, err := s.proposals.ListAwaitingRating(ctx, before)
	if err != nil {
		slog.Error("Failed to list proposals awaiting rating", "error", err)
		return
	}
	if len(items) == 0 {
		slog.Info("No proposals awaiting rating")
		return
	}

	managers, err := s.users.GetActiveUsersByRole(ctx, models.RoleManager)
	if err != nil {
		slog.Error("Failed to get managers", "error", err)
		return
	}

	sent := 0
	for _, manager := range managers {
		if manager.Email == "" {
			continue
		}
		if err := s.digest.SendManagerDigest(manager.Email, manager.FullName(), items); err != nil {
			slog.Error("Failed to send manager digest", "manager_email", manager.Email, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Manager digests completed", "digests_sent", sent, "items_count", len(items))
}
