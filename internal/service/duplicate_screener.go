package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"idea-portal/internal/models"
)

const candidateSummaryLength = 280

// DuplicateRequest is what the duplicate judge is asked about
type DuplicateRequest struct {
	Title      string                      `json:"title"`
	Content    string                      `json:"content"`
	Candidates []models.DuplicateCandidate `json:"candidate_pool"`
}

// DuplicateJudge decides whether a proposal repeats one of the candidates
type DuplicateJudge interface {
	Judge(ctx context.Context, req DuplicateRequest) (models.DuplicateVerdict, error)
}

// CandidateSource returns recent proposals of a category
type CandidateSource interface {
	ListRecentByCategory(ctx context.Context, category string, excludeID uint, limit int) ([]models.Proposal, error)
}

// ScreenerConfig bounds the duplicate screening
type ScreenerConfig struct {
	Timeout       time.Duration
	MaxConcurrent int
	CandidatePool int
}

// DuplicateScreener consults the duplicate judge with a bounded candidate pool.
// Every failure degrades to "no verdict" and is only logged.
type DuplicateScreener struct {
	judge      DuplicateJudge
	candidates CandidateSource
	sem        *semaphore.Weighted
	timeout    time.Duration
	pool       int
}

// NewDuplicateScreener creates a screener
func NewDuplicateScreener(judge DuplicateJudge, candidates CandidateSource, cfg ScreenerConfig) *DuplicateScreener {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.CandidatePool < 1 {
		cfg.CandidatePool = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &DuplicateScreener{
		judge:      judge,
		candidates: candidates,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		timeout:    cfg.Timeout,
		pool:       cfg.CandidatePool,
	}
}

// proposalContent flattens the text answers of a proposal in field id order
func proposalContent(p *models.Proposal) string {
	ids := make([]string, 0, len(p.FormData))
	for id, v := range p.FormData {
		if v.Kind == models.FieldText && strings.TrimSpace(v.Text) != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strings.TrimSpace(p.FormData[id].Text))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Check judges p against recent proposals of its category. ok is false when no
// verdict could be obtained; the caller stores nothing in that case.
func (s *DuplicateScreener) Check(ctx context.Context, p *models.Proposal) (models.DuplicateVerdict, bool) {
	if s == nil || s.judge == nil {
		return models.DuplicateVerdict{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("Duplicate check skipped, no capacity", "proposal_id", p.ID, "error", err)
		return models.DuplicateVerdict{}, false
	}
	defer s.sem.Release(1)

	recent, err := s.candidates.ListRecentByCategory(ctx, p.Category, p.ID, s.pool)
	if err != nil {
		slog.Warn("Duplicate check failed to load candidates", "proposal_id", p.ID, "error", err)
		return models.DuplicateVerdict{}, false
	}
	if len(recent) == 0 {
		return models.DuplicateVerdict{Reason: "no comparable proposals"}, true
	}

	byCode := make(map[string]models.Proposal, len(recent))
	pool := make([]models.DuplicateCandidate, 0, len(recent))
	for i := range recent {
		c := recent[i]
		byCode[c.Code] = c
		pool = append(pool, models.DuplicateCandidate{
			ID:      c.Code,
			Title:   c.Title,
			Summary: truncate(proposalContent(&c), candidateSummaryLength),
		})
	}

	verdict, err := s.judge.Judge(ctx, DuplicateRequest{
		Title:      p.Title,
		Content:    proposalContent(p),
		Candidates: pool,
	})
	if err != nil {
		slog.Warn("Duplicate check unavailable", "proposal_id", p.ID, "error", err)
		return models.DuplicateVerdict{}, false
	}

	if !verdict.IsDuplicate {
		verdict.MatchID = nil
		verdict.MatchTitle = nil
		return verdict, true
	}
	if verdict.MatchID == nil {
		slog.Warn("Duplicate verdict without match", "proposal_id", p.ID)
		return models.DuplicateVerdict{}, false
	}
	match, ok := byCode[strings.ToUpper(strings.TrimSpace(*verdict.MatchID))]
	if !ok {
		slog.Warn("Duplicate verdict names an unknown candidate", "proposal_id", p.ID, "match_id", *verdict.MatchID)
		return models.DuplicateVerdict{}, false
	}
	verdict.MatchID = ptr(match.Code)
	verdict.MatchTitle = ptr(match.Title)
	return verdict, true
}
