package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"idea-portal/internal/auth"
	"idea-portal/internal/evaluation"
	"idea-portal/internal/models"
	"idea-portal/internal/repository"
)

func clone(p *models.Proposal) *models.Proposal {
	c := *p
	if p.FormData != nil {
		c.FormData = make(models.FormData, len(p.FormData))
		for k, v := range p.FormData {
			c.FormData[k] = v
		}
	}
	return &c
}

type memProposals struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Proposal
}

func newMemProposals() *memProposals {
	return &memProposals{byID: make(map[uint]*models.Proposal)}
}

func (m *memProposals) Create(_ context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Code == p.Code {
			return repository.ErrDuplicateCode
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.byID[p.ID] = clone(p)
	return nil
}

// put stores p as-is, for seeding
func (m *memProposals) put(p models.Proposal) *models.Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	} else if p.ID > m.nextID {
		m.nextID = p.ID
	}
	if p.FormData == nil {
		p.FormData = models.FormData{}
	}
	if p.DuplicateCheck == "" {
		p.DuplicateCheck = models.DuplicateCheckPending
	}
	m.byID[p.ID] = clone(&p)
	return clone(&p)
}

func (m *memProposals) get(id uint) *models.Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		return clone(p)
	}
	return nil
}

func (m *memProposals) GetByID(_ context.Context, id uint) (*models.Proposal, error) {
	if p := m.get(id); p != nil {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memProposals) GetByCode(_ context.Context, code string) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Code == strings.ToUpper(code) {
			return clone(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memProposals) sorted() []models.Proposal {
	out := make([]models.Proposal, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memProposals) List(_ context.Context, f models.ProposalFilter) ([]models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Proposal{}
	for _, p := range m.sorted() {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memProposals) ListRecentByCategory(_ context.Context, category string, excludeID uint, limit int) ([]models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Proposal{}
	for _, p := range m.sorted() {
		if p.Category != category || p.ID == excludeID || p.Status == models.StatusDraft {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memProposals) UpdateContent(_ context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Title, stored.Category, stored.FormData, stored.CoverImage = p.Title, p.Category, p.FormData, p.CoverImage
	return nil
}

func (m *memProposals) UpdateStatus(_ context.Context, p *models.Proposal, expected string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStatusChanged
	}
	stored.Status = p.Status
	stored.PreviousStatus = p.PreviousStatus
	stored.SubmittedAt, stored.DecidedAt, stored.PublishedAt, stored.ArchivedAt = p.SubmittedAt, p.DecidedAt, p.PublishedAt, p.ArchivedAt
	return nil
}

func (m *memProposals) CreateLinked(_ context.Context, p *models.Proposal, targetID uint, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.byID[targetID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, existing := range m.byID {
		if existing.Code == p.Code {
			return repository.ErrDuplicateCode
		}
	}
	if target.CollaborationGroupID == nil {
		target.CollaborationGroupID = &groupID
	}
	stored := *target.CollaborationGroupID
	p.CollaborationGroupID = &stored

	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.byID[p.ID] = clone(p)
	return nil
}

func (m *memProposals) SetDuplicateResult(_ context.Context, id uint, state string, verdict *models.DuplicateVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	stored.DuplicateCheck = state
	stored.Duplicate = verdict
	return nil
}

func (m *memProposals) setSummary(id uint, s models.RatingSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.byID[id]; ok {
		stored.RatingSummary = &s
	}
}

type memTemplates struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Template
}

func newMemTemplates(ts ...models.Template) *memTemplates {
	m := &memTemplates{byID: make(map[uint]*models.Template)}
	for i := range ts {
		t := ts[i]
		if t.ID > m.nextID {
			m.nextID = t.ID
		}
		m.byID[t.ID] = &t
	}
	return m
}

func (m *memTemplates) Create(_ context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	c := *t
	m.byID[t.ID] = &c
	return nil
}

func (m *memTemplates) Update(_ context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *t
	m.byID[t.ID] = &c
	return nil
}

func (m *memTemplates) GetByID(_ context.Context, id uint) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byID[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memTemplates) List(_ context.Context, activeOnly bool) ([]models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Template{}
	for _, t := range m.byID {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memRatings serializes writers per store the way the row lock does per proposal
type memRatings struct {
	mu        sync.Mutex
	ratings   map[uint][]models.Rating
	nextID    uint
	proposals *memProposals
	upserts   int
}

func newMemRatings(proposals *memProposals) *memRatings {
	return &memRatings{ratings: make(map[uint][]models.Rating), proposals: proposals}
}

func (m *memRatings) ListByProposal(_ context.Context, proposalID uint) ([]models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Rating{}, m.ratings[proposalID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].RaterID < out[j].RaterID })
	return out, nil
}

func (m *memRatings) UpsertAndAggregate(_ context.Context, r *models.Rating, aggregate repository.AggregateFunc) (models.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proposals.get(r.ProposalID) == nil {
		return models.RatingSummary{}, repository.ErrNotFound
	}

	m.nextID++
	r.ID = m.nextID
	r.UpdatedAt = time.Now()
	next := evaluation.UpsertRating(m.ratings[r.ProposalID], *r)

	summary, err := aggregate(next)
	if err != nil {
		return models.RatingSummary{}, err
	}
	summary.ComputedAt = time.Now()
	m.ratings[r.ProposalID] = next
	m.upserts++
	m.proposals.setSummary(r.ProposalID, summary)
	return summary, nil
}

type memUsers struct {
	byID  map[uint]*models.User
	roles map[uint][]string
}

func (m *memUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetUserRoles(_ context.Context, userID uint) ([]string, error) {
	return m.roles[userID], nil
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrUserExists
		}
	}
	user.ID = uint(len(m.byID) + 100)
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) AssignRole(_ context.Context, userID uint, roleName string) error {
	if !slices.Contains(m.roles[userID], roleName) {
		m.roles[userID] = append(m.roles[userID], roleName)
	}
	return nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, userID uint) error {
	now := time.Now()
	m.byID[userID].LastLoginAt = &now
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memAudit) Create(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *log)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type notification struct {
	to, from, status string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) SendStatusChangeNotification(to, _ string, _ *models.Proposal, from, toStatus string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{to: to, from: from, status: toStatus})
	return nil
}

type judgeFunc func(ctx context.Context, req DuplicateRequest) (models.DuplicateVerdict, error)

func (f judgeFunc) Judge(ctx context.Context, req DuplicateRequest) (models.DuplicateVerdict, error) {
	return f(ctx, req)
}

// reverseSealer stands in for the transit engine
type reverseSealer struct{}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func (reverseSealer) SealComment(_ context.Context, _, _ uint, comment string) (string, error) {
	return "sealed:" + reverse(comment), nil
}

func (reverseSealer) OpenComment(_ context.Context, _, _ uint, ciphertext string) (string, error) {
	return reverse(strings.TrimPrefix(ciphertext, "sealed:")), nil
}

var (
	admin     = auth.Principal{UserID: 1, Name: "Ada Admin", Email: "admin@example.com", Roles: []string{models.RoleAdmin}}
	manager   = auth.Principal{UserID: 2, Name: "Max Manager", Email: "max@example.com", Roles: []string{models.RoleManager}}
	manager2  = auth.Principal{UserID: 3, Name: "Mira Manager", Email: "mira@example.com", Roles: []string{models.RoleManager}}
	employee  = auth.Principal{UserID: 4, Name: "Eli Employee", Email: "eli@example.com", Roles: []string{models.RoleEmployee}}
	employee2 = auth.Principal{UserID: 5, Name: "Eva Employee", Email: "eva@example.com", Roles: []string{models.RoleEmployee}}
)

func testTemplate() models.Template {
	return models.Template{
		ID:       1,
		Title:    "Process improvement",
		IsActive: true,
		Fields: []models.TemplateField{
			{ID: "summary", Label: "Summary", Kind: models.FieldText, Required: true},
			{ID: "savings", Label: "Estimated savings", Kind: models.FieldNumber},
			{ID: "start", Label: "Start date", Kind: models.FieldDate},
		},
		Criteria: []models.Criterion{
			{ID: "impact", Name: "Impact", Weight: 30},
			{ID: "feasibility", Name: "Feasibility", Weight: 20},
			{ID: "cost", Name: "Cost", Weight: 50},
		},
	}
}

func text(s string) models.FieldValue {
	return models.FieldValue{Kind: models.FieldText, Text: s}
}

func usersFixture() *memUsers {
	users := &memUsers{byID: map[uint]*models.User{}, roles: map[uint][]string{}}
	for _, p := range []auth.Principal{admin, manager, manager2, employee, employee2} {
		first, last, _ := strings.Cut(p.Name, " ")
		users.byID[p.UserID] = &models.User{ID: p.UserID, Email: p.Email, FirstName: first, LastName: last, IsActive: true}
		users.roles[p.UserID] = p.Roles
	}
	return users
}
