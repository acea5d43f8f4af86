package models

import (
	"time"
)

// Role names used for access control
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// User represents a portal account
type User struct {
	ID           uint       `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Department   string     `json:"department,omitempty" db:"department"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName returns first and last name joined by a space
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Role represents a user role
type Role struct {
	ID          uint      `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RoleSummary is a role with the number of active users holding it
type RoleSummary struct {
	Role
	ActiveUsers int `json:"active_users"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        uint      `json:"id" db:"id"`
	UserID    *uint     `json:"user_id,omitempty" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource" db:"resource"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Criterion is one weighted axis of evaluation within a template
type Criterion struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight"` // 0-100, should sum to 100 across a template
}

// FieldKind is the value type of a template form field
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldBoolean  FieldKind = "boolean"
	FieldImageRef FieldKind = "image_ref"
	FieldDate     FieldKind = "date"
)

// TemplateField describes one input of a proposal form
type TemplateField struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
}

// Template is the admin-configured schema a proposal is submitted against
type Template struct {
	ID          uint            `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description,omitempty" db:"description"`
	Fields      []TemplateField `json:"fields" db:"fields"`
	Criteria    []Criterion     `json:"criteria" db:"criteria"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	CreatedBy   *uint           `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// FieldByID returns the field with the given id
func (t *Template) FieldByID(id string) (TemplateField, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return TemplateField{}, false
}

// TemplateWithWarnings is returned by admin template operations
type TemplateWithWarnings struct {
	Template
	WeightTotal float64  `json:"weight_total"`
	Warnings    []string `json:"warnings"`
}

// FieldValue is a tagged form value; only the member matching Kind is meaningful
type FieldValue struct {
	Kind     FieldKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Number   *float64  `json:"number,omitempty"`
	Bool     *bool     `json:"bool,omitempty"`
	ImageRef string    `json:"image_ref,omitempty"`
}

// FormData maps template field ids to values
type FormData map[string]FieldValue

// Proposal status values
const (
	StatusDraft         = "draft"
	StatusSubmitted     = "submitted"
	StatusNeedsRevision = "needs_revision"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusPublished     = "published"
	StatusArchived      = "archived"
)

// Duplicate check states
const (
	DuplicateCheckPending     = "pending"
	DuplicateCheckDone        = "done"
	DuplicateCheckUnavailable = "unavailable"
)

// Proposal is a single submitted improvement idea
type Proposal struct {
	ID                   uint              `json:"id" db:"id"`
	Code                 string            `json:"code" db:"code"`
	TemplateID           uint              `json:"template_id" db:"template_id"`
	AuthorID             uint              `json:"author_id" db:"author_id"`
	AuthorName           string            `json:"author_name" db:"author_name"`
	Title                string            `json:"title" db:"title"`
	Category             string            `json:"category" db:"category"`
	FormData             FormData          `json:"form_data" db:"form_data"`
	Status               string            `json:"status" db:"status"`
	PreviousStatus       *string           `json:"previous_status,omitempty" db:"previous_status"`
	CoverImage           *string           `json:"cover_image,omitempty" db:"cover_image"`
	CollaborationGroupID *string           `json:"collaboration_group_id,omitempty" db:"collaboration_group_id"`
	RatingSummary        *RatingSummary    `json:"rating_summary,omitempty" db:"rating_summary"`
	DuplicateCheck       string            `json:"duplicate_check" db:"duplicate_check"`
	Duplicate            *DuplicateVerdict `json:"duplicate,omitempty" db:"duplicate"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at" db:"updated_at"`
	SubmittedAt          *time.Time        `json:"submitted_at,omitempty" db:"submitted_at"`
	DecidedAt            *time.Time        `json:"decided_at,omitempty" db:"decided_at"`
	PublishedAt          *time.Time        `json:"published_at,omitempty" db:"published_at"`
	ArchivedAt           *time.Time        `json:"archived_at,omitempty" db:"archived_at"`
}

// ProposalFilter narrows proposal listings; zero values match everything
type ProposalFilter struct {
	Status   string
	Category string
	AuthorID *uint
	Limit    int
}

// CriterionScore is the per-criterion detail of a rating
type CriterionScore struct {
	CriterionID string  `json:"criterion_id"`
	Label       string  `json:"label"`
	Weight      float64 `json:"weight"`
	Score       int     `json:"score"`
	Defaulted   bool    `json:"defaulted,omitempty"` // score was filled in by policy
}

// Rating is one rater's full scoring of a proposal
type Rating struct {
	ID                uint             `json:"id" db:"id"`
	ProposalID        uint             `json:"proposal_id" db:"proposal_id"`
	RaterID           uint             `json:"rater_id" db:"rater_id"`
	RaterName         string           `json:"rater_name" db:"rater_name"`
	Detail            []CriterionScore `json:"detail" db:"detail"`
	Percentage        int              `json:"percentage" db:"percentage"`
	Grade             string           `json:"grade" db:"grade"`
	Comment           string           `json:"comment" db:"-"`                 // plaintext, never stored when sealing is on
	CommentCiphertext *string          `json:"-" db:"comment_ciphertext"`      // sealed comment
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// CriterionAverage is the cross-rater mean for one criterion
type CriterionAverage struct {
	CriterionID string  `json:"criterion_id"`
	Label       string  `json:"label"`
	Average     float64 `json:"average"`
	Raters      int     `json:"raters"`
}

// RatingSummary is the consensus snapshot stored on a proposal
type RatingSummary struct {
	Percentage   int                `json:"percentage"`
	Grade        string             `json:"grade"`
	Count        int                `json:"count"`
	PerCriterion []CriterionAverage `json:"per_criterion"`
	ComputedAt   time.Time          `json:"computed_at"`
}

// DuplicateCandidate is a prior proposal offered to the duplicate judge
type DuplicateCandidate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// DuplicateVerdict is the advisory duplicate-similarity judgment
type DuplicateVerdict struct {
	IsDuplicate bool    `json:"is_duplicate"`
	MatchID     *string `json:"match_id"`
	MatchTitle  *string `json:"match_title"`
	Reason      string  `json:"reason"`
}

// RatingOutcome is what a rating submission returns to the caller
type RatingOutcome struct {
	Rating  Rating        `json:"rating"`
	Summary RatingSummary `json:"summary"`
}

// ProposalClusters groups proposals by collaboration group
type ProposalClusters struct {
	Groups  map[string][]Proposal `json:"groups"`
	Singles []Proposal            `json:"singles"`
}

// PendingReviewItem is one line of the manager digest
type PendingReviewItem struct {
	ProposalID  uint
	Code        string
	Title       string
	AuthorName  string
	SubmittedAt time.Time
	RatingCount int
}
