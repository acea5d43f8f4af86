// Package workflow holds the proposal status state machine.
package workflow

import (
	"errors"
	"fmt"
	"sort"

	"idea-portal/internal/models"
)

var (
	// ErrInvalidTransition is returned for a status change that is not in the transition table
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRoleNotPermitted is returned when the transition exists but the role may not perform it
	ErrRoleNotPermitted = errors.New("role not permitted for transition")
)

var (
	authorRoles   = []string{models.RoleEmployee, models.RoleAdmin}
	reviewerRoles = []string{models.RoleManager, models.RoleAdmin}
)

// transitions maps from -> to -> roles allowed to take the arrow
var transitions = map[string]map[string][]string{
	models.StatusDraft: {
		models.StatusSubmitted: authorRoles,
	},
	models.StatusSubmitted: {
		models.StatusApproved:      reviewerRoles,
		models.StatusRejected:      reviewerRoles,
		models.StatusNeedsRevision: reviewerRoles,
	},
	models.StatusNeedsRevision: {
		models.StatusSubmitted: authorRoles,
	},
	models.StatusRejected: {
		models.StatusNeedsRevision: reviewerRoles,
		models.StatusSubmitted:     reviewerRoles,
		models.StatusArchived:      reviewerRoles,
	},
	models.StatusApproved: {
		models.StatusPublished:     reviewerRoles,
		models.StatusNeedsRevision: reviewerRoles,
	},
	models.StatusPublished: {
		models.StatusApproved: reviewerRoles,
	},
	models.StatusArchived: {
		models.StatusSubmitted: reviewerRoles,
	},
}

// Statuses lists every known status in lifecycle order
var Statuses = []string{
	models.StatusDraft,
	models.StatusSubmitted,
	models.StatusNeedsRevision,
	models.StatusApproved,
	models.StatusRejected,
	models.StatusPublished,
	models.StatusArchived,
}

// IsKnown reports whether status is a valid proposal status
func IsKnown(status string) bool {
	_, ok := transitions[status]
	return ok
}

// IsEntryState reports whether a new proposal may be created in status
func IsEntryState(status string) bool {
	return status == models.StatusDraft || status == models.StatusSubmitted
}

// IsRatable reports whether reviewers may rate a proposal in status
func IsRatable(status string) bool {
	switch status {
	case models.StatusSubmitted, models.StatusApproved, models.StatusPublished:
		return true
	}
	return false
}

// IsEditable reports whether the author may change form data in status
func IsEditable(status string) bool {
	return status == models.StatusDraft || status == models.StatusNeedsRevision
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Transition validates a status change for an actor holding role
func Transition(from, to, role string) error {
	next, ok := transitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	roles, ok := next[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !hasRole(roles, role) {
		return fmt.Errorf("%w: %s may not move %s -> %s", ErrRoleNotPermitted, role, from, to)
	}
	return nil
}

// TransitionAny validates a status change for an actor holding any of roles
func TransitionAny(from, to string, roles []string) error {
	var lastErr error
	for _, role := range roles {
		err := Transition(from, to, role)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidTransition) {
			return err
		}
		lastErr = err
	}
	if lastErr == nil {
		if err := Transition(from, to, ""); errors.Is(err, ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("%w: no role for %s -> %s", ErrRoleNotPermitted, from, to)
	}
	return lastErr
}

// Allowed lists the statuses reachable from `from` by any of roles, sorted
func Allowed(from string, roles ...string) []string {
	out := []string{}
	for to, allowed := range transitions[from] {
		for _, role := range roles {
			if hasRole(allowed, role) {
				out = append(out, to)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
