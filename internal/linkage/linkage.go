// Package linkage resolves collaboration groups between proposals.
package linkage

import (
	"encoding/base32"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"idea-portal/internal/models"
)

// CodePrefix starts every public proposal code
const CodePrefix = "IDEA-"

const codeLength = 6

// ErrLinkTargetNotFound is returned when a linked reference does not resolve to a proposal
var ErrLinkTargetNotFound = errors.New("link target not found")

// Lookup resolves a parsed reference to a proposal. It returns nil, nil when nothing matches.
type Lookup func(id uint, code string) (*models.Proposal, error)

// GroupWrite is the side effect the caller must persist on the target proposal
type GroupWrite struct {
	TargetID uint
	GroupID  string
}

// Resolution is the outcome of resolving a linked reference
type Resolution struct {
	GroupID string
	Write   *GroupWrite
}

// HasGroup reports whether the resolution assigns a group
func (r Resolution) HasGroup() bool {
	return r.GroupID != ""
}

// NewGroupID mints a collaboration group id
func NewGroupID() string {
	return uuid.NewString()
}

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewCode mints a public proposal code such as IDEA-K3F9QZ
func NewCode() string {
	id := uuid.New()
	return CodePrefix + codeEncoding.EncodeToString(id[:])[:codeLength]
}

// ParseReference classifies ref as a numeric id or a public code.
// Exactly one of the returned values is set for a non-empty ref.
func ParseReference(ref string) (uint, string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, ""
	}
	if n, err := strconv.ParseUint(ref, 10, 64); err == nil && n > 0 {
		return uint(n), ""
	}
	upper := strings.ToUpper(ref)
	if !strings.HasPrefix(upper, CodePrefix) {
		upper = CodePrefix + upper
	}
	return 0, upper
}

// Resolve maps an optional linked reference to a collaboration group id.
// When the target has no group yet a fresh id is minted and returned together
// with the write the caller has to apply to the target.
func Resolve(ref string, lookup Lookup, mint func() string) (Resolution, error) {
	id, code := ParseReference(ref)
	if id == 0 && code == "" {
		return Resolution{}, nil
	}

	target, err := lookup(id, code)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to look up linked proposal %q: %w", ref, err)
	}
	if target == nil {
		return Resolution{}, fmt.Errorf("%w: %s", ErrLinkTargetNotFound, ref)
	}

	if target.CollaborationGroupID != nil && *target.CollaborationGroupID != "" {
		return Resolution{GroupID: *target.CollaborationGroupID}, nil
	}

	if mint == nil {
		mint = NewGroupID
	}
	groupID := mint()
	return Resolution{
		GroupID: groupID,
		Write:   &GroupWrite{TargetID: target.ID, GroupID: groupID},
	}, nil
}

// Cluster partitions proposals by collaboration group. Members and singles are
// ordered by id; a proposal id seen twice is only kept once.
func Cluster(proposals []models.Proposal) models.ProposalClusters {
	out := models.ProposalClusters{
		Groups:  make(map[string][]models.Proposal),
		Singles: []models.Proposal{},
	}

	seen := make(map[uint]struct{}, len(proposals))
	for _, p := range proposals {
		if p.ID != 0 {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
		}
		if p.CollaborationGroupID == nil || *p.CollaborationGroupID == "" {
			out.Singles = append(out.Singles, p)
			continue
		}
		gid := *p.CollaborationGroupID
		out.Groups[gid] = append(out.Groups[gid], p)
	}

	for gid := range out.Groups {
		sortByID(out.Groups[gid])
	}
	sortByID(out.Singles)
	return out
}

func sortByID(ps []models.Proposal) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
