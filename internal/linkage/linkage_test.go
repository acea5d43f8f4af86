package linkage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"idea-portal/internal/models"
)

func strPtr(s string) *string { return &s }

// memoryLookup resolves references against an in-memory proposal list
func memoryLookup(ps map[uint]*models.Proposal) Lookup {
	return func(id uint, code string) (*models.Proposal, error) {
		for _, p := range ps {
			if (id != 0 && p.ID == id) || (code != "" && p.Code == code) {
				return p, nil
			}
		}
		return nil, nil
	}
}

func counterMint() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("group-%d", n)
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref      string
		wantID   uint
		wantCode string
	}{
		{"", 0, ""},
		{"   ", 0, ""},
		{"42", 42, ""},
		{"IDEA-ABC123", 0, "IDEA-ABC123"},
		{"idea-abc123", 0, "IDEA-ABC123"},
		{"abc123", 0, "IDEA-ABC123"},
		{"0", 0, "IDEA-0"},
	}

	for _, tt := range tests {
		id, code := ParseReference(tt.ref)
		if id != tt.wantID || code != tt.wantCode {
			t.Errorf("ParseReference(%q) = (%d, %q), want (%d, %q)", tt.ref, id, code, tt.wantID, tt.wantCode)
		}
	}
}

func TestResolveWithoutReference(t *testing.T) {
	called := false
	lookup := func(uint, string) (*models.Proposal, error) {
		called = true
		return nil, nil
	}

	res, err := Resolve("", lookup, counterMint())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.HasGroup() || res.Write != nil {
		t.Errorf("Resolve(\"\") = %+v, want zero resolution", res)
	}
	if called {
		t.Error("lookup should not be called for an empty reference")
	}
}

func TestResolveNotFound(t *testing.T) {
	lookup := memoryLookup(map[uint]*models.Proposal{})
	_, err := Resolve("IDEA-NOPE00", lookup, counterMint())
	if !errors.Is(err, ErrLinkTargetNotFound) {
		t.Errorf("Resolve() error = %v, want ErrLinkTargetNotFound", err)
	}
}

func TestResolveLookupFailure(t *testing.T) {
	boom := errors.New("store offline")
	lookup := func(uint, string) (*models.Proposal, error) { return nil, boom }

	_, err := Resolve("7", lookup, counterMint())
	if !errors.Is(err, boom) {
		t.Errorf("Resolve() error = %v, want wrapped store error", err)
	}
	if errors.Is(err, ErrLinkTargetNotFound) {
		t.Error("store failure should not be reported as not found")
	}
}

func TestResolveMintsForUngroupedTarget(t *testing.T) {
	target := &models.Proposal{ID: 1, Code: "IDEA-AAAAAA"}
	lookup := memoryLookup(map[uint]*models.Proposal{1: target})

	res, err := Resolve("IDEA-AAAAAA", lookup, counterMint())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.GroupID != "group-1" {
		t.Errorf("GroupID = %s, want group-1", res.GroupID)
	}
	if res.Write == nil {
		t.Fatal("expected a group write for an ungrouped target")
	}
	if res.Write.TargetID != 1 || res.Write.GroupID != res.GroupID {
		t.Errorf("Write = %+v", res.Write)
	}
}

func TestResolveIdempotentForGroupedTarget(t *testing.T) {
	target := &models.Proposal{ID: 1, Code: "IDEA-AAAAAA", CollaborationGroupID: strPtr("existing")}
	lookup := memoryLookup(map[uint]*models.Proposal{1: target})
	mint := counterMint()

	first, err := Resolve("1", lookup, mint)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := Resolve("IDEA-AAAAAA", lookup, mint)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if first.GroupID != "existing" || second.GroupID != "existing" {
		t.Errorf("GroupIDs = %s, %s, want existing twice", first.GroupID, second.GroupID)
	}
	if first.Write != nil || second.Write != nil {
		t.Error("grouped target should not produce a write")
	}
}

func TestResolvedProposalsShareCluster(t *testing.T) {
	target := &models.Proposal{ID: 1, Code: "IDEA-AAAAAA"}
	store := map[uint]*models.Proposal{1: target}
	lookup := memoryLookup(store)
	mint := counterMint()

	a := models.Proposal{ID: 2}
	res, err := Resolve("IDEA-AAAAAA", lookup, mint)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// apply the side effect the way the service layer does
	store[res.Write.TargetID].CollaborationGroupID = strPtr(res.Write.GroupID)
	a.CollaborationGroupID = strPtr(res.GroupID)

	b := models.Proposal{ID: 3}
	res, err = Resolve("1", lookup, mint)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Write != nil {
		t.Error("second resolution should join the existing group")
	}
	b.CollaborationGroupID = strPtr(res.GroupID)

	clusters := Cluster([]models.Proposal{b, *target, a})
	if len(clusters.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(clusters.Groups))
	}
	members := clusters.Groups["group-1"]
	if len(members) != 3 {
		t.Fatalf("group has %d members, want 3", len(members))
	}
	for i, want := range []uint{1, 2, 3} {
		if members[i].ID != want {
			t.Errorf("members[%d].ID = %d, want %d", i, members[i].ID, want)
		}
	}
}

func TestClusterCompleteness(t *testing.T) {
	const n, m = 10, 4

	var proposals []models.Proposal
	for i := 1; i <= n; i++ {
		p := models.Proposal{ID: uint(i)}
		if i%3 == 0 || i == 10 {
			p.CollaborationGroupID = strPtr("shared")
		}
		proposals = append(proposals, p)
	}
	// reversed input must give the same membership
	reversed := make([]models.Proposal, len(proposals))
	for i := range proposals {
		reversed[len(proposals)-1-i] = proposals[i]
	}

	for _, input := range [][]models.Proposal{proposals, reversed} {
		clusters := Cluster(input)
		if len(clusters.Groups) != 1 {
			t.Fatalf("got %d groups, want 1", len(clusters.Groups))
		}
		if got := len(clusters.Groups["shared"]); got != m {
			t.Errorf("group size = %d, want %d", got, m)
		}
		if got := len(clusters.Singles); got != n-m {
			t.Errorf("singles = %d, want %d", got, n-m)
		}

		seen := map[uint]int{}
		for _, p := range clusters.Groups["shared"] {
			seen[p.ID]++
		}
		for _, p := range clusters.Singles {
			seen[p.ID]++
		}
		if len(seen) != n {
			t.Errorf("saw %d distinct proposals, want %d", len(seen), n)
		}
		for id, c := range seen {
			if c != 1 {
				t.Errorf("proposal %d appears %d times", id, c)
			}
		}
		if clusters.Singles[0].ID != 1 {
			t.Errorf("singles not ordered by id: first = %d", clusters.Singles[0].ID)
		}
	}
}

func TestClusterDropsRepeatedIDs(t *testing.T) {
	p := models.Proposal{ID: 5}
	clusters := Cluster([]models.Proposal{p, p})
	if len(clusters.Singles) != 1 {
		t.Errorf("singles = %d, want 1", len(clusters.Singles))
	}
}

func TestNewCode(t *testing.T) {
	code := NewCode()
	if !strings.HasPrefix(code, CodePrefix) {
		t.Errorf("code %q missing prefix", code)
	}
	if len(code) != len(CodePrefix)+codeLength {
		t.Errorf("code %q has length %d", code, len(code))
	}
	if code != strings.ToUpper(code) {
		t.Errorf("code %q should be upper case", code)
	}
	if NewGroupID() == NewGroupID() {
		t.Error("group ids should be unique")
	}
}
