// Package identity resolves free-text person names against a tenant-scoped
// roster. Upstream extraction introduces spelling noise, and silently picking
// the wrong person is worse than asking: the resolver therefore returns an
// explicit AMBIGUOUS result whenever the top candidates score too close to
// call.
//
// Match order: exact normalized match, then substring containment in either
// direction, then edit-distance similarity. Only candidates at or above the
// similarity floor are considered; results are deterministic for a fixed
// roster and input.
package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/schoolmesh/escalation/internal/util"
)

// Status classifies a resolution outcome.
type Status string

const (
	// StatusMatched means exactly one confident candidate.
	StatusMatched Status = "MATCHED"
	// StatusAmbiguous means two or more candidates scored within the tie
	// margin; the caller should ask rather than guess.
	StatusAmbiguous Status = "AMBIGUOUS"
	// StatusNotFound means no candidate reached the similarity floor.
	StatusNotFound Status = "NOT_FOUND"
)

// Entry is one roster member within a tenant scope.
type Entry struct {
	ID   string
	Name string
	Role string
}

// Candidate pairs a roster entry with its match score (0–100).
type Candidate struct {
	Entry
	Score int
}

// Result is the ephemeral outcome of a resolution. It is consumed
// synchronously by the calling agent and never persisted.
type Result struct {
	Status      Status
	Candidates  []Candidate // Best match first; up to MaxCandidates when ambiguous
	Explanation string
}

// Best returns the top candidate. Valid only when Status is MATCHED.
func (r Result) Best() Candidate {
	if len(r.Candidates) == 0 {
		return Candidate{}
	}
	return r.Candidates[0]
}

// RosterProvider supplies roster entries for a tenant scope (e.g. a class,
// the staff list). Implementations must be tenant-isolated.
type RosterProvider interface {
	Entries(ctx context.Context, tenantID, scope string) ([]Entry, error)
}

// Options tune resolver thresholds. Defaults follow the reference behavior:
// similarity floor 70, tie margin 10 points, at most 3 ambiguous candidates.
type Options struct {
	SimilarityFloor int
	TieMargin       int
	MaxCandidates   int
}

// Resolver scores free-text names against roster entries.
type Resolver struct {
	roster RosterProvider
	opts   Options
}

// NewResolver constructs a Resolver with optional threshold overrides.
func NewResolver(roster RosterProvider, optFns ...func(o *Options)) *Resolver {
	opts := Options{
		SimilarityFloor: 70,
		TieMargin:       10,
		MaxCandidates:   3,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Resolver{roster: roster, opts: opts}
}

// Resolve matches freeText against the (tenantID, scope) roster.
func (r *Resolver) Resolve(ctx context.Context, tenantID, scope, freeText string) (Result, error) {
	entries, err := r.roster.Entries(ctx, tenantID, scope)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load roster: %w", err)
	}

	needle := util.NormalizeName(freeText)
	if needle == "" {
		return Result{
			Status:      StatusNotFound,
			Explanation: "empty name after normalization",
		}, nil
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		score := MatchScore(needle, util.NormalizeName(e.Name))
		if score < r.opts.SimilarityFloor {
			continue
		}
		candidates = append(candidates, Candidate{Entry: e, Score: score})
	}

	if len(candidates) == 0 {
		return Result{
			Status:      StatusNotFound,
			Explanation: fmt.Sprintf("no roster entry scored at or above %d for %q", r.opts.SimilarityFloor, freeText),
		}, nil
	}

	// Stable order: score descending, then name for deterministic ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > 1 && candidates[0].Score-candidates[1].Score <= r.opts.TieMargin {
		within := []Candidate{candidates[0]}
		for _, c := range candidates[1:] {
			if candidates[0].Score-c.Score <= r.opts.TieMargin {
				within = append(within, c)
			}
		}
		if len(within) > r.opts.MaxCandidates {
			within = within[:r.opts.MaxCandidates]
		}
		return Result{
			Status:      StatusAmbiguous,
			Candidates:  within,
			Explanation: fmt.Sprintf("%d candidates within %d points of the best match for %q", len(within), r.opts.TieMargin, freeText),
		}, nil
	}

	return Result{
		Status:      StatusMatched,
		Candidates:  candidates[:1],
		Explanation: fmt.Sprintf("%q matched %q with score %d", freeText, candidates[0].Name, candidates[0].Score),
	}, nil
}

// MatchScore computes the 0–100 similarity between two normalized names.
// Exact matches score 100; containment scores by length ratio; everything
// else falls through to edit-distance similarity with a common-prefix boost,
// which keeps near-identical roster siblings (one typo apart from each
// other) inside the ambiguity margin instead of silently separating them.
func MatchScore(needle, name string) int {
	if needle == name {
		return 100
	}
	if needle == "" || name == "" {
		return 0
	}

	shorter, longer := needle, name
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return 85 + 15*len(shorter)/len(longer)
	}

	dist := levenshtein.ComputeDistance(needle, name)
	sim := 100 - 100*dist/len(longer)
	if sim < 0 {
		sim = 0
	}

	// Winkler-style boost: up to 4 chars of shared prefix claw back a tenth
	// of the remaining gap each.
	prefix := commonPrefixLen(needle, name)
	if prefix > 4 {
		prefix = 4
	}
	sim += prefix * (100 - sim) / 10

	if sim > 99 {
		sim = 99 // Only exact matches reach 100
	}
	return sim
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// StaticRoster is an in-memory RosterProvider keyed by tenant and scope.
// Suitable for tests and single-process deployments; swap for a directory
// backed implementation in production.
type StaticRoster struct {
	entries map[string]map[string][]Entry // tenantID -> scope -> entries
}

// NewStaticRoster constructs an empty roster.
func NewStaticRoster() *StaticRoster {
	return &StaticRoster{entries: make(map[string]map[string][]Entry)}
}

// Add registers entries under (tenantID, scope).
func (s *StaticRoster) Add(tenantID, scope string, entries ...Entry) {
	if _, ok := s.entries[tenantID]; !ok {
		s.entries[tenantID] = make(map[string][]Entry)
	}
	s.entries[tenantID][scope] = append(s.entries[tenantID][scope], entries...)
}

// Entries implements RosterProvider.
func (s *StaticRoster) Entries(_ context.Context, tenantID, scope string) ([]Entry, error) {
	scopes, ok := s.entries[tenantID]
	if !ok {
		return nil, nil
	}
	res := make([]Entry, len(scopes[scope]))
	copy(res, scopes[scope])
	return res, nil
}

// Compile-time interface check.
var _ RosterProvider = (*StaticRoster)(nil)
