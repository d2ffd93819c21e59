// Package store contains EscalationStore implementations. The in-memory
// variant backs tests and examples; the sqlite subpackage provides the
// durable store used in production deployments.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/schoolmesh/escalation/core"
)

// InMemoryStore is a process-local EscalationStore. A single mutex covers
// reads and transitions, which serializes state changes per record exactly
// like the sqlite implementation's compare-and-swap UPDATE does. Records are
// cloned at every boundary so callers can never mutate internal state.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]map[string]*core.Escalation // tenantID -> id -> record
}

// NewInMemoryStore constructs an empty in-memory escalation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string]*core.Escalation)}
}

// Create implements core.EscalationStore.
func (s *InMemoryStore) Create(_ context.Context, e *core.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Mirror the sqlite store's partial unique index: at most one open
	// record per (tenant, conversation, type) trigger.
	if e.State.Open() {
		for _, rec := range s.records[e.TenantID] {
			if rec.ConversationID == e.ConversationID && rec.Type == e.Type && rec.State.Open() {
				return &core.DuplicateEscalationError{ExistingID: rec.ID}
			}
		}
	}

	if _, ok := s.records[e.TenantID]; !ok {
		s.records[e.TenantID] = make(map[string]*core.Escalation)
	}
	s.records[e.TenantID][e.ID] = e.Clone()

	return nil
}

// Get implements core.EscalationStore.
func (s *InMemoryStore) Get(_ context.Context, tenantID, id string) (*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getLocked(tenantID, id)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// FindOpen implements core.EscalationStore.
func (s *InMemoryStore) FindOpen(_ context.Context, tenantID, conversationID, escType string) (*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records[tenantID] {
		if rec.ConversationID == conversationID && rec.Type == escType && rec.State.Open() {
			return rec.Clone(), nil
		}
	}
	return nil, core.ErrNotFound
}

// ListOpen implements core.EscalationStore.
func (s *InMemoryStore) ListOpen(ctx context.Context, tenantID string) ([]*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*core.Escalation
	for _, rec := range s.records[tenantID] {
		if rec.State.Open() {
			res = append(res, rec.Clone())
		}
	}
	sortNewestFirst(res)
	return res, nil
}

// List implements core.EscalationStore.
func (s *InMemoryStore) List(_ context.Context, tenantID string, f core.EscalationFilters) ([]*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*core.Escalation
	for _, rec := range s.records[tenantID] {
		if f.State != "" && rec.State != f.State {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.OriginKind != "" && rec.OriginKind != f.OriginKind {
			continue
		}
		if rec.Archived && !f.IncludeArchived {
			continue
		}
		res = append(res, rec.Clone())
	}
	sortNewestFirst(res)
	return res, nil
}

// Transition implements core.EscalationStore.
func (s *InMemoryStore) Transition(_ context.Context, tenantID, id string, from, to core.State) (*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.transitionLocked(tenantID, id, from, to)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Resolve implements core.EscalationStore recording the decision alongside
// the IN_AUTHORITY → RESOLVED transition.
func (s *InMemoryStore) Resolve(_ context.Context, tenantID, id string, d core.Decision) (*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.transitionLocked(tenantID, id, core.StateInAuthority, core.StateResolved)
	if err != nil {
		return nil, err
	}
	decision := d
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}
	rec.Decision = &decision
	now := decision.DecidedAt
	rec.ResolvedAt = &now

	return rec.Clone(), nil
}

// MarkResumed implements core.EscalationStore.
func (s *InMemoryStore) MarkResumed(_ context.Context, tenantID, id string) (*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getLocked(tenantID, id)
	if err != nil {
		return nil, err
	}
	if rec.Decision == nil {
		return nil, &core.StaleStateError{
			EscalationID: id,
			From:         core.StateResolved,
			To:           core.StateResumed,
			Actual:       rec.State,
		}
	}

	rec, err = s.transitionLocked(tenantID, id, core.StateResolved, core.StateResumed)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec.ResumedAt = &now

	return rec.Clone(), nil
}

// Fail implements core.EscalationStore.
func (s *InMemoryStore) Fail(_ context.Context, tenantID, id, reason string) (*core.Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getLocked(tenantID, id)
	if err != nil {
		return nil, err
	}
	rec, err = s.transitionLocked(tenantID, id, rec.State, core.StateFailed)
	if err != nil {
		return nil, err
	}
	rec.FailureReason = reason

	return rec.Clone(), nil
}

// Archive implements core.EscalationStore.
func (s *InMemoryStore) Archive(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getLocked(tenantID, id)
	if err != nil {
		return err
	}
	rec.Archived = true
	rec.UpdatedAt = time.Now().UTC()

	return nil
}

func (s *InMemoryStore) getLocked(tenantID, id string) (*core.Escalation, error) {
	rec, ok := s.records[tenantID][id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return rec, nil
}

// transitionLocked applies the CAS: the edge must be legal and the record
// must currently be in from. Returns the live (not cloned) record.
func (s *InMemoryStore) transitionLocked(tenantID, id string, from, to core.State) (*core.Escalation, error) {
	rec, err := s.getLocked(tenantID, id)
	if err != nil {
		return nil, err
	}
	if rec.State != from || !core.CanTransition(from, to) {
		return nil, &core.StaleStateError{EscalationID: id, From: from, To: to, Actual: rec.State}
	}
	rec.State = to
	rec.UpdatedAt = time.Now().UTC()
	return rec, nil
}

func sortNewestFirst(recs []*core.Escalation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

// Compile-time interface check.
var _ core.EscalationStore = (*InMemoryStore)(nil)
