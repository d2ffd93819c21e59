package core

import "context"

// EscalationFilters narrows List results. Zero values mean "any".
type EscalationFilters struct {
	State           State
	Type            string
	OriginKind      AgentKind
	IncludeArchived bool
}

// EscalationStore persists escalation records and serializes their state
// transitions. Every method is tenant-scoped: implementations must filter by
// tenant id on each query and never allow cross-tenant reads.
//
// Transition semantics: the CAS-style methods (Transition, Resolve,
// MarkResumed, Fail) succeed only when the record is currently in the
// expected source state, returning *StaleStateError otherwise. This
// serializes concurrent transitions on one record without external locking.
type EscalationStore interface {
	// Create persists a new escalation in its initial state.
	Create(ctx context.Context, e *Escalation) error

	// Get returns the escalation or ErrNotFound.
	Get(ctx context.Context, tenantID, id string) (*Escalation, error)

	// FindOpen returns the single open escalation for the given trigger key,
	// or ErrNotFound when none is open. Backing for the duplicate guard.
	FindOpen(ctx context.Context, tenantID, conversationID, escType string) (*Escalation, error)

	// ListOpen returns all open escalations for the tenant, newest first.
	ListOpen(ctx context.Context, tenantID string) ([]*Escalation, error)

	// List returns tenant escalations matching the filters, newest first.
	List(ctx context.Context, tenantID string, f EscalationFilters) ([]*Escalation, error)

	// Transition moves the record from → to, requiring the edge to be legal
	// and the record to currently be in from.
	Transition(ctx context.Context, tenantID, id string, from, to State) (*Escalation, error)

	// Resolve records the decision and moves IN_AUTHORITY → RESOLVED.
	Resolve(ctx context.Context, tenantID, id string, d Decision) (*Escalation, error)

	// MarkResumed moves RESOLVED → RESUMED, stamping the resumption time.
	// It fails with *StaleStateError if no decision was recorded.
	MarkResumed(ctx context.Context, tenantID, id string) (*Escalation, error)

	// Fail moves any non-terminal record to FAILED with a reason.
	Fail(ctx context.Context, tenantID, id, reason string) (*Escalation, error)

	// Archive flags a terminal record as archived. Records are never deleted.
	Archive(ctx context.Context, tenantID, id string) error
}

// ConversationStore is the append-only per-user message log, queryable as a
// bounded sliding window.
type ConversationStore interface {
	// Append adds one turn to the log.
	Append(ctx context.Context, t Turn) error

	// Recent returns up to n most recent turns for (tenant, address) in
	// chronological order.
	Recent(ctx context.Context, tenantID, address string, n int) ([]Turn, error)
}
