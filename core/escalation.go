package core

import (
	"time"

	"github.com/google/uuid"
)

// Priority classifies how urgently an escalation needs authority attention.
type Priority string

const (
	// PriorityLow is for decisions with no user-visible deadline.
	PriorityLow Priority = "LOW"
	// PriorityMedium is the default when the origin agent does not set one.
	PriorityMedium Priority = "MEDIUM"
	// PriorityHigh is for decisions blocking a user-facing commitment.
	PriorityHigh Priority = "HIGH"
	// PriorityCritical is for decisions with financial or safety impact.
	PriorityCritical Priority = "CRITICAL"
)

// Valid reports whether p is a member of the closed priority set.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Decision captures the authority's recorded choice for an escalation.
// IntentClear is true only when the action maps to one of the escalation's
// AllowedActions or is an unambiguous custom instruction.
type Decision struct {
	Action          string    `json:"action"`                // e.g. "approve", "deny", or a custom action label
	Instruction     string    `json:"instruction,omitempty"` // Free-text guidance from the approver
	ResolverAddress string    `json:"resolver_address"`      // Transport address of the deciding admin
	DecidedAt       time.Time `json:"decided_at"`
	IntentClear     bool      `json:"intent_clear"`
}

// Escalation is the durable unit of work handed from an origin agent to the
// authority. It carries enough context to regenerate the user-facing reply at
// resumption time: the resumption handler must never re-query the origin
// agent's live, possibly-moved-on state.
type Escalation struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	// Classification
	OriginKind AgentKind `json:"origin_kind"`
	Type       string    `json:"type"` // e.g. "mark_amendment", "class_result_release"
	Priority   Priority  `json:"priority"`

	// Origin context
	OriginAddress    string `json:"origin_address"`
	ConversationID   string `json:"conversation_id"`
	TriggerMessageID string `json:"trigger_message_id,omitempty"`
	ReporterName     string `json:"reporter_name,omitempty"`
	ReporterRole     string `json:"reporter_role,omitempty"`

	// Narrative
	Reason            string `json:"reason"`
	NeededDescription string `json:"needed_description"`
	Snapshot          []Turn `json:"snapshot,omitempty"` // Bounded conversation snapshot for audit / authority grounding

	// Structured payload
	Payload           map[string]any `json:"payload,omitempty"`
	RequestedDecision string         `json:"requested_decision,omitempty"`
	AllowedActions    []string       `json:"allowed_actions,omitempty"`

	// State
	State    State     `json:"state"`
	Decision *Decision `json:"decision,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResumedAt  *time.Time `json:"resumed_at,omitempty"`
	Archived   bool       `json:"archived"`
}

// Clone returns a deep copy safe for independent mutation.
func (e *Escalation) Clone() *Escalation {
	cp := *e
	if e.Decision != nil {
		d := *e.Decision
		cp.Decision = &d
	}
	if e.Snapshot != nil {
		cp.Snapshot = make([]Turn, len(e.Snapshot))
		copy(cp.Snapshot, e.Snapshot)
	}
	if e.Payload != nil {
		cp.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			cp.Payload[k] = v
		}
	}
	if e.AllowedActions != nil {
		cp.AllowedActions = append([]string(nil), e.AllowedActions...)
	}
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		cp.ResolvedAt = &t
	}
	if e.ResumedAt != nil {
		t := *e.ResumedAt
		cp.ResumedAt = &t
	}
	return &cp
}

// AllowsAction reports whether action matches one of the enumerated
// AllowedActions. An empty AllowedActions set allows nothing implicitly.
func (e *Escalation) AllowsAction(action string) bool {
	for _, a := range e.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// NewID generates a new unique identifier for escalations, turns and audit
// events. UUID-based so identifiers are safe to mint concurrently across
// tenants without coordination.
func NewID() string { return uuid.NewString() }
