package core

// AgentKind is the closed set of conversational handler kinds. Dynamic
// dispatch across kinds goes through a single kind→handler lookup table in
// the dispatcher, preserving exhaustiveness checking.
type AgentKind string

const (
	// KindTeacher handles teacher-facing conversations (marks, results).
	KindTeacher AgentKind = "teacher"
	// KindParent handles parent-facing conversations (payments, reports).
	KindParent AgentKind = "parent"
	// KindGroup handles group conversations (class channels, staff rooms).
	KindGroup AgentKind = "group"
	// KindAuthority represents the human decision-maker (administrator).
	KindAuthority AgentKind = "authority"
)

// Valid reports whether k is a member of the closed kind set.
func (k AgentKind) Valid() bool {
	switch k {
	case KindTeacher, KindParent, KindGroup, KindAuthority:
		return true
	}
	return false
}

// OriginKinds returns the kinds that may originate escalations, in a stable
// order. The authority kind never originates; it only decides.
func OriginKinds() []AgentKind {
	return []AgentKind{KindTeacher, KindParent, KindGroup}
}

// Agent is the interface all conversational handlers implement. An agent
// receives a per-turn snapshot (TurnContext) built once by the dispatcher and
// returns a TurnResult describing the reply plus any orchestration signals
// (escalation intent, already-created escalation id, captured decision).
//
// Implementations must:
//   - Respect context cancellation on blocking calls
//   - Never read conversational state from anywhere but the TurnContext
//   - Signal escalation need through the TurnResult rather than side channels
type Agent interface {
	Kind() AgentKind
	Name() string
	Description() string
	HandleTurn(tc *TurnContext) (*TurnResult, error)
}

// TurnResult is the structured output of a single agent turn.
type TurnResult struct {
	// ReplyText is the outbound reply for the conversation peer. Empty when
	// the turn produced no user-visible output.
	ReplyText string

	// EscalationID is set when the agent already created the escalation
	// record itself; the dispatcher then only forwards it to notification.
	EscalationID string

	// Intent is set when the agent decided authority is needed but did not
	// create the record. The dispatcher creates it via the coordinator's
	// idempotent entry point. This dual path guards against an agent failing
	// after deciding escalation is needed but before persisting it.
	Intent *EscalationRequest

	// Decision is set by the authority agent when an admin reply resolved
	// (or tried to resolve) an open escalation.
	Decision *DecisionOutcome
}

// DecisionOutcome carries a captured admin decision out of an authority turn.
// IntentClear=false means the record was parked in AWAITING_CLARIFICATION and
// the ReplyText contains a follow-up question instead of a confirmation.
type DecisionOutcome struct {
	EscalationID    string
	Action          string
	Instruction     string
	ResolverAddress string
	IntentClear     bool
}
