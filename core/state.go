package core

// State enumerates the escalation lifecycle states.
//
// The lifecycle is PAUSED → AWAITING_CLARIFICATION ⇄ IN_AUTHORITY → RESOLVED
// → RESUMED, with FAILED reachable from any non-terminal state. PAUSED is the
// initial state assigned by the coordinator at creation.
type State string

const (
	// StatePaused marks a freshly created escalation whose origin agent is
	// suspended waiting for authority attention.
	StatePaused State = "PAUSED"
	// StateAwaitingClarification marks an escalation whose last admin reply
	// did not map to a clear decision; the authority agent has asked a
	// follow-up question.
	StateAwaitingClarification State = "AWAITING_CLARIFICATION"
	// StateInAuthority marks an escalation the authority agent has been
	// notified about and is expected to decide.
	StateInAuthority State = "IN_AUTHORITY"
	// StateResolved marks an escalation carrying a recorded decision that has
	// not yet been played back to the origin agent.
	StateResolved State = "RESOLVED"
	// StateResumed is terminal: the origin agent completed the authorized
	// action and the original user received a reply.
	StateResumed State = "RESUMED"
	// StateFailed is terminal and reachable from any non-terminal state.
	StateFailed State = "FAILED"
)

// legalTransitions is the closed transition table. FAILED is handled
// separately in CanTransition since it is reachable from every non-terminal
// state.
var legalTransitions = map[State][]State{
	StatePaused:                {StateAwaitingClarification, StateInAuthority},
	StateAwaitingClarification: {StateInAuthority},
	StateInAuthority:           {StateAwaitingClarification, StateResolved},
	StateResolved:              {StateResumed},
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool { return s == StateResumed || s == StateFailed }

// Open reports whether the escalation still awaits an authority decision.
// Open records participate in the per-(tenant, conversation, type) duplicate
// guard and are returned by open-escalation listings.
func (s State) Open() bool {
	return s == StatePaused || s == StateAwaitingClarification || s == StateInAuthority
}

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool {
	switch s {
	case StatePaused, StateAwaitingClarification, StateInAuthority, StateResolved, StateResumed, StateFailed:
		return true
	}
	return false
}

// CanTransition reports whether from → to is a legal state machine edge.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OpenStates returns the states counted as open, in lifecycle order.
func OpenStates() []State {
	return []State{StatePaused, StateAwaitingClarification, StateInAuthority}
}
