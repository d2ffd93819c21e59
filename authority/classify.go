package authority

import "strings"

// Classification is the structured reading of an admin reply.
type Classification struct {
	// Action is "approve", "deny" or "instruct" (custom instruction).
	Action string

	// Instruction carries any free-text guidance beyond the bare action.
	Instruction string

	// Clear reports whether the intent was unambiguous. When false the
	// escalation is parked for clarification instead of resolved.
	Clear bool
}

var approveWords = []string{
	"approve", "approved", "yes", "go ahead", "granted", "grant", "allow",
	"allowed", "confirmed", "confirm", "ok", "okay", "accept", "accepted",
}

var denyWords = []string{
	"deny", "denied", "no", "reject", "rejected", "decline", "declined",
	"refuse", "refused", "don't", "do not", "not approved",
}

var hedgeWords = []string{
	"hmm", "maybe", "not sure", "let me think", "hold on", "wait",
	"later", "i'll get back", "thinking about it", "perhaps",
}

// Classify reads an admin reply against the escalation's allowed actions.
// Matching is deterministic: an allowed action word (or synonym) found near
// the start of the reply wins; a reply that is neither an action nor a
// concrete instruction is unclear. Text after the action word is kept as the
// instruction, so "no, tell her to come and see me first" records a denial
// with guidance attached.
func Classify(text string, allowedActions []string) Classification {
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return Classification{}
	}

	for _, h := range hedgeWords {
		if strings.HasPrefix(norm, h) {
			return Classification{}
		}
	}

	// A question is a request for information, not a decision, even when it
	// opens with an action word ("ok, what was the original score?").
	if strings.Contains(norm, "?") {
		return Classification{}
	}

	if rest, ok := matchAction(norm, approveWords); ok {
		return Classification{Action: "approve", Instruction: rest, Clear: allows("approve", allowedActions)}
	}
	if rest, ok := matchAction(norm, denyWords); ok {
		return Classification{Action: "deny", Instruction: rest, Clear: allows("deny", allowedActions)}
	}

	// An explicitly allowed custom action anywhere near the start.
	for _, action := range allowedActions {
		if rest, ok := matchAction(norm, []string{strings.ToLower(action)}); ok {
			return Classification{Action: action, Instruction: rest, Clear: true}
		}
	}

	// A concrete multi-word statement without a question is treated as a
	// custom instruction; questions and fragments go to clarification.
	if !strings.Contains(norm, "?") && len(strings.Fields(norm)) >= 4 {
		return Classification{Action: "instruct", Instruction: strings.TrimSpace(text), Clear: true}
	}

	return Classification{}
}

// matchAction reports whether the normalized reply opens with one of the
// given words and returns the remainder as instruction text.
func matchAction(norm string, words []string) (string, bool) {
	for _, w := range words {
		if norm == w {
			return "", true
		}
		for _, sep := range []string{" ", ", ", ". ", " - ", ": ", ",", "."} {
			if strings.HasPrefix(norm, w+sep) {
				rest := strings.TrimSpace(norm[len(w)+len(sep):])
				return rest, true
			}
		}
	}
	return "", false
}

// allows reports whether action is permitted. An empty allowed set keeps
// approve/deny usable as the universal default vocabulary.
func allows(action string, allowedActions []string) bool {
	if len(allowedActions) == 0 {
		return true
	}
	for _, a := range allowedActions {
		if strings.EqualFold(a, action) {
			return true
		}
	}
	return false
}
