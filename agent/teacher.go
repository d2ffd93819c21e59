package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/identity"
)

// RosterScopeStudents is the identity roster scope for student lookups.
const RosterScopeStudents = "students"

// EscalationTypeMarkAmendment tags recorded-mark change requests.
const EscalationTypeMarkAmendment = "mark_amendment"

// amendmentPattern recognizes requests like
// "please change adeboye johson's math score to 78".
var amendmentPattern = regexp.MustCompile(
	`(?i)\b(?:change|amend|correct|update|fix)\b\s+(.+?)(?:'s|s')\s+([a-z ]+?)\s*(?:score|mark|grade)\s+(?:to|from\s+\S+\s+to)\s+(\d+)`)

// TeacherOptions configure the teacher agent.
type TeacherOptions struct {
	Description string
	Completer   completion.Completer
	Instruction Instruction
	Directory   ContactDirectory
}

// TeacherAgent handles teacher conversations. Its escalating trigger is a
// recorded-mark amendment: marks are immutable to the agent, so a change
// request always needs an administrator decision. Student references are
// resolved against the tenant roster before escalating; an ambiguous name is
// clarified with the teacher first so the administrator never receives a
// request about the wrong student.
type TeacherAgent struct {
	BaseAgent
	resolver *identity.Resolver
}

// NewTeacherAgent constructs a teacher agent. The resolver is required; it
// backs student name resolution.
func NewTeacherAgent(name string, resolver *identity.Resolver, optFns ...func(o *TeacherOptions)) *TeacherAgent {
	opts := TeacherOptions{
		Description: "Handles teacher conversations: marks, results, class records",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &TeacherAgent{
		BaseAgent: NewBaseAgent(name, core.KindTeacher),
		resolver:  resolver,
	}
	a.SetDescription(opts.Description)
	a.SetCompleter(opts.Completer)
	a.SetInstruction(opts.Instruction)
	a.SetDirectory(opts.Directory)
	return a
}

// HandleTurn implements core.Agent.
func (a *TeacherAgent) HandleTurn(tc *core.TurnContext) (*core.TurnResult, error) {
	if tc.Resumption {
		return a.ResumptionReply(tc)
	}

	if req := parseAmendment(tc.Message.Body); req != nil {
		return a.handleAmendment(tc, req)
	}

	// A bare name after a "which student did you mean" question continues
	// the amendment from the earlier turn.
	if pending := pendingAmendment(tc); pending != nil {
		pending.student = tc.Message.Body
		return a.handleAmendment(tc, pending)
	}

	fallback := "Noted. Let me know if you need anything on marks or class records."
	return &core.TurnResult{
		ReplyText: a.Phrase(tc, "Reply helpfully to the teacher's message.", fallback),
	}, nil
}

// amendmentIntent is a parsed mark amendment request.
type amendmentIntent struct {
	student  string
	subject  string
	newScore string
}

func parseAmendment(text string) *amendmentIntent {
	m := amendmentPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &amendmentIntent{
		student:  strings.TrimSpace(m[1]),
		subject:  strings.TrimSpace(m[2]),
		newScore: m[3],
	}
}

// pendingAmendment recovers an amendment whose student reference was being
// clarified: the previous assistant turn asked which student was meant, and
// an earlier teacher turn carries the original request.
func pendingAmendment(tc *core.TurnContext) *amendmentIntent {
	turns := tc.RecentTurns
	if len(turns) == 0 || turns[len(turns)-1].Role != "assistant" {
		return nil
	}
	if !strings.Contains(turns[len(turns)-1].Text, "Did you mean") {
		return nil
	}
	for i := len(turns) - 2; i >= 0; i-- {
		if turns[i].Role != "user" {
			continue
		}
		if req := parseAmendment(turns[i].Text); req != nil {
			return req
		}
	}
	return nil
}

func (a *TeacherAgent) handleAmendment(tc *core.TurnContext, req *amendmentIntent) (*core.TurnResult, error) {
	res, err := a.resolver.Resolve(tc.Context, tc.TenantID, RosterScopeStudents, req.student)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve student %q: %w", req.student, err)
	}

	switch res.Status {
	case identity.StatusAmbiguous:
		names := make([]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			names = append(names, c.Entry.Name)
		}
		reply := fmt.Sprintf("I found more than one possible match for %q. Did you mean %s?",
			req.student, strings.Join(names, " or "))
		return &core.TurnResult{ReplyText: reply}, nil

	case identity.StatusNotFound:
		reply := fmt.Sprintf("I couldn't find a student matching %q in your class records. Could you check the spelling?", req.student)
		return &core.TurnResult{ReplyText: reply}, nil
	}

	student := res.Best().Entry
	needed := fmt.Sprintf("Change %s's %s score to %s", student.Name, req.subject, req.newScore)

	name, role := a.Reporter(tc)
	intent := &core.EscalationRequest{
		TenantID:          tc.TenantID,
		OriginKind:        core.KindTeacher,
		Type:              EscalationTypeMarkAmendment,
		Priority:          core.PriorityHigh,
		OriginAddress:     tc.Message.Address,
		ConversationID:    tc.ConversationID,
		TriggerMessageID:  tc.Message.ID,
		ReporterName:      name,
		ReporterRole:      role,
		Reason:            "Recorded marks are immutable; amendments need administrator approval",
		NeededDescription: needed,
		Payload: map[string]any{
			"student_id":   student.ID,
			"student_name": student.Name,
			"subject":      req.subject,
			"new_score":    req.newScore,
		},
		RequestedDecision: fmt.Sprintf("Approve or deny: %s", needed),
		AllowedActions:    []string{"approve", "deny"},
	}

	fallback := fmt.Sprintf(
		"Got it. Changing %s's %s score to %s needs administrator approval, so I've sent the request up. I'll confirm as soon as it's decided.",
		student.Name, req.subject, req.newScore)

	return &core.TurnResult{
		ReplyText: a.Phrase(tc,
			"Acknowledge the mark change request and explain it was sent to the administrator for approval. Do not claim the change is done.",
			fallback),
		Intent: intent,
	}, nil
}

var _ core.Agent = (*TeacherAgent)(nil)
