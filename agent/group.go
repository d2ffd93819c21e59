package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/core"
)

// EscalationTypeResultRelease tags class-wide result publication requests.
const EscalationTypeResultRelease = "class_result_release"

// releasePattern recognizes requests like "release the results for primary 4"
// or "publish term 2 results to the parents".
var releasePattern = regexp.MustCompile(
	`(?i)\b(?:release|publish|send out|share)\b(?:\s+the)?\s+(.*?)\bresults?\b(?:\s+(?:for|to|of)\s+(.+?))?[.?!]?$`)

// GroupOptions configure the group agent.
type GroupOptions struct {
	Description string
	Completer   completion.Completer
	Instruction Instruction
	Directory   ContactDirectory
}

// GroupAgent handles group conversations (class channels, staff rooms). Its
// escalating trigger is a class-wide result release: publishing results to a
// whole group is irreversible and needs administrator sign-off.
type GroupAgent struct {
	BaseAgent
}

// NewGroupAgent constructs a group agent.
func NewGroupAgent(name string, optFns ...func(o *GroupOptions)) *GroupAgent {
	opts := GroupOptions{
		Description: "Handles group conversations: class channels and staff rooms",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &GroupAgent{BaseAgent: NewBaseAgent(name, core.KindGroup)}
	a.SetDescription(opts.Description)
	a.SetCompleter(opts.Completer)
	a.SetInstruction(opts.Instruction)
	a.SetDirectory(opts.Directory)
	return a
}

// HandleTurn implements core.Agent.
func (a *GroupAgent) HandleTurn(tc *core.TurnContext) (*core.TurnResult, error) {
	if tc.Resumption {
		return a.ResumptionReply(tc)
	}

	if m := releasePattern.FindStringSubmatch(tc.Message.Body); m != nil {
		return a.handleResultRelease(tc, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}

	fallback := "Noted for the group. Let me know if anything needs my attention."
	return &core.TurnResult{
		ReplyText: a.Phrase(tc, "Reply briefly and helpfully to the group message.", fallback),
	}, nil
}

func (a *GroupAgent) handleResultRelease(tc *core.TurnContext, qualifier, target string) (*core.TurnResult, error) {
	scope := strings.TrimSpace(qualifier + " results")
	if target != "" {
		scope += " for " + target
	}
	needed := fmt.Sprintf("Release %s to the group", scope)

	name, role := a.Reporter(tc)
	intent := &core.EscalationRequest{
		TenantID:          tc.TenantID,
		OriginKind:        core.KindGroup,
		Type:              EscalationTypeResultRelease,
		Priority:          core.PriorityHigh,
		OriginAddress:     tc.Message.Address,
		ConversationID:    tc.ConversationID,
		TriggerMessageID:  tc.Message.ID,
		ReporterName:      name,
		ReporterRole:      role,
		Reason:            "Class-wide result publication is irreversible and requires administrator approval",
		NeededDescription: needed,
		Payload: map[string]any{
			"scope":  scope,
			"target": target,
		},
		RequestedDecision: fmt.Sprintf("Approve or deny: %s", needed),
		AllowedActions:    []string{"approve", "deny"},
	}

	fallback := fmt.Sprintf(
		"Understood. Releasing %s needs administrator approval first; the request has been sent. I'll post here once it's decided.", scope)

	return &core.TurnResult{
		ReplyText: a.Phrase(tc,
			"Acknowledge the result release request and explain it was sent for administrator approval. Do not release anything yet.",
			fallback),
		Intent: intent,
	}, nil
}

var _ core.Agent = (*GroupAgent)(nil)
