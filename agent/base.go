package agent

import (
	"fmt"
	"strings"

	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/core"
)

// ContactDirectory resolves a transport address to the reporter's display
// name and role within a tenant. Optional on every agent; unknown addresses
// leave the reporter fields empty.
type ContactDirectory func(tenantID, address string) (name, role string, ok bool)

// BaseAgent bundles the identity, completer and instruction shared by all
// concrete agents. Embed it and supply a HandleTurn method to satisfy the
// core.Agent interface.
type BaseAgent struct {
	name        string
	description string
	kind        core.AgentKind
	completer   completion.Completer
	instruction Instruction
	directory   ContactDirectory
}

// NewBaseAgent constructs a BaseAgent with a generated description.
func NewBaseAgent(name string, kind core.AgentKind) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
		kind:        kind,
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// Kind returns the agent kind used for dispatch and resumption routing.
func (b *BaseAgent) Kind() core.AgentKind { return b.kind }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// SetCompleter installs the text completion provider used to phrase replies.
// Agents work without one; every reply has a deterministic template fallback.
func (b *BaseAgent) SetCompleter(c completion.Completer) { b.completer = c }

// SetInstruction installs the system instruction used on completer calls.
func (b *BaseAgent) SetInstruction(i Instruction) { b.instruction = i }

// SetDirectory installs the contact directory used to fill reporter fields.
func (b *BaseAgent) SetDirectory(d ContactDirectory) { b.directory = d }

// Reporter resolves the reporter name and role for the turn's sender.
func (b *BaseAgent) Reporter(tc *core.TurnContext) (name, role string) {
	if b.directory == nil {
		return "", ""
	}
	name, role, _ = b.directory(tc.TenantID, tc.Message.Address)
	return name, role
}

// Phrase asks the completer to phrase a reply with the given intent, falling
// back to the deterministic template on any failure. The user turn never
// fails because a language provider is down.
func (b *BaseAgent) Phrase(tc *core.TurnContext, intent, fallback string) string {
	if b.completer == nil {
		return fallback
	}

	instruction := intent
	if b.instruction.provider != nil || b.instruction.text != "" {
		base, err := b.instruction.Resolve(tc)
		if err != nil {
			tc.LogWarn("instruction provider failed, using intent only", "agent", b.name, "error", err)
		} else if base != "" {
			instruction = base + "\n\n" + intent
		}
	}

	resp, err := b.completer.Complete(tc.Context, completion.Request{
		Instruction: instruction,
		Messages:    messagesFromTurn(tc),
	})
	if err != nil {
		tc.LogWarn("completion failed, using template reply", "agent", b.name, "error", err)
		return fallback
	}
	if text := strings.TrimSpace(resp.Text); text != "" {
		return text
	}
	return fallback
}

// messagesFromTurn converts the turn's bounded history plus the current
// message into normalized completion messages.
func messagesFromTurn(tc *core.TurnContext) []completion.Message {
	var msgs []completion.Message
	for _, t := range tc.RecentTurns {
		role := "user"
		if t.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, completion.Message{Role: role, Text: t.Text})
	}
	msgs = append(msgs, completion.Message{Role: "user", Text: tc.Message.Body})
	return msgs
}

// ResumptionReply renders the user-facing reply for a system-originated turn
// replaying an authority decision. Shared by all origin agents; concrete
// agents may override with domain specific phrasing.
func (b *BaseAgent) ResumptionReply(tc *core.TurnContext) (*core.TurnResult, error) {
	e := tc.ResumedEscalation
	if e == nil || e.Decision == nil {
		return nil, fmt.Errorf("resumption turn without a decided escalation")
	}
	d := e.Decision

	var fallback string
	switch d.Action {
	case "approve":
		fallback = fmt.Sprintf("Good news: your request has been approved. %s has been completed.", e.NeededDescription)
		if d.Instruction != "" {
			fallback += " Note from the administrator: " + d.Instruction
		}
	case "deny":
		fallback = fmt.Sprintf("Your request was reviewed but could not be approved (%s).", e.NeededDescription)
		if d.Instruction != "" {
			fallback += " " + d.Instruction
		}
	default:
		fallback = fmt.Sprintf("An update on your request (%s): %s", e.NeededDescription, d.Instruction)
		if d.Instruction == "" {
			fallback = fmt.Sprintf("An update on your request (%s): %s", e.NeededDescription, d.Action)
		}
	}

	intent := fmt.Sprintf(
		"The administrator decided %q on the pending request %q. Relay the outcome to the user warmly and concretely. Do not re-ask any question; the decision is final. Admin instruction: %s",
		d.Action, e.NeededDescription, d.Instruction,
	)

	return &core.TurnResult{ReplyText: b.Phrase(tc, intent, fallback)}, nil
}
