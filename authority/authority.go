// Package authority implements the authority agent: the conversational
// surface through which a human administrator reviews and decides pending
// escalations. It disambiguates which escalation an admin reply refers to,
// classifies the reply into approve / deny / custom instruction, and records
// the decision with a compare-and-swap transition so two admins racing on the
// same record cannot both win.
package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/schoolmesh/escalation/agent"
	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/util"
)

// Options configure the authority agent.
type Options struct {
	Description string
	Completer   completion.Completer
	Instruction agent.Instruction

	// Audit receives resolved events. Optional.
	Audit core.AuditRecorder
}

// Agent is the authority-side conversational handler.
type Agent struct {
	agent.BaseAgent
	store core.EscalationStore
	opts  Options
}

// New constructs an authority agent over the escalation store.
func New(name string, store core.EscalationStore, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Description: "Captures administrator decisions on pending escalations",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &Agent{
		BaseAgent: agent.NewBaseAgent(name, core.KindAuthority),
		store:     store,
		opts:      opts,
	}
	a.SetDescription(opts.Description)
	a.SetCompleter(opts.Completer)
	a.SetInstruction(opts.Instruction)
	return a
}

// HandleTurn implements core.Agent for admin inbound messages.
func (a *Agent) HandleTurn(tc *core.TurnContext) (*core.TurnResult, error) {
	pending, err := a.pending(tc.Context, tc.TenantID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &core.TurnResult{
			ReplyText: "There are no requests waiting for your decision right now.",
		}, nil
	}

	target, matches := disambiguate(pending, tc.Message.Body)
	if target == nil {
		return &core.TurnResult{ReplyText: listPrompt(pending, matches)}, nil
	}

	cls := Classify(tc.Message.Body, target.AllowedActions)
	if !cls.Clear {
		parked, err := a.park(tc.Context, target)
		if err != nil {
			return nil, err
		}
		tc.LogInfo("unclear decision, awaiting clarification",
			"escalation_id", parked.ID, "tenant_id", parked.TenantID)
		return &core.TurnResult{
			ReplyText: clarificationPrompt(parked),
			Decision: &core.DecisionOutcome{
				EscalationID:    parked.ID,
				ResolverAddress: tc.Message.Address,
				IntentClear:     false,
			},
		}, nil
	}

	decision := core.Decision{
		Action:          cls.Action,
		Instruction:     cls.Instruction,
		ResolverAddress: tc.Message.Address,
		IntentClear:     true,
	}

	resolved, err := a.RecordDecision(tc.Context, tc.TenantID, target.ID, decision)
	if err != nil {
		var stale *core.StaleStateError
		if errors.As(err, &stale) {
			tc.LogInfo("decision raced with another resolver",
				"escalation_id", target.ID, "state", string(stale.Actual))
			return &core.TurnResult{
				ReplyText: fmt.Sprintf("That request was already decided (now %s); nothing more to do.", stale.Actual),
			}, nil
		}
		return nil, err
	}

	tc.LogInfo("decision recorded",
		"escalation_id", resolved.ID, "tenant_id", resolved.TenantID,
		"action", decision.Action)

	return &core.TurnResult{
		ReplyText: confirmationReply(resolved),
		Decision: &core.DecisionOutcome{
			EscalationID:    resolved.ID,
			Action:          decision.Action,
			Instruction:     decision.Instruction,
			ResolverAddress: decision.ResolverAddress,
			IntentClear:     true,
		},
	}, nil
}

// RecordDecision applies the decision with IN_AUTHORITY → RESOLVED
// compare-and-swap. A record parked in AWAITING_CLARIFICATION, or still
// PAUSED because its notification never went out, is first moved to
// IN_AUTHORITY; a record in any other state yields *StaleStateError.
func (a *Agent) RecordDecision(ctx context.Context, tenantID, id string, d core.Decision) (*core.Escalation, error) {
	e, err := a.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if e.State == core.StateAwaitingClarification || e.State == core.StatePaused {
		if _, err := a.store.Transition(ctx, tenantID, id, e.State, core.StateInAuthority); err != nil {
			return nil, err
		}
	}

	resolved, err := a.store.Resolve(ctx, tenantID, id, d)
	if err != nil {
		return nil, err
	}

	if a.opts.Audit != nil {
		// Audit failure never fails the decision.
		_ = a.opts.Audit.Record(ctx, core.NewAuditEvent(tenantID, id, core.AuditEscalationResolved, map[string]any{
			"action":   d.Action,
			"resolver": d.ResolverAddress,
		}))
	}

	return resolved, nil
}

// pending returns the escalations an admin reply can act on: the tenant's
// full open set. A record still PAUSED (its notification failed or is in
// flight) is included so an admin who learned of it out of band can decide it.
func (a *Agent) pending(ctx context.Context, tenantID string) ([]*core.Escalation, error) {
	open, err := a.store.ListOpen(ctx, tenantID)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list open escalations", Err: err}
	}
	return open, nil
}

func (a *Agent) park(ctx context.Context, e *core.Escalation) (*core.Escalation, error) {
	if e.State == core.StateAwaitingClarification {
		return e, nil
	}
	parked, err := a.store.Transition(ctx, e.TenantID, e.ID, e.State, core.StateAwaitingClarification)
	if err != nil {
		var stale *core.StaleStateError
		if errors.As(err, &stale) {
			return a.store.Get(ctx, e.TenantID, e.ID)
		}
		return nil, err
	}
	return parked, nil
}

// disambiguate picks which escalation the admin text refers to. A single
// pending record is always the target. With several, the text must reference
// exactly one: by id fragment, by a payload term (e.g. a student name) or by
// words of the request description.
func disambiguate(pending []*core.Escalation, text string) (*core.Escalation, []*core.Escalation) {
	if len(pending) == 1 {
		return pending[0], nil
	}

	lower := strings.ToLower(text)
	var matches []*core.Escalation
	for _, e := range pending {
		if references(e, lower) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return nil, matches
}

func references(e *core.Escalation, lower string) bool {
	if len(e.ID) >= 8 && strings.Contains(lower, strings.ToLower(e.ID[:8])) {
		return true
	}
	for _, v := range e.Payload {
		s, ok := v.(string)
		if !ok || len(s) < 3 {
			continue
		}
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	// Distinctive description words (skip short filler).
	for _, w := range strings.Fields(strings.ToLower(e.NeededDescription)) {
		if len(w) >= 5 && strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func listPrompt(pending, matches []*core.Escalation) string {
	var sb strings.Builder
	if len(matches) > 1 {
		sb.WriteString("That could refer to more than one pending request. ")
	}
	sb.WriteString("Which request do you mean?\n")
	for _, e := range pending {
		fmt.Fprintf(&sb, "- [%s] %s (ref %s)\n", e.Priority, util.Truncate(e.NeededDescription, 80), e.ID[:8])
	}
	sb.WriteString("Reply with the reference or enough of the description to identify it.")
	return sb.String()
}

func clarificationPrompt(e *core.Escalation) string {
	if len(e.AllowedActions) > 0 {
		return fmt.Sprintf("I wasn't sure how to record that for %q. Could you reply with one of: %s? You can add instructions after it.",
			e.NeededDescription, strings.Join(e.AllowedActions, ", "))
	}
	return fmt.Sprintf("I wasn't sure how to record that for %q. Could you state the decision explicitly?", e.NeededDescription)
}

func confirmationReply(e *core.Escalation) string {
	d := e.Decision
	switch d.Action {
	case "approve":
		return fmt.Sprintf("Recorded: approved. %s will now be completed and the requester informed.", e.NeededDescription)
	case "deny":
		return fmt.Sprintf("Recorded: denied. The requester will be informed (%s).", e.NeededDescription)
	default:
		return fmt.Sprintf("Recorded your instruction for %q. The requester will be informed.", e.NeededDescription)
	}
}

var _ core.Agent = (*Agent)(nil)
