package agent

import (
	"fmt"
	"regexp"

	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/core"
)

// EscalationTypePaymentException tags fee waiver / extension requests.
const EscalationTypePaymentException = "payment_exception"

// paymentPattern recognizes requests like "can I get an extension on the
// school fees" or "please waive the late payment charge".
var paymentPattern = regexp.MustCompile(
	`(?i)\b(waive|waiver|extension|extend|defer|installment|instalment|payment plan)\b.*\b(fee|fees|payment|tuition|charge|levy)\b|` +
		`(?i)\b(fee|fees|payment|tuition|charge|levy)\b.*\b(waive|waiver|extension|extend|defer|installment|instalment)\b`)

// ParentOptions configure the parent agent.
type ParentOptions struct {
	Description string
	Completer   completion.Completer
	Instruction Instruction
	Directory   ContactDirectory
}

// ParentAgent handles parent conversations. Its escalating trigger is any
// payment exception: waivers, extensions and payment plans are financial
// commitments the agent cannot make on its own.
type ParentAgent struct {
	BaseAgent
}

// NewParentAgent constructs a parent agent.
func NewParentAgent(name string, optFns ...func(o *ParentOptions)) *ParentAgent {
	opts := ParentOptions{
		Description: "Handles parent conversations: fees, reports, school updates",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ParentAgent{BaseAgent: NewBaseAgent(name, core.KindParent)}
	a.SetDescription(opts.Description)
	a.SetCompleter(opts.Completer)
	a.SetInstruction(opts.Instruction)
	a.SetDirectory(opts.Directory)
	return a
}

// HandleTurn implements core.Agent.
func (a *ParentAgent) HandleTurn(tc *core.TurnContext) (*core.TurnResult, error) {
	if tc.Resumption {
		return a.ResumptionReply(tc)
	}

	if paymentPattern.MatchString(tc.Message.Body) {
		return a.handlePaymentException(tc)
	}

	fallback := "Thanks for reaching out. Let me know if you have questions about fees or your child's reports."
	return &core.TurnResult{
		ReplyText: a.Phrase(tc, "Reply helpfully to the parent's message.", fallback),
	}, nil
}

func (a *ParentAgent) handlePaymentException(tc *core.TurnContext) (*core.TurnResult, error) {
	name, role := a.Reporter(tc)
	needed := "Grant a payment exception (waiver, extension or plan) as requested"

	intent := &core.EscalationRequest{
		TenantID:          tc.TenantID,
		OriginKind:        core.KindParent,
		Type:              EscalationTypePaymentException,
		Priority:          core.PriorityMedium,
		OriginAddress:     tc.Message.Address,
		ConversationID:    tc.ConversationID,
		TriggerMessageID:  tc.Message.ID,
		ReporterName:      name,
		ReporterRole:      role,
		Reason:            "Payment exceptions are financial commitments requiring administrator approval",
		NeededDescription: needed,
		Payload: map[string]any{
			"request_text": tc.Message.Body,
		},
		RequestedDecision: fmt.Sprintf("Approve or deny the payment exception: %q", tc.Message.Body),
		AllowedActions:    []string{"approve", "deny"},
	}

	fallback := "I understand. Payment arrangements need a sign-off from the school administration, so I've passed your request on. You'll hear back here as soon as it's decided."

	return &core.TurnResult{
		ReplyText: a.Phrase(tc,
			"Acknowledge the payment request sympathetically and explain it was forwarded for administrator approval. Do not promise an outcome.",
			fallback),
		Intent: intent,
	}, nil
}

var _ core.Agent = (*ParentAgent)(nil)
