// Package resumption implements the resumption handler: once an authority
// decision is recorded, it re-invokes the origin agent with the stored
// escalation context and delivers the resulting reply to the original
// conversation. Everything it needs travels in the escalation record; it
// never reads the origin agent's live state.
package resumption

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/logging"
)

// Options configure the resumption handler.
type Options struct {
	// Logger receives structured workflow events.
	Logger logging.Logger

	// Audit receives resumed/failed events. Optional.
	Audit core.AuditRecorder
}

// Handler drives the resume step of the workflow.
type Handler struct {
	store         core.EscalationStore
	conversations core.ConversationStore
	transport     core.Transport
	agents        map[core.AgentKind]core.Agent
	locks         sync.Map // escalation id -> *sync.Mutex
	opts          Options
}

// New constructs a Handler. Origin agents are attached with Register.
func New(
	store core.EscalationStore,
	conversations core.ConversationStore,
	transport core.Transport,
	optFns ...func(o *Options),
) *Handler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Handler{
		store:         store,
		conversations: conversations,
		transport:     transport,
		agents:        make(map[core.AgentKind]core.Agent),
		opts:          opts,
	}
}

// Register attaches an origin agent for its kind. The last registration per
// kind wins.
func (h *Handler) Register(a core.Agent) { h.agents[a.Kind()] = a }

// Resume replays the recorded decision to the origin agent and delivers its
// reply to the original conversation, then marks the record RESUMED.
//
// Idempotency: a record already RESUMED is a logged no-op returning the
// record unchanged. Any other non-RESOLVED state yields *StaleStateError.
// Failures after the decision is recorded leave the record RESOLVED so the
// resume can be retried; they surface as *ResumptionFailure.
//
// The reinvoke, deliver and mark steps run under a per-escalation lock so a
// retry racing an in-flight resume waits, re-reads the state and takes the
// already-resumed no-op path instead of delivering a second message.
func (h *Handler) Resume(ctx context.Context, tenantID, escalationID string) (*core.Escalation, error) {
	mu := h.lock(escalationID)
	mu.Lock()
	defer mu.Unlock()

	e, err := h.store.Get(ctx, tenantID, escalationID)
	if err != nil {
		return nil, err
	}

	switch e.State {
	case core.StateResumed:
		h.opts.Logger.Info("escalation already resumed, skipping",
			"escalation_id", e.ID, "tenant_id", e.TenantID)
		return e, nil
	case core.StateResolved:
		// proceed
	default:
		return nil, &core.StaleStateError{
			EscalationID: e.ID,
			From:         core.StateResolved,
			To:           core.StateResumed,
			Actual:       e.State,
		}
	}
	if e.Decision == nil {
		return nil, &core.ResumptionFailure{
			EscalationID: e.ID,
			Stage:        "reinvoke",
			Err:          fmt.Errorf("resolved escalation has no recorded decision"),
		}
	}

	start := time.Now()

	agent, ok := h.agents[e.OriginKind]
	if !ok {
		return nil, h.failure(e, "reinvoke", fmt.Errorf("no agent registered for kind %q", e.OriginKind))
	}

	tc := core.NewResumptionContext(ctx, e, FormatInstruction(e), h.opts.Logger)
	result, err := agent.HandleTurn(tc)
	if err != nil {
		return nil, h.failure(e, "reinvoke", err)
	}
	if result == nil || result.ReplyText == "" {
		return nil, h.failure(e, "reinvoke", fmt.Errorf("origin agent produced no reply"))
	}

	msgID, err := h.transport.Send(ctx, e.TenantID, e.OriginAddress, result.ReplyText)
	if err != nil {
		return nil, h.failure(e, "deliver", err)
	}

	h.appendReply(ctx, e, result.ReplyText, msgID)

	resumed, err := h.store.MarkResumed(ctx, e.TenantID, e.ID)
	if err != nil {
		var stale *core.StaleStateError
		if errors.As(err, &stale) {
			// Another process resumed through the shared store while we held
			// only the local lock.
			h.opts.Logger.Info("resume raced with another resume",
				"escalation_id", e.ID, "state", string(stale.Actual))
			return h.store.Get(ctx, e.TenantID, e.ID)
		}
		return nil, &core.PersistenceError{Op: "mark resumed", Err: err}
	}

	if h.opts.Audit != nil {
		_ = h.opts.Audit.Record(ctx, core.NewAuditEvent(e.TenantID, e.ID, core.AuditEscalationResumed, map[string]any{
			"action":     e.Decision.Action,
			"message_id": msgID,
		}))
	}

	h.opts.Logger.Info("escalation resumed",
		"escalation_id", e.ID, "tenant_id", e.TenantID,
		"action", e.Decision.Action, "duration", time.Since(start))

	return resumed, nil
}

// lock returns the mutex serializing resumes of one escalation.
func (h *Handler) lock(escalationID string) *sync.Mutex {
	mu, _ := h.locks.LoadOrStore(escalationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// failure wraps err as a ResumptionFailure and logs it at operator-alert
// level: an approved action has not reached the end user. The record stays
// RESOLVED for retry.
func (h *Handler) failure(e *core.Escalation, stage string, err error) error {
	rf := &core.ResumptionFailure{EscalationID: e.ID, Stage: stage, Err: err}
	h.opts.Logger.Error("resumption failed, escalation stays resolved for retry",
		"escalation_id", e.ID, "tenant_id", e.TenantID,
		"stage", stage, "error", err)
	return rf
}

func (h *Handler) appendReply(ctx context.Context, e *core.Escalation, text, msgID string) {
	if h.conversations == nil {
		return
	}
	turn := core.Turn{
		ID:             core.NewID(),
		TenantID:       e.TenantID,
		Address:        e.OriginAddress,
		ConversationID: e.ConversationID,
		MessageID:      msgID,
		Role:           "assistant",
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
	if err := h.conversations.Append(ctx, turn); err != nil {
		h.opts.Logger.Warn("failed to append resumption reply to conversation log",
			"escalation_id", e.ID, "error", err)
	}
}

// FormatInstruction renders the system instruction replayed to the origin
// agent, describing the decision in actionable terms.
func FormatInstruction(e *core.Escalation) string {
	d := e.Decision
	s := fmt.Sprintf("The administrator decided %q on the pending request: %s.", d.Action, e.NeededDescription)
	if d.Instruction != "" {
		s += " Administrator instruction: " + d.Instruction + "."
	}
	s += " Complete the authorized action and inform the user of the outcome. Do not re-ask anything already answered."
	return s
}
