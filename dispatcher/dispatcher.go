// Package dispatcher implements the top-level message router. Every inbound
// message becomes exactly one agent turn: the dispatcher builds the per-turn
// snapshot, routes by sender kind, and acts on the orchestration signals the
// agent returns (escalation intent, captured decision). Escalation creation
// always goes through the coordinator's idempotent entry point, so the
// duplicate guard has a single enforcement path.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolmesh/escalation/coordinator"
	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/util"
	"github.com/schoolmesh/escalation/logging"
	"github.com/schoolmesh/escalation/resumption"
)

// KindResolver maps an inbound sender to its agent kind. Deployments back it
// with tenant contact data; tests with a fixed map.
type KindResolver func(tenantID, address string) core.AgentKind

// StaticKindResolver builds a KindResolver from a fixed address → kind map
// with a default for unknown senders.
func StaticKindResolver(kinds map[string]core.AgentKind, fallback core.AgentKind) KindResolver {
	return func(_, address string) core.AgentKind {
		if k, ok := kinds[address]; ok {
			return k
		}
		return fallback
	}
}

// Options configure the dispatcher.
type Options struct {
	// RecentTurns bounds the history window handed to agents.
	RecentTurns int

	// Logger receives structured workflow events.
	Logger logging.Logger

	// ErrorReply is sent when a turn fails outright.
	ErrorReply string
}

// Dispatcher routes inbound messages to agents and executes the resulting
// orchestration signals.
type Dispatcher struct {
	agents        map[core.AgentKind]core.Agent
	coordinator   *coordinator.Coordinator
	resumption    *resumption.Handler
	conversations core.ConversationStore
	transport     core.Transport
	kinds         KindResolver
	opts          Options
}

// New constructs a Dispatcher. Agents are attached with Register.
func New(
	coord *coordinator.Coordinator,
	resume *resumption.Handler,
	conversations core.ConversationStore,
	transport core.Transport,
	kinds KindResolver,
	optFns ...func(o *Options),
) *Dispatcher {
	opts := Options{
		RecentTurns: 12,
		Logger:      logging.NoOpLogger{},
		ErrorReply:  "Sorry, something went wrong on my side. Please try again in a moment.",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Dispatcher{
		agents:        make(map[core.AgentKind]core.Agent),
		coordinator:   coord,
		resumption:    resume,
		conversations: conversations,
		transport:     transport,
		kinds:         kinds,
		opts:          opts,
	}
}

// Register attaches an agent for its kind. The last registration per kind
// wins.
func (d *Dispatcher) Register(a core.Agent) { d.agents[a.Kind()] = a }

// Attach subscribes the dispatcher to a transport receiver. Each inbound
// message is handled on its own goroutine.
func (d *Dispatcher) Attach(r core.TransportReceiver) {
	r.OnMessage(func(ctx context.Context, msg core.InboundMessage) {
		go func() {
			if _, err := d.HandleInbound(ctx, msg); err != nil {
				d.opts.Logger.Error("inbound turn failed",
					"tenant_id", msg.TenantID, "address", msg.Address, "error", err)
			}
		}()
	})
}

// HandleInbound runs one full turn for an inbound message and returns the
// reply delivered back to the sender.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg core.InboundMessage) (*core.OutboundReply, error) {
	if msg.TenantID == "" || msg.Address == "" {
		return nil, fmt.Errorf("inbound message missing tenant or address")
	}
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.ConversationID == "" {
		msg.ConversationID = util.ConversationID(msg.TenantID, msg.Address)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	kind := d.kinds(msg.TenantID, msg.Address)
	agent, ok := d.agents[kind]
	if !ok {
		return nil, fmt.Errorf("no agent registered for kind %q", kind)
	}

	recent := d.recentTurns(ctx, msg)
	tc := core.NewTurnContext(ctx, msg, recent, d.opts.Logger)
	d.appendTurn(ctx, msg, "user", msg.Body, msg.ID)

	result, err := agent.HandleTurn(tc)
	if err != nil {
		d.opts.Logger.Error("agent turn failed",
			"agent", agent.Name(), "tenant_id", msg.TenantID, "error", err)
		d.reply(ctx, msg, d.opts.ErrorReply)
		return nil, err
	}

	replyText := result.ReplyText
	escalationID := result.EscalationID

	switch {
	case result.Intent != nil:
		rec, cerr := d.coordinator.Create(ctx, *result.Intent)
		if cerr != nil {
			d.opts.Logger.Error("escalation creation failed",
				"tenant_id", msg.TenantID, "type", result.Intent.Type, "error", cerr)
			replyText = d.opts.ErrorReply
		} else {
			escalationID = rec.ID
		}

	case result.EscalationID != "":
		// The agent already created the record; only notification remains.
		if nerr := d.coordinator.Renotify(ctx, msg.TenantID, result.EscalationID); nerr != nil {
			d.opts.Logger.Warn("renotify failed",
				"escalation_id", result.EscalationID, "error", nerr)
		}
	}

	if kind == core.KindAuthority && result.Decision != nil && result.Decision.IntentClear {
		escalationID = result.Decision.EscalationID
		if _, rerr := d.resumption.Resume(ctx, msg.TenantID, result.Decision.EscalationID); rerr != nil {
			// Already logged at alert level by the handler; the admin
			// confirmation still stands, the resume can be retried.
			d.opts.Logger.Warn("resumption after decision failed",
				"escalation_id", result.Decision.EscalationID, "error", rerr)
		}
	}

	reply := &core.OutboundReply{
		TenantID:     msg.TenantID,
		Address:      msg.Address,
		Text:         replyText,
		EscalationID: escalationID,
	}
	if replyText != "" {
		reply.MessageID = d.reply(ctx, msg, replyText)
	}

	return reply, nil
}

func (d *Dispatcher) recentTurns(ctx context.Context, msg core.InboundMessage) []core.Turn {
	if d.conversations == nil {
		return nil
	}
	turns, err := d.conversations.Recent(ctx, msg.TenantID, msg.Address, d.opts.RecentTurns)
	if err != nil {
		d.opts.Logger.Warn("recent turns unavailable",
			"tenant_id", msg.TenantID, "address", msg.Address, "error", err)
		return nil
	}
	return turns
}

func (d *Dispatcher) appendTurn(ctx context.Context, msg core.InboundMessage, role, text, messageID string) {
	if d.conversations == nil || text == "" {
		return
	}
	err := d.conversations.Append(ctx, core.Turn{
		ID:             core.NewID(),
		TenantID:       msg.TenantID,
		Address:        msg.Address,
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
		Role:           role,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		d.opts.Logger.Warn("failed to append turn",
			"tenant_id", msg.TenantID, "address", msg.Address, "error", err)
	}
}

func (d *Dispatcher) reply(ctx context.Context, msg core.InboundMessage, text string) string {
	msgID, err := d.transport.Send(ctx, msg.TenantID, msg.Address, text)
	if err != nil {
		d.opts.Logger.Error("reply delivery failed",
			"tenant_id", msg.TenantID, "address", msg.Address, "error", err)
		return ""
	}
	d.appendTurn(ctx, msg, "assistant", text, msgID)
	return msgID
}
