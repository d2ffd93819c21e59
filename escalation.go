// Package escalation provides a high-level façade over the escalation and
// resumption workflow: origin agents pause work that needs an administrator
// decision, the authority agent captures the decision, and the resumption
// handler replays it into the original conversation. Most applications
// interact with this package by:
//  1. Creating an Engine via New() (optionally overriding default in-memory
//     stores, transport and completer)
//  2. Registering agents, or relying on the built-in teacher/parent/group and
//     authority agents
//  3. Feeding inbound messages through HandleInbound (or attaching a
//     transport receiver)
//
// The façade delegates routing to dispatcher.Dispatcher while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments supply the sqlite store, a real transport
// and a structured logger.
package escalation

import (
	"context"

	"github.com/schoolmesh/escalation/agent"
	"github.com/schoolmesh/escalation/audit"
	"github.com/schoolmesh/escalation/authority"
	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/conversation"
	"github.com/schoolmesh/escalation/coordinator"
	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/dispatcher"
	"github.com/schoolmesh/escalation/identity"
	"github.com/schoolmesh/escalation/logging"
	"github.com/schoolmesh/escalation/resumption"
	"github.com/schoolmesh/escalation/store"
	"github.com/schoolmesh/escalation/transport"
)

// Options configures the Engine.
type Options struct {
	// Stores (default to in-memory implementations if not provided)
	EscalationStore   core.EscalationStore
	ConversationStore core.ConversationStore

	// Transport carries outbound replies and notifications. Defaults to the
	// in-memory transport.
	Transport core.Transport

	// AuditRecorder receives lifecycle events. Defaults to the in-memory
	// recorder.
	AuditRecorder core.AuditRecorder

	// AuthorityAddresses maps each tenant to its administrator's transport
	// address. Required for notification delivery.
	AuthorityAddresses map[string]string

	// Kinds resolves inbound senders to agent kinds. Defaults to treating
	// authority addresses as admins and everyone else as a teacher.
	Kinds dispatcher.KindResolver

	// Completer phrases replies. Optional; agents fall back to templates.
	Completer completion.Completer

	// Roster backs student name resolution for the built-in teacher agent.
	Roster identity.RosterProvider

	// ContactDirectory fills reporter fields on escalations. Optional.
	ContactDirectory agent.ContactDirectory

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Engine is the high-level façade aggregating the workflow components.
type Engine struct {
	opts        Options
	coordinator *coordinator.Coordinator
	resumption  *resumption.Handler
	dispatcher  *dispatcher.Dispatcher
}

// New creates an Engine with optional overrides. Any unset collaborator is
// initialized with an in-memory implementation, and the built-in agents are
// registered for every kind.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		EscalationStore:   store.NewInMemoryStore(),
		ConversationStore: conversation.NewInMemoryStore(),
		Transport:         transport.NewInMemoryTransport(),
		AuditRecorder:     audit.NewInMemoryRecorder(),
		Roster:            identity.NewStaticRoster(),
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Kinds == nil {
		opts.Kinds = defaultKindResolver(opts.AuthorityAddresses)
	}

	coord := coordinator.New(
		opts.EscalationStore,
		opts.ConversationStore,
		opts.Transport,
		coordinator.StaticAuthorityResolver(opts.AuthorityAddresses),
		func(o *coordinator.Options) {
			o.Logger = opts.Logger
			o.Audit = opts.AuditRecorder
		},
	)

	resume := resumption.New(
		opts.EscalationStore,
		opts.ConversationStore,
		opts.Transport,
		func(o *resumption.Options) {
			o.Logger = opts.Logger
			o.Audit = opts.AuditRecorder
		},
	)

	disp := dispatcher.New(coord, resume, opts.ConversationStore, opts.Transport, opts.Kinds,
		func(o *dispatcher.Options) {
			o.Logger = opts.Logger
		},
	)

	e := &Engine{
		opts:        opts,
		coordinator: coord,
		resumption:  resume,
		dispatcher:  disp,
	}
	e.registerDefaultAgents()

	return e
}

func (e *Engine) registerDefaultAgents() {
	resolver := identity.NewResolver(e.opts.Roster)

	teacher := agent.NewTeacherAgent("teacher", resolver, func(o *agent.TeacherOptions) {
		o.Completer = e.opts.Completer
		o.Directory = e.opts.ContactDirectory
	})
	parent := agent.NewParentAgent("parent", func(o *agent.ParentOptions) {
		o.Completer = e.opts.Completer
		o.Directory = e.opts.ContactDirectory
	})
	group := agent.NewGroupAgent("group", func(o *agent.GroupOptions) {
		o.Completer = e.opts.Completer
		o.Directory = e.opts.ContactDirectory
	})
	admin := authority.New("authority", e.opts.EscalationStore, func(o *authority.Options) {
		o.Completer = e.opts.Completer
		o.Audit = e.opts.AuditRecorder
	})

	for _, a := range []core.Agent{teacher, parent, group, admin} {
		e.RegisterAgent(a)
	}
}

// RegisterAgent attaches an agent for its kind on both the dispatcher and
// the resumption handler, replacing any built-in agent for that kind.
func (e *Engine) RegisterAgent(a core.Agent) {
	e.dispatcher.Register(a)
	e.resumption.Register(a)
}

// HandleInbound runs one full turn for an inbound message and returns the
// reply delivered back to the sender.
func (e *Engine) HandleInbound(ctx context.Context, msg core.InboundMessage) (*core.OutboundReply, error) {
	return e.dispatcher.HandleInbound(ctx, msg)
}

// Attach subscribes the engine to a transport receiver so inbound messages
// are handled automatically, one goroutine per turn.
func (e *Engine) Attach(r core.TransportReceiver) { e.dispatcher.Attach(r) }

// Escalate creates an escalation directly through the coordinator's
// idempotent entry point, bypassing agent conversation handling.
func (e *Engine) Escalate(ctx context.Context, req core.EscalationRequest) (*core.Escalation, error) {
	return e.coordinator.Create(ctx, req)
}

// Resume replays a resolved escalation to its origin conversation.
func (e *Engine) Resume(ctx context.Context, tenantID, escalationID string) (*core.Escalation, error) {
	return e.resumption.Resume(ctx, tenantID, escalationID)
}

// Store exposes the escalation store for inspection and administration.
func (e *Engine) Store() core.EscalationStore { return e.opts.EscalationStore }

// Coordinator exposes the escalation coordinator.
func (e *Engine) Coordinator() *coordinator.Coordinator { return e.coordinator }

// Wait blocks until in-flight background notifications finish.
func (e *Engine) Wait() { e.coordinator.Wait() }

// defaultKindResolver treats configured authority addresses as admins and
// every other sender as a teacher.
func defaultKindResolver(authorityAddresses map[string]string) dispatcher.KindResolver {
	admins := make(map[string]struct{}, len(authorityAddresses))
	for _, addr := range authorityAddresses {
		admins[addr] = struct{}{}
	}
	return func(_, address string) core.AgentKind {
		if _, ok := admins[address]; ok {
			return core.KindAuthority
		}
		return core.KindTeacher
	}
}
