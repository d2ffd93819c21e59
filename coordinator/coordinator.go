// Package coordinator implements the escalation coordinator: the single
// entry point through which origin agents create escalation records. Creation
// is idempotent per (tenant, conversation, type) and notification of the
// authority is fire-and-forget, so a slow or failing admin channel never
// blocks the user-facing turn.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/logging"
)

// AuthorityResolver maps a tenant to the transport address of its deciding
// administrator.
type AuthorityResolver func(tenantID string) (address string, ok bool)

// StaticAuthorityResolver builds an AuthorityResolver from a fixed
// tenant → address map.
func StaticAuthorityResolver(addresses map[string]string) AuthorityResolver {
	return func(tenantID string) (string, bool) {
		addr, ok := addresses[tenantID]
		return addr, ok
	}
}

// Options configure the coordinator.
type Options struct {
	// SnapshotTurns bounds the conversation snapshot captured at creation.
	SnapshotTurns int

	// NotifyTimeout bounds the background notification send.
	NotifyTimeout time.Duration

	// Logger receives structured workflow events.
	Logger logging.Logger

	// Audit receives lifecycle events. Optional.
	Audit core.AuditRecorder
}

// Coordinator owns escalation creation and authority notification.
type Coordinator struct {
	store         core.EscalationStore
	conversations core.ConversationStore
	transport     core.Transport
	authority     AuthorityResolver
	opts          Options

	notifyWG sync.WaitGroup
}

// New constructs a Coordinator.
func New(
	store core.EscalationStore,
	conversations core.ConversationStore,
	transport core.Transport,
	authority AuthorityResolver,
	optFns ...func(o *Options),
) *Coordinator {
	opts := Options{
		SnapshotTurns: 12,
		NotifyTimeout: 15 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Coordinator{
		store:         store,
		conversations: conversations,
		transport:     transport,
		authority:     authority,
		opts:          opts,
	}
}

// Create validates the request and creates the escalation record, returning
// the existing open record instead when one already covers the same
// (tenant, conversation, type) trigger. The new record starts in PAUSED;
// a background notification moves it to IN_AUTHORITY on delivery.
func (c *Coordinator) Create(ctx context.Context, req core.EscalationRequest) (*core.Escalation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if existing, err := c.store.FindOpen(ctx, req.TenantID, req.ConversationID, req.Type); err == nil {
		c.opts.Logger.Info("escalation trigger already open, returning existing record",
			"escalation_id", existing.ID, "tenant_id", existing.TenantID, "type", existing.Type)
		return existing, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, &core.PersistenceError{Op: "find open escalation", Err: err}
	}

	e := c.buildEscalation(ctx, req)

	if err := c.store.Create(ctx, e); err != nil {
		// A concurrent turn may have won the race between FindOpen and
		// Create; the store's uniqueness guard rejects the second insert.
		if existing, ferr := c.store.FindOpen(ctx, req.TenantID, req.ConversationID, req.Type); ferr == nil {
			c.opts.Logger.Info("lost creation race, returning existing record",
				"escalation_id", existing.ID, "tenant_id", existing.TenantID)
			return existing, nil
		}
		return nil, &core.PersistenceError{Op: "create escalation", Err: err}
	}

	c.recordAudit(ctx, core.NewAuditEvent(e.TenantID, e.ID, core.AuditEscalationCreated, map[string]any{
		"type":     e.Type,
		"priority": string(e.Priority),
	}))

	c.opts.Logger.Info("escalation created",
		"escalation_id", e.ID, "tenant_id", e.TenantID, "type", e.Type,
		"priority", string(e.Priority), "state", string(e.State))

	c.notifyWG.Add(1)
	go func() {
		defer c.notifyWG.Done()
		c.notify(e.Clone())
	}()

	return e, nil
}

// Renotify re-sends the authority notification for a record still parked in
// PAUSED, typically after an earlier delivery failure. Delivery moves the
// record to IN_AUTHORITY.
func (c *Coordinator) Renotify(ctx context.Context, tenantID, id string) error {
	e, err := c.store.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if e.State != core.StatePaused {
		return &core.StaleStateError{
			EscalationID: id,
			From:         core.StatePaused,
			To:           core.StateInAuthority,
			Actual:       e.State,
		}
	}
	c.notify(e)
	return nil
}

// Wait blocks until all in-flight background notifications finish. Tests and
// graceful shutdown use it.
func (c *Coordinator) Wait() { c.notifyWG.Wait() }

func (c *Coordinator) buildEscalation(ctx context.Context, req core.EscalationRequest) *core.Escalation {
	now := time.Now().UTC()

	priority := req.Priority
	if priority == "" {
		priority = core.PriorityMedium
	}

	var snapshot []core.Turn
	if c.conversations != nil {
		turns, err := c.conversations.Recent(ctx, req.TenantID, req.OriginAddress, c.opts.SnapshotTurns)
		if err != nil {
			c.opts.Logger.Warn("conversation snapshot unavailable, creating escalation without it",
				"tenant_id", req.TenantID, "address", req.OriginAddress, "error", err)
		} else {
			snapshot = turns
		}
	}

	return &core.Escalation{
		ID:                core.NewID(),
		TenantID:          req.TenantID,
		OriginKind:        req.OriginKind,
		Type:              req.Type,
		Priority:          priority,
		OriginAddress:     req.OriginAddress,
		ConversationID:    req.ConversationID,
		TriggerMessageID:  req.TriggerMessageID,
		ReporterName:      req.ReporterName,
		ReporterRole:      req.ReporterRole,
		Reason:            req.Reason,
		NeededDescription: req.NeededDescription,
		Snapshot:          snapshot,
		Payload:           req.Payload,
		RequestedDecision: req.RequestedDecision,
		AllowedActions:    req.AllowedActions,
		State:             core.StatePaused,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// notify delivers the authority notification on a detached context: the
// originating turn may already be finished when it runs.
func (c *Coordinator) notify(e *core.Escalation) {
	start := time.Now()

	addr, ok := c.authority(e.TenantID)
	if !ok {
		c.opts.Logger.Error("no authority address configured for tenant, escalation stays paused",
			"escalation_id", e.ID, "tenant_id", e.TenantID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.NotifyTimeout)
	defer cancel()

	if _, err := c.transport.Send(ctx, e.TenantID, addr, FormatNotification(e)); err != nil {
		c.opts.Logger.Warn("authority notification failed, escalation stays paused",
			"escalation_id", e.ID, "tenant_id", e.TenantID,
			"duration", time.Since(start), "error", err)
		return
	}

	if _, err := c.store.Transition(ctx, e.TenantID, e.ID, core.StatePaused, core.StateInAuthority); err != nil {
		var stale *core.StaleStateError
		if errors.As(err, &stale) {
			// Another notify already advanced the record.
			c.opts.Logger.Debug("notified escalation already advanced",
				"escalation_id", e.ID, "state", string(stale.Actual))
			return
		}
		c.opts.Logger.Error("failed to advance notified escalation",
			"escalation_id", e.ID, "tenant_id", e.TenantID, "error", err)
		return
	}

	c.opts.Logger.Info("authority notified",
		"escalation_id", e.ID, "tenant_id", e.TenantID,
		"address", addr, "duration", time.Since(start))
}

func (c *Coordinator) recordAudit(ctx context.Context, ev core.AuditEvent) {
	if c.opts.Audit == nil {
		return
	}
	if err := c.opts.Audit.Record(ctx, ev); err != nil {
		c.opts.Logger.Warn("audit record failed", "escalation_id", ev.EscalationID, "kind", ev.Kind, "error", err)
	}
}

// FormatNotification renders the admin-facing notification text for an
// escalation.
func FormatNotification(e *core.Escalation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] Approval needed: %s\n", e.Priority, e.NeededDescription)
	if e.ReporterName != "" {
		fmt.Fprintf(&sb, "Reported by: %s", e.ReporterName)
		if e.ReporterRole != "" {
			fmt.Fprintf(&sb, " (%s)", e.ReporterRole)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Reason: %s\n", e.Reason)
	if e.RequestedDecision != "" {
		fmt.Fprintf(&sb, "Decision requested: %s\n", e.RequestedDecision)
	}
	if len(e.AllowedActions) > 0 {
		fmt.Fprintf(&sb, "Reply with one of: %s\n", strings.Join(e.AllowedActions, ", "))
	}
	fmt.Fprintf(&sb, "Reference: %s", e.ID)
	return sb.String()
}
