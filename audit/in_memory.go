// Package audit contains audit trail recorders. Lifecycle events (created,
// resolved, resumed, failed) are appended here by the coordinator, authority
// and resumption components.
package audit

import (
	"context"
	"sync"

	"github.com/schoolmesh/escalation/core"
)

// InMemoryRecorder implements core.AuditRecorder with an append-only slice.
type InMemoryRecorder struct {
	mu     sync.Mutex
	events []core.AuditEvent
}

// NewInMemoryRecorder constructs an empty recorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Record implements core.AuditRecorder.
func (r *InMemoryRecorder) Record(ctx context.Context, event core.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of all recorded events in append order.
func (r *InMemoryRecorder) Events() []core.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// EventsFor returns recorded events for one escalation in append order.
func (r *InMemoryRecorder) EventsFor(escalationID string) []core.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.AuditEvent
	for _, e := range r.events {
		if e.EscalationID == escalationID {
			out = append(out, e)
		}
	}
	return out
}

var _ core.AuditRecorder = (*InMemoryRecorder)(nil)
