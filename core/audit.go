package core

import (
	"context"
	"time"
)

// Audit event kinds emitted over the escalation lifecycle.
const (
	AuditEscalationCreated  = "escalation.created"
	AuditEscalationResolved = "escalation.resolved"
	AuditEscalationResumed  = "escalation.resumed"
	AuditEscalationFailed   = "escalation.failed"
)

// AuditEvent is an immutable record of a lifecycle milestone, produced for
// audit consumers. The RESUMED event is the externally guaranteed one: it
// certifies an approved action reached the end user.
type AuditEvent struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	EscalationID string         `json:"escalation_id"`
	Kind         string         `json:"kind"`
	Detail       map[string]any `json:"detail,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// NewAuditEvent constructs an audit event stamped with a fresh id and UTC time.
func NewAuditEvent(tenantID, escalationID, kind string, detail map[string]any) AuditEvent {
	return AuditEvent{
		ID:           NewID(),
		TenantID:     tenantID,
		EscalationID: escalationID,
		Kind:         kind,
		Detail:       detail,
		Timestamp:    time.Now().UTC(),
	}
}

// AuditRecorder receives lifecycle events. Recording failures must never
// block or fail the workflow that produced the event.
type AuditRecorder interface {
	Record(ctx context.Context, ev AuditEvent) error
}
