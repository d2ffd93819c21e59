// Package testutil provides builders for workflow tests.
package testutil

import (
	"time"

	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/util"
)

// Request returns a valid escalation request with sensible defaults,
// customizable via mutators.
func Request(tenantID string, mutators ...func(r *core.EscalationRequest)) core.EscalationRequest {
	r := core.EscalationRequest{
		TenantID:          tenantID,
		OriginKind:        core.KindTeacher,
		Type:              "mark_amendment",
		OriginAddress:     "+2348000000001",
		ConversationID:    util.ConversationID(tenantID, "+2348000000001"),
		ReporterName:      "Mrs. Bello",
		ReporterRole:      "teacher",
		Reason:            "Recorded marks are immutable to agents",
		NeededDescription: "Change Chidi Okafor's math score to 78",
		Payload: map[string]any{
			"student_name": "Chidi Okafor",
			"subject":      "math",
			"new_score":    "78",
		},
		RequestedDecision: "Approve or deny the mark change",
		AllowedActions:    []string{"approve", "deny"},
	}
	for _, fn := range mutators {
		fn(&r)
	}
	return r
}

// Escalation returns a persisted-shape escalation record in the given state.
func Escalation(tenantID string, state core.State, mutators ...func(e *core.Escalation)) *core.Escalation {
	now := time.Now().UTC()
	req := Request(tenantID)
	e := &core.Escalation{
		ID:                core.NewID(),
		TenantID:          req.TenantID,
		OriginKind:        req.OriginKind,
		Type:              req.Type,
		Priority:          core.PriorityMedium,
		OriginAddress:     req.OriginAddress,
		ConversationID:    req.ConversationID,
		ReporterName:      req.ReporterName,
		ReporterRole:      req.ReporterRole,
		Reason:            req.Reason,
		NeededDescription: req.NeededDescription,
		Payload:           req.Payload,
		RequestedDecision: req.RequestedDecision,
		AllowedActions:    req.AllowedActions,
		State:             state,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if state == core.StateResolved || state == core.StateResumed {
		e.Decision = &core.Decision{
			Action:          "approve",
			ResolverAddress: "+2348000000099",
			DecidedAt:       now,
			IntentClear:     true,
		}
		e.ResolvedAt = &now
	}
	if state == core.StateResumed {
		e.ResumedAt = &now
	}
	for _, fn := range mutators {
		fn(e)
	}
	return e
}

// Inbound returns an inbound text message.
func Inbound(tenantID, address, body string) core.InboundMessage {
	return core.InboundMessage{
		ID:             core.NewID(),
		TenantID:       tenantID,
		Address:        address,
		ConversationID: util.ConversationID(tenantID, address),
		Type:           core.MessageTypeText,
		Body:           body,
		Timestamp:      time.Now().UTC(),
	}
}

// Turn returns a conversation turn.
func Turn(tenantID, address, role, text string) core.Turn {
	return core.Turn{
		ID:             core.NewID(),
		TenantID:       tenantID,
		Address:        address,
		ConversationID: util.ConversationID(tenantID, address),
		Role:           role,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
}
