package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() EscalationRequest {
	return EscalationRequest{
		TenantID:          "school-a",
		OriginKind:        KindTeacher,
		Type:              "mark_amendment",
		OriginAddress:     "+2348000000001",
		ConversationID:    "school-a:+2348000000001",
		Reason:            "marks are immutable",
		NeededDescription: "change a recorded score",
	}
}

func TestEscalationRequestValidate(t *testing.T) {
	valid := validRequest()
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *EscalationRequest)
		field  string
	}{
		{"missing tenant", func(r *EscalationRequest) { r.TenantID = "" }, "tenant_id"},
		{"unknown kind", func(r *EscalationRequest) { r.OriginKind = "robot" }, "origin_kind"},
		{"authority cannot originate", func(r *EscalationRequest) { r.OriginKind = KindAuthority }, "origin_kind"},
		{"missing type", func(r *EscalationRequest) { r.Type = "" }, "type"},
		{"missing address", func(r *EscalationRequest) { r.OriginAddress = "" }, "origin_address"},
		{"missing conversation", func(r *EscalationRequest) { r.ConversationID = "" }, "conversation_id"},
		{"missing reason", func(r *EscalationRequest) { r.Reason = "" }, "reason"},
		{"missing needed description", func(r *EscalationRequest) { r.NeededDescription = "" }, "needed_description"},
		{"bad priority", func(r *EscalationRequest) { r.Priority = "URGENT" }, "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEscalationClone(t *testing.T) {
	e := &Escalation{
		ID:             NewID(),
		TenantID:       "school-a",
		Payload:        map[string]any{"k": "v"},
		AllowedActions: []string{"approve"},
		Decision:       &Decision{Action: "approve"},
	}

	cp := e.Clone()
	cp.Payload["k"] = "changed"
	cp.AllowedActions[0] = "deny"
	cp.Decision.Action = "deny"

	assert.Equal(t, "v", e.Payload["k"])
	assert.Equal(t, "approve", e.AllowedActions[0])
	assert.Equal(t, "approve", e.Decision.Action)
}

func TestAllowsAction(t *testing.T) {
	e := &Escalation{AllowedActions: []string{"approve", "deny"}}
	assert.True(t, e.AllowsAction("approve"))
	assert.False(t, e.AllowsAction("escalate_more"))

	empty := &Escalation{}
	assert.False(t, empty.AllowsAction("approve"))
}
