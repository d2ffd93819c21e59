package core

// EscalationRequest packages everything an origin agent must supply for the
// coordinator to create an escalation record. Validation happens before any
// persistence so malformed requests never reach the store.
type EscalationRequest struct {
	TenantID       string    `json:"tenant_id"`
	OriginKind     AgentKind `json:"origin_kind"`
	Type           string    `json:"type"`
	Priority       Priority  `json:"priority,omitempty"` // Defaults to MEDIUM when unset
	OriginAddress  string    `json:"origin_address"`
	ConversationID string    `json:"conversation_id"`

	TriggerMessageID string `json:"trigger_message_id,omitempty"`
	ReporterName     string `json:"reporter_name,omitempty"`
	ReporterRole     string `json:"reporter_role,omitempty"`

	Reason            string `json:"reason"`
	NeededDescription string `json:"needed_description"`

	Payload           map[string]any `json:"payload,omitempty"`
	RequestedDecision string         `json:"requested_decision,omitempty"`
	AllowedActions    []string       `json:"allowed_actions,omitempty"`
}

// Validate checks required fields and enum membership. It returns the first
// violation as a *ValidationError.
func (r *EscalationRequest) Validate() error {
	switch {
	case r.TenantID == "":
		return &ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	case !r.OriginKind.Valid():
		return &ValidationError{Field: "origin_kind", Reason: "unknown agent kind"}
	case r.OriginKind == KindAuthority:
		return &ValidationError{Field: "origin_kind", Reason: "authority agents cannot originate escalations"}
	case r.Type == "":
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	case r.OriginAddress == "":
		return &ValidationError{Field: "origin_address", Reason: "must not be empty"}
	case r.ConversationID == "":
		return &ValidationError{Field: "conversation_id", Reason: "must not be empty"}
	case r.Reason == "":
		return &ValidationError{Field: "reason", Reason: "must not be empty"}
	case r.NeededDescription == "":
		return &ValidationError{Field: "needed_description", Reason: "must not be empty"}
	case r.Priority != "" && !r.Priority.Valid():
		return &ValidationError{Field: "priority", Reason: "unknown priority"}
	}
	return nil
}
