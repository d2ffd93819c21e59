package core

import "time"

// MessageType categorizes inbound payloads delivered by the transport.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeMedia carries a media reference (image, document) whose
	// extraction happens upstream; only the reference travels here.
	MessageTypeMedia MessageType = "media"
)

// InboundMessage is the normalized shape delivered by the transport's
// onMessage hook: {tenantId, address, type, body, mediaRef?, timestamp}.
// ConversationID may be empty; the dispatcher derives a stable id from
// (tenant, address) in that case.
type InboundMessage struct {
	ID             string      `json:"id"`
	TenantID       string      `json:"tenant_id"`
	Address        string      `json:"address"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Type           MessageType `json:"type"`
	Body           string      `json:"body"`
	MediaRef       string      `json:"media_ref,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// Turn is one entry of the append-only per-user conversation log. Role is
// "user" for inbound messages and "assistant" for engine replies.
type Turn struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Address        string    `json:"address"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id,omitempty"`
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// OutboundReply is the dispatcher's per-turn result: the text delivered back
// to the originating address plus correlation identifiers.
type OutboundReply struct {
	TenantID     string `json:"tenant_id"`
	Address      string `json:"address"`
	Text         string `json:"text"`
	MessageID    string `json:"message_id,omitempty"`    // Transport-assigned id of the sent reply
	EscalationID string `json:"escalation_id,omitempty"` // Set when the turn touched an escalation
}
