package core

import "context"

// Attachment is an optional binary payload sent along with an outbound text.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// MessageHandler consumes normalized inbound messages delivered by a
// transport. Handlers run one logical unit of work per message and must not
// block the transport's delivery loop beyond their own suspension points.
type MessageHandler func(ctx context.Context, msg InboundMessage)

// Transport is the outbound messaging collaborator. Implementations wrap a
// concrete channel (WhatsApp, SMS, chat widget); the engine only depends on
// this interface.
type Transport interface {
	// Send delivers text (plus optional attachments) to an address within a
	// tenant and returns the transport-assigned message id.
	Send(ctx context.Context, tenantID, address, text string, attachments ...Attachment) (string, error)
}

// TransportReceiver is the inbound half implemented by transports that push
// messages into the engine. Kept separate from Transport so send-only
// collaborators (e.g. the notification path) need not implement it.
type TransportReceiver interface {
	// OnMessage registers the handler invoked for every inbound message.
	OnMessage(h MessageHandler)
}
