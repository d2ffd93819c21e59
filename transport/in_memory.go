// Package transport contains messaging channel implementations. The in-memory
// transport here drives tests and examples; production deployments plug in a
// channel-specific implementation of core.Transport.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/util"
)

// SentMessage records one outbound delivery made through the in-memory
// transport.
type SentMessage struct {
	MessageID   string
	TenantID    string
	Address     string
	Text        string
	Attachments []core.Attachment
	SentAt      time.Time
}

// Options configure the in-memory transport.
type Options struct {
	// SendErr, when set, makes every Send fail with this error. Used to
	// exercise notification failure paths.
	SendErr error
}

// InMemoryTransport implements core.Transport and core.TransportReceiver for
// tests and examples. Outbound messages are recorded; inbound messages are
// injected with Inject and fan out to the registered handler.
type InMemoryTransport struct {
	mu      sync.Mutex
	sent    []SentMessage
	handler core.MessageHandler
	opts    Options
}

// NewInMemoryTransport constructs an empty in-memory transport.
func NewInMemoryTransport(optFns ...func(o *Options)) *InMemoryTransport {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryTransport{opts: opts}
}

// Send implements core.Transport.
func (t *InMemoryTransport) Send(ctx context.Context, tenantID, address, text string, attachments ...core.Attachment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.opts.SendErr != nil {
		return "", t.opts.SendErr
	}

	msg := SentMessage{
		MessageID:   util.NewID(),
		TenantID:    tenantID,
		Address:     address,
		Text:        text,
		Attachments: attachments,
		SentAt:      time.Now().UTC(),
	}
	t.sent = append(t.sent, msg)

	return msg.MessageID, nil
}

// OnMessage implements core.TransportReceiver.
func (t *InMemoryTransport) OnMessage(h core.MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Inject delivers an inbound message to the registered handler, simulating a
// message arriving on the channel. A no-op if no handler is registered.
func (t *InMemoryTransport) Inject(ctx context.Context, msg core.InboundMessage) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h(ctx, msg)
	}
}

// Sent returns a copy of all recorded outbound messages.
func (t *InMemoryTransport) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SentMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentTo returns recorded outbound messages for one tenant address.
func (t *InMemoryTransport) SentTo(tenantID, address string) []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []SentMessage
	for _, m := range t.sent {
		if m.TenantID == tenantID && m.Address == address {
			out = append(out, m)
		}
	}
	return out
}

// Reset discards all recorded outbound messages.
func (t *InMemoryTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

// SetSendErr swaps the injected send failure at runtime. Passing nil restores
// normal delivery.
func (t *InMemoryTransport) SetSendErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts.SendErr = err
}

var (
	_ core.Transport         = (*InMemoryTransport)(nil)
	_ core.TransportReceiver = (*InMemoryTransport)(nil)
)
