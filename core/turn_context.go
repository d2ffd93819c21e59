package core

import (
	"context"
	"fmt"

	"github.com/schoolmesh/escalation/logging"
)

// TurnContext carries the per-turn snapshot passed to an agent invocation.
// It is built once per inbound message by the dispatcher and never read from
// shared state: tenant, conversation id and the recent-turn window travel
// explicitly with every handler call.
//
// A system-originated TurnContext (Resumption=true) replays an authority
// decision to the origin agent: Message is synthetic, ResumedEscalation holds
// the stored record and SystemInstruction describes the decision in
// actionable terms. Agents must treat such turns as already answered and
// never re-ask a question whose answer is in the payload.
type TurnContext struct {
	Context context.Context

	TenantID       string
	ConversationID string
	TurnID         string

	Message     InboundMessage
	RecentTurns []Turn

	Resumption        bool
	ResumedEscalation *Escalation
	SystemInstruction string

	*loggerAdapter
}

// NewTurnContext constructs a user-originated turn context.
func NewTurnContext(
	ctx context.Context,
	msg InboundMessage,
	recentTurns []Turn,
	logger logging.Logger,
) *TurnContext {
	return &TurnContext{
		Context:        ctx,
		TenantID:       msg.TenantID,
		ConversationID: msg.ConversationID,
		TurnID:         NewID(),
		Message:        msg,
		RecentTurns:    recentTurns,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// NewResumptionContext constructs a system-originated turn context replaying
// a resolved escalation to its origin agent. The synthetic message targets
// the original address and conversation so the agent behaves as if the
// original user had just spoken, but tagged so it completes the authorized
// action instead of re-asking.
func NewResumptionContext(
	ctx context.Context,
	e *Escalation,
	instruction string,
	logger logging.Logger,
) *TurnContext {
	msg := InboundMessage{
		ID:             NewID(),
		TenantID:       e.TenantID,
		Address:        e.OriginAddress,
		ConversationID: e.ConversationID,
		Type:           MessageTypeText,
		Body:           instruction,
	}
	return &TurnContext{
		Context:           ctx,
		TenantID:          e.TenantID,
		ConversationID:    e.ConversationID,
		TurnID:            NewID(),
		Message:           msg,
		RecentTurns:       e.Snapshot,
		Resumption:        true,
		ResumedEscalation: e,
		SystemInstruction: instruction,
		loggerAdapter:     newLoggerAdapter(logger),
	}
}

// loggerAdapter gives TurnContext log methods without exposing the logger
// field. A nil logger degrades to NoOp so agents never have to check.
type loggerAdapter struct {
	logger logging.Logger
}

func newLoggerAdapter(l logging.Logger) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &loggerAdapter{logger: l}
}

func (l *loggerAdapter) LogDebug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *loggerAdapter) LogInfo(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *loggerAdapter) LogWarn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *loggerAdapter) LogError(msg string, args ...any) { l.logger.Error(msg, args...) }

// Done returns a channel closed when the underlying context is cancelled.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// PayloadString returns a string payload value from the resumed escalation,
// or an error when the turn is not a resumption or the key is absent. Origin
// agents use it to read back the context they stored at escalation time.
func (tc *TurnContext) PayloadString(key string) (string, error) {
	if tc.ResumedEscalation == nil {
		return "", fmt.Errorf("no resumed escalation on this turn")
	}
	v, ok := tc.ResumedEscalation.Payload[key]
	if !ok {
		return "", fmt.Errorf("payload key %q not found", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("payload key %q is %T, not string", key, v)
	}
	return s, nil
}
