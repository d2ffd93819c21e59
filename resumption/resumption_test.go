package resumption

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolmesh/escalation/audit"
	"github.com/schoolmesh/escalation/conversation"
	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/testutil"
	"github.com/schoolmesh/escalation/store"
	"github.com/schoolmesh/escalation/transport"
)

// stubAgent echoes the decision carried on a resumption turn.
type stubAgent struct {
	kind  core.AgentKind
	err   error
	delay time.Duration
	last  *core.TurnContext
}

func (s *stubAgent) Kind() core.AgentKind { return s.kind }
func (s *stubAgent) Name() string         { return string(s.kind) + "-stub" }
func (s *stubAgent) Description() string  { return "stub" }

func (s *stubAgent) HandleTurn(tc *core.TurnContext) (*core.TurnResult, error) {
	s.last = tc
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &core.TurnResult{
		ReplyText: "done: " + tc.ResumedEscalation.Decision.Action,
	}, nil
}

type fixture struct {
	handler   *Handler
	store     *store.InMemoryStore
	transport *transport.InMemoryTransport
	audit     *audit.InMemoryRecorder
	agent     *stubAgent
	conv      *conversation.InMemoryStore
}

func newFixture() *fixture {
	f := &fixture{
		store:     store.NewInMemoryStore(),
		transport: transport.NewInMemoryTransport(),
		audit:     audit.NewInMemoryRecorder(),
		agent:     &stubAgent{kind: core.KindTeacher},
		conv:      conversation.NewInMemoryStore(),
	}
	f.handler = New(f.store, f.conv, f.transport, func(o *Options) {
		o.Audit = f.audit
	})
	f.handler.Register(f.agent)
	return f
}

func seedResolved(t *testing.T, f *fixture) *core.Escalation {
	t.Helper()
	e := testutil.Escalation("school-a", core.StateResolved)
	require.NoError(t, f.store.Create(context.Background(), e))
	return e
}

func TestResumeDeliversAndMarksResumed(t *testing.T) {
	f := newFixture()
	e := seedResolved(t, f)

	resumed, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateResumed, resumed.State)
	assert.NotNil(t, resumed.ResumedAt)

	// The origin agent saw a system-originated turn with the stored context.
	require.NotNil(t, f.agent.last)
	assert.True(t, f.agent.last.Resumption)
	assert.Equal(t, e.ConversationID, f.agent.last.ConversationID)
	assert.Contains(t, f.agent.last.SystemInstruction, "approve")

	// The reply reached the original address.
	sent := f.transport.SentTo("school-a", e.OriginAddress)
	require.Len(t, sent, 1)
	assert.Equal(t, "done: approve", sent[0].Text)

	// Reply appended to the conversation log.
	turns, err := f.conv.Recent(context.Background(), "school-a", e.OriginAddress, 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "assistant", turns[0].Role)

	events := f.audit.EventsFor(e.ID)
	require.Len(t, events, 1)
	assert.Equal(t, core.AuditEscalationResumed, events[0].Kind)
}

func TestResumeIdempotent(t *testing.T) {
	f := newFixture()
	e := seedResolved(t, f)

	_, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	require.NoError(t, err)

	again, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	require.NoError(t, err, "resuming a RESUMED record is a no-op")
	assert.Equal(t, core.StateResumed, again.State)

	assert.Len(t, f.transport.Sent(), 1, "no second delivery")
}

func TestConcurrentResumesDeliverOnce(t *testing.T) {
	f := newFixture()
	f.agent.delay = 100 * time.Millisecond
	e := seedResolved(t, f)

	// A manual retry racing an in-flight slow resume must wait and take the
	// already-resumed no-op path, not deliver a second message.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.handler.Resume(context.Background(), "school-a", e.ID)
			assert.NoError(t, err)
			if res != nil {
				assert.Equal(t, core.StateResumed, res.State)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, f.transport.Sent(), 1, "exactly one outbound message")

	stored, err := f.store.Get(context.Background(), "school-a", e.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateResumed, stored.State)
}

func TestResumeRequiresResolved(t *testing.T) {
	f := newFixture()
	e := testutil.Escalation("school-a", core.StateInAuthority)
	require.NoError(t, f.store.Create(context.Background(), e))

	_, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	var stale *core.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, core.StateInAuthority, stale.Actual)
}

func TestResumeUnknownEscalation(t *testing.T) {
	f := newFixture()
	_, err := f.handler.Resume(context.Background(), "school-a", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAgentFailureLeavesResolved(t *testing.T) {
	f := newFixture()
	f.agent.err = errors.New("agent exploded")
	e := seedResolved(t, f)

	_, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	var rf *core.ResumptionFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "reinvoke", rf.Stage)

	stored, gerr := f.store.Get(context.Background(), "school-a", e.ID)
	require.NoError(t, gerr)
	assert.Equal(t, core.StateResolved, stored.State, "record stays RESOLVED for retry")

	// Retry succeeds once the agent recovers.
	f.agent.err = nil
	resumed, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateResumed, resumed.State)
}

func TestDeliveryFailureLeavesResolved(t *testing.T) {
	f := newFixture()
	f.transport.SetSendErr(errors.New("channel down"))
	e := seedResolved(t, f)

	_, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	var rf *core.ResumptionFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "deliver", rf.Stage)

	stored, gerr := f.store.Get(context.Background(), "school-a", e.ID)
	require.NoError(t, gerr)
	assert.Equal(t, core.StateResolved, stored.State)
}

func TestResumeUnregisteredKind(t *testing.T) {
	f := newFixture()
	e := testutil.Escalation("school-a", core.StateResolved, func(e *core.Escalation) {
		e.OriginKind = core.KindParent
	})
	require.NoError(t, f.store.Create(context.Background(), e))

	_, err := f.handler.Resume(context.Background(), "school-a", e.ID)
	var rf *core.ResumptionFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "reinvoke", rf.Stage)
}
