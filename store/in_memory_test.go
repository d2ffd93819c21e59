package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/testutil"
)

func TestCreateAndGet(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, e))

	got, err := s.Get(ctx, "school-a", e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, core.StatePaused, got.State)

	_, err = s.Get(ctx, "school-a", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateRejectsSecondOpenTrigger(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	first := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, first))

	second := testutil.Escalation("school-a", core.StatePaused)
	err := s.Create(ctx, second)
	require.Error(t, err)
	var dup *core.DuplicateEscalationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)
}

func TestTenantIsolation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	ea := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, ea))

	// Same trigger key in another tenant is a different escalation.
	eb := testutil.Escalation("school-b", core.StatePaused)
	require.NoError(t, s.Create(ctx, eb))

	_, err := s.Get(ctx, "school-b", ea.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	open, err := s.ListOpen(ctx, "school-a")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, ea.ID, open[0].ID)
}

func TestTransitionCAS(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, e))

	got, err := s.Transition(ctx, "school-a", e.ID, core.StatePaused, core.StateInAuthority)
	require.NoError(t, err)
	assert.Equal(t, core.StateInAuthority, got.State)

	// Repeating the same transition must fail: the record moved on.
	_, err = s.Transition(ctx, "school-a", e.ID, core.StatePaused, core.StateInAuthority)
	var stale *core.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, core.StateInAuthority, stale.Actual)

	// Illegal edges are rejected even from the right state.
	_, err = s.Transition(ctx, "school-a", e.ID, core.StateInAuthority, core.StateResumed)
	assert.ErrorAs(t, err, &stale)
}

func TestResolveAndMarkResumed(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, e))
	_, err := s.Transition(ctx, "school-a", e.ID, core.StatePaused, core.StateInAuthority)
	require.NoError(t, err)

	resolved, err := s.Resolve(ctx, "school-a", e.ID, core.Decision{
		Action:          "approve",
		ResolverAddress: "+23499",
		IntentClear:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, core.StateResolved, resolved.State)
	require.NotNil(t, resolved.Decision)
	assert.Equal(t, "approve", resolved.Decision.Action)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.False(t, resolved.Decision.DecidedAt.IsZero())

	resumed, err := s.MarkResumed(ctx, "school-a", e.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateResumed, resumed.State)
	assert.NotNil(t, resumed.ResumedAt)

	// Resuming again is a stale transition.
	_, err = s.MarkResumed(ctx, "school-a", e.ID)
	var stale *core.StaleStateError
	assert.ErrorAs(t, err, &stale)
}

func TestMarkResumedRequiresDecision(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StateResolved, func(e *core.Escalation) {
		e.Decision = nil
	})
	require.NoError(t, s.Create(ctx, e))

	_, err := s.MarkResumed(ctx, "school-a", e.ID)
	var stale *core.StaleStateError
	assert.ErrorAs(t, err, &stale)
}

func TestFail(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, e))

	failed, err := s.Fail(ctx, "school-a", e.ID, "transport gone")
	require.NoError(t, err)
	assert.Equal(t, core.StateFailed, failed.State)
	assert.Equal(t, "transport gone", failed.FailureReason)

	// Terminal records cannot fail again.
	_, err = s.Fail(ctx, "school-a", e.ID, "again")
	var stale *core.StaleStateError
	assert.ErrorAs(t, err, &stale)
}

func TestFindOpenIgnoresClosed(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, e))

	found, err := s.FindOpen(ctx, "school-a", e.ConversationID, e.Type)
	require.NoError(t, err)
	assert.Equal(t, e.ID, found.ID)

	_, err = s.Transition(ctx, "school-a", e.ID, core.StatePaused, core.StateInAuthority)
	require.NoError(t, err)
	_, err = s.Resolve(ctx, "school-a", e.ID, core.Decision{Action: "approve", ResolverAddress: "x", IntentClear: true})
	require.NoError(t, err)

	// RESOLVED no longer blocks a new escalation for the same trigger.
	_, err = s.FindOpen(ctx, "school-a", e.ConversationID, e.Type)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	paused := testutil.Escalation("school-a", core.StatePaused)
	require.NoError(t, s.Create(ctx, paused))

	other := testutil.Escalation("school-a", core.StatePaused, func(e *core.Escalation) {
		e.Type = "payment_exception"
		e.OriginKind = core.KindParent
		e.ConversationID = "school-a:+2348000000002"
	})
	require.NoError(t, s.Create(ctx, other))

	byType, err := s.List(ctx, "school-a", core.EscalationFilters{Type: "payment_exception"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, other.ID, byType[0].ID)

	byKind, err := s.List(ctx, "school-a", core.EscalationFilters{OriginKind: core.KindTeacher})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, paused.ID, byKind[0].ID)

	all, err := s.List(ctx, "school-a", core.EscalationFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestArchiveHidesFromDefaultList(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StateResumed)
	require.NoError(t, s.Create(ctx, e))
	require.NoError(t, s.Archive(ctx, "school-a", e.ID))

	visible, err := s.List(ctx, "school-a", core.EscalationFilters{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	withArchived, err := s.List(ctx, "school-a", core.EscalationFilters{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, withArchived, 1)
	assert.True(t, withArchived[0].Archived)
}

func TestConcurrentTransitionSingleWinner(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := testutil.Escalation("school-a", core.StateInAuthority)
	require.NoError(t, s.Create(ctx, e))

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Resolve(ctx, "school-a", e.ID, core.Decision{
				Action:          "approve",
				ResolverAddress: "+23499",
				IntentClear:     true,
			})
			if err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one racer may resolve the record")
}
