package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolmesh/escalation/internal/testutil"
)

func TestAppendAndRecent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		turn := testutil.Turn("school-a", "+234800", "user", fmt.Sprintf("message %d", i))
		require.NoError(t, s.Append(ctx, turn))
	}

	turns, err := s.Recent(ctx, "school-a", "+234800", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "message 2", turns[0].Text)
	assert.Equal(t, "message 4", turns[2].Text)
}

func TestRecentEmptyLog(t *testing.T) {
	s := NewInMemoryStore()

	turns, err := s.Recent(context.Background(), "school-a", "+234800", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestTenantIsolation(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testutil.Turn("school-a", "+234800", "user", "from a")))
	require.NoError(t, s.Append(ctx, testutil.Turn("school-b", "+234800", "user", "from b")))

	turns, err := s.Recent(ctx, "school-a", "+234800", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "from a", turns[0].Text)
}

func TestWindowCap(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.MaxTurnsPerLog = 4 })
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(ctx, testutil.Turn("school-a", "+234800", "user", fmt.Sprintf("m%d", i))))
	}

	turns, err := s.Recent(ctx, "school-a", "+234800", 100)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "m6", turns[0].Text)
	assert.Equal(t, "m9", turns[3].Text)
}
