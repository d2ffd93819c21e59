package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolmesh/escalation/completion"
	"github.com/schoolmesh/escalation/core"
)

type erroringProvider struct{ err error }

func (p erroringProvider) Instruction(*core.TurnContext) (string, error) { return "", p.err }

func TestInstructionStatic(t *testing.T) {
	inst := NewInstructionFromText("You are the school's phrasing assistant.")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(teacherTurn("hello"))
	require.NoError(t, err)
	assert.Equal(t, "You are the school's phrasing assistant.", got)
}

func TestInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(tc *core.TurnContext) (string, error) {
		return "Answer for tenant " + tc.TenantID + ".", nil
	})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(teacherTurn("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Answer for tenant school-a.", got)
}

func TestInstructionFromProviderError(t *testing.T) {
	inst := NewInstructionFromProvider(erroringProvider{err: errors.New("config unavailable")})
	assert.False(t, inst.IsStatic())

	_, err := inst.Resolve(teacherTurn("hello"))
	assert.Error(t, err)
}

func TestPhrasePrefixesInstruction(t *testing.T) {
	mock := completion.NewMockCompleter("test")

	b := NewBaseAgent("phrasing", core.KindTeacher)
	b.SetCompleter(mock)
	b.SetInstruction(NewInstructionFromText("Keep replies under two sentences."))

	reply := b.Phrase(teacherTurn("any update?"), "Acknowledge the request.", "fallback")
	assert.NotEmpty(t, reply)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Keep replies under two sentences.\n\nAcknowledge the request.", reqs[0].Instruction)
}

func TestPhraseInstructionProviderFailureUsesIntent(t *testing.T) {
	mock := completion.NewMockCompleter("test")

	b := NewBaseAgent("phrasing", core.KindTeacher)
	b.SetCompleter(mock)
	b.SetInstruction(NewInstructionFromProvider(erroringProvider{err: errors.New("boom")}))

	reply := b.Phrase(teacherTurn("any update?"), "Acknowledge the request.", "fallback")
	assert.NotEmpty(t, reply)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Acknowledge the request.", reqs[0].Instruction)
}
