package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCompleterCannedResponse(t *testing.T) {
	m := NewMockCompleter("test")
	m.AddResponse("hello", "hi there")

	resp, err := m.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestMockCompleterFallbackAndLastUserMessage(t *testing.T) {
	m := NewMockCompleter("test")

	resp, err := m.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: "user", Text: "first"},
			{Role: "assistant", Text: "reply"},
			{Role: "user", Text: "second"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: second", resp.Text)
}

func TestMockCompleterErrors(t *testing.T) {
	m := NewMockCompleter("test")

	_, err := m.Complete(context.Background(), Request{})
	assert.Error(t, err, "empty message list is rejected")

	m.FailWith(errors.New("down"))
	_, err = m.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "hello"}},
	})
	assert.EqualError(t, err, "down")

	assert.Equal(t, "mock", m.Info().Provider)
}
