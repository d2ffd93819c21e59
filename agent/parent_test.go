package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/testutil"
)

func parentTurn(body string) *core.TurnContext {
	msg := testutil.Inbound("school-a", "+234parent", body)
	return core.NewTurnContext(context.Background(), msg, nil, nil)
}

func TestPaymentExceptionEscalates(t *testing.T) {
	a := NewParentAgent("parent")

	tests := []string{
		"can I get an extension on the school fees?",
		"please waive the late payment charge",
		"is a payment plan possible for the tuition?",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			result, err := a.HandleTurn(parentTurn(text))
			require.NoError(t, err)

			require.NotNil(t, result.Intent)
			assert.Equal(t, EscalationTypePaymentException, result.Intent.Type)
			assert.Equal(t, core.KindParent, result.Intent.OriginKind)
			assert.Equal(t, text, result.Intent.Payload["request_text"])
			assert.Contains(t, result.ReplyText, "administration")
		})
	}
}

func TestOrdinaryParentMessageDoesNotEscalate(t *testing.T) {
	a := NewParentAgent("parent")

	result, err := a.HandleTurn(parentTurn("when does the new term start?"))
	require.NoError(t, err)
	assert.Nil(t, result.Intent)
	assert.NotEmpty(t, result.ReplyText)
}

func TestParentResumption(t *testing.T) {
	a := NewParentAgent("parent")

	e := testutil.Escalation("school-a", core.StateResolved, func(e *core.Escalation) {
		e.OriginKind = core.KindParent
		e.Type = EscalationTypePaymentException
		e.NeededDescription = "Grant a two-week fee extension"
	})
	tc := core.NewResumptionContext(context.Background(), e, "administrator approved", nil)

	result, err := a.HandleTurn(tc)
	require.NoError(t, err)
	assert.Contains(t, result.ReplyText, "approved")
	assert.Contains(t, result.ReplyText, "fee extension")
}
