package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolmesh/escalation/core"
	"github.com/schoolmesh/escalation/internal/testutil"
)

func TestSendRecords(t *testing.T) {
	tr := NewInMemoryTransport()

	id, err := tr.Send(context.Background(), "school-a", "+234800", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Text)
	assert.Equal(t, id, sent[0].MessageID)

	assert.Len(t, tr.SentTo("school-a", "+234800"), 1)
	assert.Empty(t, tr.SentTo("school-b", "+234800"))
}

func TestSendErrInjection(t *testing.T) {
	tr := NewInMemoryTransport(func(o *Options) { o.SendErr = errors.New("down") })

	_, err := tr.Send(context.Background(), "school-a", "+234800", "hello")
	assert.Error(t, err)
	assert.Empty(t, tr.Sent())

	tr.SetSendErr(nil)
	_, err = tr.Send(context.Background(), "school-a", "+234800", "hello")
	assert.NoError(t, err)
}

func TestInjectDeliversToHandler(t *testing.T) {
	tr := NewInMemoryTransport()

	var got core.InboundMessage
	tr.OnMessage(func(_ context.Context, msg core.InboundMessage) {
		got = msg
	})

	msg := testutil.Inbound("school-a", "+234800", "ping")
	tr.Inject(context.Background(), msg)
	assert.Equal(t, "ping", got.Body)
}
