package signal

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callParams(t *testing.T, transport *MockTransport, method string) map[string]any {
	t.Helper()
	calls := transport.GetCalls(method)
	require.Len(t, calls, 1)
	params, ok := calls[0].(map[string]any)
	require.True(t, ok, "params should be a map, got %T", calls[0])
	return params
}

func TestClientSend(t *testing.T) {
	tests := []struct {
		name       string
		req        *SendRequest
		wantParams map[string]any
		wantErr    bool
	}{
		{
			name: "direct message",
			req:  &SendRequest{Target: Target{Recipients: []string{"+15551234567"}}, Message: "hi"},
			wantParams: map[string]any{
				"account":   "+15550000000",
				"recipient": []string{"+15551234567"},
				"message":   "hi",
			},
		},
		{
			name: "group reply with quote and attachment",
			req: &SendRequest{
				Target:         Target{GroupID: "grp=="},
				Message:        "Saved! 💾",
				Attachments:    []string{"data:image/png;base64,AA=="},
				QuoteTimestamp: 1700000000000,
				QuoteAuthor:    "+15551234567",
				QuoteMessage:   ".get",
			},
			wantParams: map[string]any{
				"account":        "+15550000000",
				"groupId":        "grp==",
				"message":        "Saved! 💾",
				"attachments":    []string{"data:image/png;base64,AA=="},
				"quoteTimestamp": int64(1700000000000),
				"quoteAuthor":    "+15551234567",
				"quoteMessage":   ".get",
			},
		},
		{
			name:    "no target",
			req:     &SendRequest{Message: "hi"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewMockTransport()
			require.NoError(t, transport.SetResult("send", map[string]any{"timestamp": 1700000000123}))
			c := NewClient(transport, WithAccount("+15550000000"))

			resp, err := c.Send(context.Background(), tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, transport.GetCalls("send"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1700000000123), resp.Timestamp)
			assert.Equal(t, tt.wantParams, callParams(t, transport, "send"))
		})
	}
}

func TestClientSendErrors(t *testing.T) {
	target := Target{Recipients: []string{"+15551234567"}}

	t.Run("transport error", func(t *testing.T) {
		transport := NewMockTransport()
		transport.SetError("send", errors.New("socket closed"))
		_, err := NewClient(transport).Send(context.Background(), &SendRequest{Target: target, Message: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "socket closed")
	})

	t.Run("missing timestamp", func(t *testing.T) {
		transport := NewMockTransport()
		require.NoError(t, transport.SetResult("send", map[string]any{}))
		_, err := NewClient(transport).Send(context.Background(), &SendRequest{Target: target, Message: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing timestamp")
	})
}

func TestClientSendReaction(t *testing.T) {
	transport := NewMockTransport()
	require.NoError(t, transport.SetResult("sendReaction", map[string]any{"timestamp": 1}))
	c := NewClient(transport)

	err := c.SendReaction(context.Background(), &ReactionRequest{
		Target:          Target{Recipients: []string{"+15551234567"}},
		Emoji:           "✅",
		TargetAuthor:    "+15551234567",
		TargetTimestamp: 1700000000000,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"recipient":       []string{"+15551234567"},
		"emoji":           "✅",
		"targetAuthor":    "+15551234567",
		"targetTimestamp": int64(1700000000000),
	}, callParams(t, transport, "sendReaction"))
}

func TestClientRemoteDelete(t *testing.T) {
	transport := NewMockTransport()
	require.NoError(t, transport.SetResult("remoteDelete", map[string]any{"timestamp": 1}))
	c := NewClient(transport)

	require.NoError(t, c.RemoteDelete(context.Background(), &DeleteRequest{
		Target:          Target{GroupID: "grp=="},
		TargetTimestamp: 1700000000000,
	}))
	assert.Equal(t, map[string]any{
		"groupId":         "grp==",
		"targetTimestamp": int64(1700000000000),
	}, callParams(t, transport, "remoteDelete"))

	transport.SetError("remoteDelete", &RPCError{Code: -1, Message: "not allowed"})
	err := c.RemoteDelete(context.Background(), &DeleteRequest{Target: Target{GroupID: "grp=="}, TargetTimestamp: 1})
	var rpcErr *RPCError
	assert.ErrorAs(t, err, &rpcErr)
}

func TestClientGetAttachment(t *testing.T) {
	transport := NewMockTransport()
	payload := []byte("%PDF-1.4 hello")
	require.NoError(t, transport.SetResult("getAttachment", map[string]any{
		"data": base64.StdEncoding.EncodeToString(payload),
	}))
	c := NewClient(transport)

	data, err := c.GetAttachment(context.Background(), &AttachmentRequest{
		Target: Target{GroupID: "grp=="},
		ID:     "att-1",
	})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, map[string]any{"id": "att-1", "groupId": "grp=="}, callParams(t, transport, "getAttachment"))

	_, err = c.GetAttachment(context.Background(), &AttachmentRequest{})
	assert.Error(t, err)

	require.NoError(t, transport.SetResult("getAttachment", map[string]any{"data": "%%%"}))
	_, err = c.GetAttachment(context.Background(), &AttachmentRequest{ID: "att-2"})
	assert.Error(t, err)
}

func TestClientSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport := NewMockTransport()
	c := NewClient(transport)

	envelopes, err := c.Subscribe(ctx)
	require.NoError(t, err)

	transport.SimulateNotification(&Notification{Method: "somethingElse"})
	require.NoError(t, transport.SimulateEnvelope(&Envelope{
		SourceNumber: "+15551234567",
		Timestamp:    1700000000000,
		DataMessage:  &DataMessage{Message: ".ping"},
	}))

	select {
	case env := <-envelopes:
		require.NotNil(t, env)
		assert.Equal(t, "+15551234567", env.SourceNumber)
		require.NotNil(t, env.DataMessage)
		assert.Equal(t, ".ping", env.DataMessage.Message)
	case <-ctx.Done():
		t.Fatal("envelope not delivered")
	}

	require.NoError(t, c.Close())
	select {
	case _, ok := <-envelopes:
		assert.False(t, ok)
	case <-ctx.Done():
		t.Fatal("envelope channel not closed")
	}
}

func TestDataURI(t *testing.T) {
	assert.Equal(t,
		"data:application/pdf;filename=doc.pdf;base64,aGk=",
		DataURI("application/pdf", "doc.pdf", []byte("hi")))
	assert.Equal(t,
		"data:application/octet-stream;base64,aGk=",
		DataURI("", "", []byte("hi")))
}
