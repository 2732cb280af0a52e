package queue

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	keys   []string
	values []any
}

func (h *recordingHandler) HandlePanic(key string, value any, _ []byte) {
	h.keys = append(h.keys, key)
	h.values = append(h.values, value)
}

func TestDefaultPanicHandlerLogs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewDefaultPanicHandler(slog.New(slog.NewTextHandler(&buf, nil)))

	handler.HandlePanic("alice", "boom", []byte("stack here"))

	out := buf.String()
	assert.Contains(t, out, "PANIC in lane task")
	assert.Contains(t, out, "lane=alice")
	assert.Contains(t, out, "boom")
}

func TestMetricsPanicHandler(t *testing.T) {
	inner := &recordingHandler{}
	var counted []string
	handler := NewMetricsPanicHandler(inner, func(key string, _ any) {
		counted = append(counted, key)
	})

	handler.HandlePanic("alice", "first", nil)
	handler.HandlePanic("bob", "second", nil)

	assert.Equal(t, []string{"alice", "bob"}, counted)
	assert.Equal(t, []string{"alice", "bob"}, inner.keys)
	assert.Equal(t, []any{"first", "second"}, inner.values)
}

func TestHandleRecoveredPanicPassesStack(t *testing.T) {
	var stack []byte
	capture := panicFunc(func(_ string, _ any, s []byte) { stack = s })
	HandleRecoveredPanic("alice", "boom", capture)
	assert.NotEmpty(t, stack)
}

type panicFunc func(string, any, []byte)

func (f panicFunc) HandlePanic(key string, value any, stack []byte) { f(key, value, stack) }
