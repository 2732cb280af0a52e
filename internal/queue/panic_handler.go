package queue

import (
	"context"
	"log/slog"
	"runtime/debug"
)

// PanicHandler is told about tasks that panicked.
type PanicHandler interface {
	HandlePanic(key string, panicValue any, stackTrace []byte)
}

// DefaultPanicHandler logs panics with stack traces.
type DefaultPanicHandler struct {
	logger *slog.Logger
}

// NewDefaultPanicHandler returns the default panic handler. A nil logger
// means slog.Default().
func NewDefaultPanicHandler(logger *slog.Logger) *DefaultPanicHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultPanicHandler{logger: logger}
}

// HandlePanic logs the panic with its stack trace.
func (h *DefaultPanicHandler) HandlePanic(key string, panicValue any, stackTrace []byte) {
	h.logger.ErrorContext(context.Background(), "PANIC in lane task",
		slog.String("lane", key),
		slog.Any("panic", panicValue),
		slog.String("stack_trace", string(stackTrace)))
}

// MetricsPanicHandler counts panics before delegating.
type MetricsPanicHandler struct {
	wrapped PanicHandler
	onPanic func(key string, panicValue any)
}

// NewMetricsPanicHandler wraps another handler to add metrics tracking.
func NewMetricsPanicHandler(wrapped PanicHandler, onPanic func(string, any)) *MetricsPanicHandler {
	return &MetricsPanicHandler{
		wrapped: wrapped,
		onPanic: onPanic,
	}
}

// HandlePanic calls the metrics callback and delegates to the wrapped handler.
func (h *MetricsPanicHandler) HandlePanic(key string, panicValue any, stackTrace []byte) {
	if h.onPanic != nil {
		h.onPanic(key, panicValue)
	}
	if h.wrapped != nil {
		h.wrapped.HandlePanic(key, panicValue, stackTrace)
	}
}

// HandleRecoveredPanic passes a recovered panic to handler along with the
// current stack.
func HandleRecoveredPanic(key string, panicValue any, handler PanicHandler) {
	if handler == nil {
		handler = NewDefaultPanicHandler(nil)
	}
	handler.HandlePanic(key, panicValue, debug.Stack())
}
