package signal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/erika/internal/bot"
)

// Handler pumps inbound messages into per-sender lanes.
type Handler struct {
	source  Source
	lanes   Submitter
	handler MessageHandler
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a new Signal handler.
func NewHandler(source Source, lanes Submitter, handler MessageHandler, opts ...HandlerOption) (*Handler, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if lanes == nil {
		return nil, fmt.Errorf("lanes are required")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}

	h := &Handler{
		source:  source,
		lanes:   lanes,
		handler: handler,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Start processes messages until ctx is canceled or the source closes.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return fmt.Errorf("handler already running")
	}
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	messages, err := h.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to messages: %w", err)
	}

	h.logger.InfoContext(ctx, "signal handler started")

	h.wg.Add(1)
	go h.processMessages(ctx, messages)
	h.wg.Wait()

	h.logger.InfoContext(ctx, "signal handler stopped")
	return nil
}

// processMessages handles incoming messages from Signal.
func (h *Handler) processMessages(ctx context.Context, messages <-chan bot.Message) {
	defer h.wg.Done()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("message processor stopping due to context cancellation")
			return

		case msg, ok := <-messages:
			if !ok {
				h.logger.Debug("message channel closed")
				return
			}
			h.enqueue(msg)
		}
	}
}

// enqueue hands msg to its sender's lane without blocking.
func (h *Handler) enqueue(msg bot.Message) {
	h.logger.Debug("received message",
		slog.String("from", msg.Sender),
		slog.String("id", msg.ID),
		slog.Int("text_length", len(msg.Text)))

	err := h.lanes.Submit(msg.Sender, func(ctx context.Context) {
		h.handler.Handle(ctx, msg)
	})
	if err != nil {
		h.logger.Error("failed to enqueue message",
			slog.Any("error", err),
			slog.String("from", msg.Sender),
			slog.String("id", msg.ID))
	}
}

// IsRunning returns whether the handler is currently running.
func (h *Handler) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
