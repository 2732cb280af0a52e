package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/erika/internal/conversation"
)

// DefaultTimeout bounds one completion round-trip.
const DefaultTimeout = 90 * time.Second

// Default persona strings, used for any field a Persona leaves empty.
const (
	DefaultFallback      = "Hmph… something went wrong. Try again later!"
	DefaultQuoteFallback = "❌ Failed to load quote."
	DefaultQuotePrompt   = `Generate a random anime quote
MANDATORY FORMAT:
"Quote here."
- Character Name (Anime Name)

Keep it short. Do NOT add anything else.`
)

// Persona is the character the responder plays.
type Persona struct {
	SystemPrompt  string
	QuotePrompt   string
	Fallback      string
	QuoteFallback string
}

func (p Persona) withDefaults() Persona {
	if p.QuotePrompt == "" {
		p.QuotePrompt = DefaultQuotePrompt
	}
	if p.Fallback == "" {
		p.Fallback = DefaultFallback
	}
	if p.QuoteFallback == "" {
		p.QuoteFallback = DefaultQuoteFallback
	}
	return p
}

// Observer is notified of each completion outcome. kind is "chat" or "quote".
type Observer interface {
	ObserveCompletion(kind string, d time.Duration, err error)
}

// Responder answers chat messages in character, remembering each sender's
// conversation.
type Responder struct {
	completer Completer
	store     *conversation.Store
	persona   Persona
	timeout   time.Duration
	logger    *slog.Logger
	observer  Observer
}

// Option configures a Responder.
type Option func(*Responder)

// WithTimeout bounds each completion. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		r.timeout = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Responder) {
		r.logger = logger
	}
}

// WithObserver reports completion outcomes, e.g. to metrics.
func WithObserver(o Observer) Option {
	return func(r *Responder) {
		r.observer = o
	}
}

// NewResponder creates a responder backed by completer and store.
func NewResponder(completer Completer, store *conversation.Store, persona Persona, opts ...Option) (*Responder, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	r := &Responder{
		completer: completer,
		store:     store,
		persona:   persona.withDefaults(),
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "ai.responder"))

	return r, nil
}

// Respond continues sender's conversation with text and returns the reply.
// On any failure it returns the persona fallback and leaves the history as
// it was.
func (r *Responder) Respond(ctx context.Context, sender, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return r.persona.Fallback
	}

	sess := r.store.GetOrCreate(sender)
	release := sess.Begin()
	defer release()

	history := sess.History()
	reply, err := r.complete(ctx, "chat", Request{
		System:  r.persona.SystemPrompt,
		History: history,
		Prompt:  text,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "chat completion failed",
			slog.String("sender", sender),
			slog.Int("history_turns", len(history)),
			slog.Any("error", err))
		return r.persona.Fallback
	}

	sess.Append(
		conversation.Turn{Role: conversation.RoleUser, Text: text},
		conversation.Turn{Role: conversation.RoleModel, Text: reply},
	)

	r.logger.DebugContext(ctx, "chat reply",
		slog.String("sender", sender),
		slog.Int("prompt_length", len(text)),
		slog.Int("reply_length", len(reply)))

	return reply
}

// RandomQuote asks for a single formatted quote with no conversation memory.
func (r *Responder) RandomQuote(ctx context.Context) string {
	quote, err := r.complete(ctx, "quote", Request{Prompt: r.persona.QuotePrompt})
	if err != nil {
		r.logger.ErrorContext(ctx, "quote completion failed", slog.Any("error", err))
		return r.persona.QuoteFallback
	}
	return quote
}

// complete runs one bounded completion and normalizes the result. Panics in
// the completer are converted into errors.
func (r *Responder) complete(ctx context.Context, kind string, req Request) (text string, err error) {
	if req.Prompt == "" {
		return "", ErrEmptyPrompt
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("completer panic: %v", p)
		}
		if r.observer != nil {
			r.observer.ObserveCompletion(kind, time.Since(start), err)
		}
	}()

	text, err = r.completer.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", kind, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
