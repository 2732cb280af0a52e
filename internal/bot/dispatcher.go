// Package bot turns classified chat messages into replies: AI chat, utility
// commands, media actions and printing.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/erika/internal/intent"
	"github.com/Veraticus/erika/internal/printer"
)

// Responder produces in-character text.
type Responder interface {
	Respond(ctx context.Context, sender, text string) string
	RandomQuote(ctx context.Context) string
}

// Printer submits quoted files to the print subsystem.
type Printer interface {
	Print(ctx context.Context, src printer.Source, copies int, obs printer.Observer) (*printer.Job, error)
}

// Recorder receives dispatch events for metrics.
type Recorder interface {
	CommandHandled(intent string)
	PrintFinished(outcome string)
	ReplyFailed()
}

// Print outcomes passed to Recorder.PrintFinished.
const (
	PrintOutcomeQueued      = "queued"
	PrintOutcomeRejected    = "rejected"
	PrintOutcomeUnsupported = "unsupported"
	PrintOutcomeFailed      = "failed"
)

type nopRecorder struct{}

func (nopRecorder) CommandHandled(string) {}
func (nopRecorder) PrintFinished(string)  {}
func (nopRecorder) ReplyFailed()          {}

// Dispatcher classifies each message and runs the matching action.
type Dispatcher struct {
	transport Transport
	responder Responder
	printer   Printer
	commands  intent.Config
	helpText  string
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCommands overrides the command prefix and trigger name.
func WithCommands(cfg intent.Config) Option {
	return func(d *Dispatcher) {
		d.commands = cfg
	}
}

// WithHelpText replaces the generated help reply.
func WithHelpText(text string) Option {
	return func(d *Dispatcher) {
		if strings.TrimSpace(text) != "" {
			d.helpText = text
		}
	}
}

// WithRecorder reports dispatch events.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock replaces time.Now for ping latency.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(transport Transport, responder Responder, p Printer, opts ...Option) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if p == nil {
		return nil, fmt.Errorf("printer is required")
	}

	d := &Dispatcher{
		transport: transport,
		responder: responder,
		printer:   p,
		commands:  intent.DefaultConfig(),
		recorder:  nopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.helpText == "" {
		d.helpText = HelpText(d.commands)
	}
	d.logger = d.logger.With(slog.String("component", "bot"))

	return d, nil
}

// Handle processes one inbound message. It never returns an error; failures
// become replies or log lines.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	res := intent.Classify(intent.Input{
		Text:         msg.Text,
		HasQuoted:    msg.Quoted != nil,
		ReplyToBot:   msg.ReplyToBot,
		QuotedFromMe: msg.Quoted != nil && msg.Quoted.FromMe,
		Sender:       msg.Sender,
	}, d.commands)

	if res.Intent == intent.None {
		return
	}

	d.recorder.CommandHandled(res.Intent.String())
	d.logger.DebugContext(ctx, "dispatching",
		slog.String("intent", res.Intent.String()),
		slog.String("sender", msg.Sender),
		slog.String("id", msg.ID))

	if res.Intent.IsChat() {
		if res.Intent == intent.MentionTrigger && strings.EqualFold(res.Payload, d.commands.ChatCommand()) {
			d.reply(ctx, msg, fmt.Sprintf(ReplyChatHint, d.commands.ChatCommand()))
			return
		}
		d.chat(ctx, msg, res.Payload)
		return
	}

	switch res.Intent {
	case intent.Print:
		d.print(ctx, msg, res.Payload)
	case intent.Help:
		d.reply(ctx, msg, d.helpText)
	case intent.Quote:
		d.reply(ctx, msg, d.responder.RandomQuote(ctx))
	case intent.Ping:
		d.ping(ctx, msg)
	case intent.Delete:
		d.delete(ctx, msg)
	case intent.FetchMedia:
		d.fetch(ctx, msg)
	}
}

func (d *Dispatcher) chat(ctx context.Context, msg Message, prompt string) {
	d.reply(ctx, msg, d.responder.Respond(ctx, msg.Sender, prompt))
}

func (d *Dispatcher) ping(ctx context.Context, msg Message) {
	latency := d.now().Sub(msg.Timestamp).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	d.reply(ctx, msg, fmt.Sprintf(ReplyPong, latency))
}

func (d *Dispatcher) delete(ctx context.Context, msg Message) {
	if msg.Quoted == nil {
		d.reply(ctx, msg, fmt.Sprintf(ReplyDeleteNoQuote, d.commands.Command(intent.DeleteCommand)))
		return
	}

	if err := d.transport.Delete(ctx, *msg.Quoted); err != nil {
		d.logger.ErrorContext(ctx, "failed to delete quoted message",
			slog.String("id", msg.Quoted.ID),
			slog.Any("error", err))
		d.reply(ctx, msg, ReplyDeleteFailed)
		return
	}

	// The command itself usually belongs to someone else and may not be
	// deletable on this platform.
	if err := d.transport.Delete(ctx, msg); err != nil {
		if errors.Is(err, ErrNotDeletable) {
			d.logger.DebugContext(ctx, "command message not deletable", slog.String("id", msg.ID))
			return
		}
		d.logger.ErrorContext(ctx, "failed to delete command message",
			slog.String("id", msg.ID),
			slog.Any("error", err))
		d.reply(ctx, msg, ReplyDeleteFailed)
	}
}

func (d *Dispatcher) fetch(ctx context.Context, msg Message) {
	quoted := msg.Quoted
	if quoted == nil {
		d.reply(ctx, msg, ReplyFetchNoQuote)
		return
	}
	if quoted.ViewOnce || quoted.Ephemeral {
		d.reply(ctx, msg, ReplyFetchViewOnce)
		return
	}
	if !quoted.HasMedia() {
		d.reply(ctx, msg, ReplyFetchNoMedia)
		return
	}

	media, err := d.transport.Download(ctx, *quoted)
	if err != nil {
		d.logger.ErrorContext(ctx, "media download failed",
			slog.String("id", quoted.ID),
			slog.Any("error", err))
		d.reply(ctx, msg, ReplyFetchFailed)
		return
	}
	if media == nil || len(media.Data) == 0 {
		d.reply(ctx, msg, ReplyFetchEmpty)
		return
	}

	if err := d.transport.SendMedia(ctx, msg.Chat, media, FetchCaption); err != nil {
		d.logger.ErrorContext(ctx, "failed to resend media", slog.Any("error", err))
		d.recorder.ReplyFailed()
		d.reply(ctx, msg, ReplyFetchFailed)
		return
	}

	if err := d.transport.React(ctx, msg, FetchReaction); err != nil {
		d.logger.WarnContext(ctx, "failed to react", slog.Any("error", err))
	}
}

// reply sends text and logs failures; there is nobody else to tell.
func (d *Dispatcher) reply(ctx context.Context, msg Message, text string) {
	if err := d.transport.Reply(ctx, msg, text); err != nil {
		d.recorder.ReplyFailed()
		d.logger.ErrorContext(ctx, "failed to send reply",
			slog.String("chat", msg.Chat.ID),
			slog.Any("error", err))
	}
}
