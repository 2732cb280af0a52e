package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Veraticus/erika/internal/bot"
)

// DefaultQuoteTTL is how long recent messages stay resolvable as quotes.
const DefaultQuoteTTL = 24 * time.Hour

// Errors returned by Download.
var (
	ErrNoAttachment          = errors.New("message has no attachment")
	ErrAttachmentUnavailable = errors.New("attachment is not available for download")
)

// Messenger adapts a signal-cli Client to bot.Transport. It remembers recent
// messages, including the ones it sends, so quotes can be resolved back to
// the full message with its attachment.
type Messenger struct {
	client  Client
	account string
	recent  *cache.Cache
	logger  *slog.Logger

	// self holds every identity known to belong to the account: the
	// configured one plus the number or ACI learned from sync envelopes.
	selfMu sync.RWMutex
	self   map[string]struct{}

	mu           sync.Mutex
	subscription *subscription
}

// subscription tracks an active message subscription.
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// MessengerOption configures a Messenger.
type MessengerOption func(*messengerConfig)

type messengerConfig struct {
	quoteTTL time.Duration
	logger   *slog.Logger
}

// WithQuoteTTL sets how long messages can be resolved from quotes.
func WithQuoteTTL(ttl time.Duration) MessengerOption {
	return func(c *messengerConfig) {
		if ttl > 0 {
			c.quoteTTL = ttl
		}
	}
}

// WithMessengerLogger sets a custom logger.
func WithMessengerLogger(logger *slog.Logger) MessengerOption {
	return func(c *messengerConfig) {
		c.logger = logger
	}
}

// NewMessenger creates a messenger for account.
func NewMessenger(client Client, account string, opts ...MessengerOption) (*Messenger, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}

	cfg := messengerConfig{quoteTTL: DefaultQuoteTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Messenger{
		client:  client,
		account: account,
		recent:  cache.New(cfg.quoteTTL, cfg.quoteTTL/2),
		logger:  cfg.logger.With(slog.String("component", "signal")),
		self:    map[string]struct{}{account: {}},
	}, nil
}

// Remembered returns how many messages are resolvable as quotes.
func (m *Messenger) Remembered() int {
	return m.recent.ItemCount()
}

// Subscribe returns a channel of decoded inbound messages. A new call
// replaces the previous subscription.
func (m *Messenger) Subscribe(ctx context.Context) (<-chan bot.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscription != nil {
		m.subscription.cancel()
		<-m.subscription.done
		m.subscription = nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	envelopes, err := m.client.Subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to messages: %w", err)
	}

	out := make(chan bot.Message)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	m.subscription = sub

	go m.runSubscription(subCtx, sub, envelopes, out)

	return out, nil
}

func (m *Messenger) runSubscription(ctx context.Context, sub *subscription, envelopes <-chan *Envelope, out chan<- bot.Message) {
	defer close(sub.done)
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return

		case env, ok := <-envelopes:
			if !ok {
				return
			}
			msg, ok := m.convertEnvelope(env)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// convertEnvelope turns an envelope into a message worth dispatching. Every
// data message is remembered for quote resolution, even ones not dispatched.
func (m *Messenger) convertEnvelope(env *Envelope) (bot.Message, bool) {
	if env == nil {
		return bot.Message{}, false
	}

	if env.SyncMessage != nil {
		m.learnSelf(env)
		if env.SyncMessage.SentMessage != nil {
			m.rememberSync(env.SyncMessage.SentMessage)
		}
		return bot.Message{}, false
	}

	dm := env.DataMessage
	if dm == nil || dm.Reaction != nil {
		return bot.Message{}, false
	}

	sender := senderID(env)
	if dm.RemoteDelete != nil {
		m.recent.Delete(recentKey(sender, dm.RemoteDelete.Timestamp))
		return bot.Message{}, false
	}
	if sender == "" || m.isSelf(env.SourceNumber, env.SourceUUID, env.Source) {
		return bot.Message{}, false
	}

	ts := dm.Timestamp
	if ts == 0 {
		ts = env.Timestamp
	}

	chat := bot.Chat{ID: sender}
	if dm.GroupInfo != nil && dm.GroupInfo.GroupID != "" {
		chat = bot.Chat{ID: dm.GroupInfo.GroupID, Group: true}
	}

	msg := bot.Message{
		ID:        strconv.FormatInt(ts, 10),
		Chat:      chat,
		Sender:    sender,
		Text:      dm.Message,
		Timestamp: time.UnixMilli(ts),
		Media:     mediaRef(dm.Attachments),
		ViewOnce:  dm.ViewOnce,
		Ephemeral: dm.ExpiresInSeconds > 0,
	}
	m.recent.SetDefault(recentKey(sender, ts), msg)

	if dm.Quote != nil {
		msg.Quoted = m.resolveQuote(dm.Quote, chat)
		msg.ReplyToBot = m.isSelf(dm.Quote.AuthorNumber, dm.Quote.AuthorUUID, dm.Quote.Author)
	}

	if msg.Text == "" {
		return bot.Message{}, false
	}
	return msg, true
}

// resolveQuote looks the quoted message up in the recent cache. Unknown
// messages are rebuilt from the quote metadata; their media cannot be
// downloaded since Signal quotes carry no attachment id.
func (m *Messenger) resolveQuote(q *Quote, chat bot.Chat) *bot.Message {
	author := quoteAuthor(q)
	fromMe := m.isSelf(q.AuthorNumber, q.AuthorUUID, q.Author)

	// Own messages are remembered under the account; everyone else under
	// whichever identity their envelope carried.
	keys := []string{q.AuthorNumber, q.AuthorUUID, q.Author}
	if fromMe {
		keys = []string{m.account}
	}
	for _, id := range keys {
		if id == "" {
			continue
		}
		if cached, ok := m.recent.Get(recentKey(id, q.ID)); ok {
			if msg, ok := cached.(bot.Message); ok {
				return &msg
			}
		}
	}

	quoted := &bot.Message{
		ID:        strconv.FormatInt(q.ID, 10),
		Chat:      chat,
		Sender:    author,
		Text:      q.Text,
		Timestamp: time.UnixMilli(q.ID),
		FromMe:    fromMe,
	}
	if len(q.Attachments) > 0 {
		quoted.Media = &bot.MediaRef{
			ContentType: q.Attachments[0].ContentType,
			Filename:    q.Attachments[0].Filename,
		}
	}
	return quoted
}

func (m *Messenger) rememberSync(sent *SentSyncMessage) {
	chat := bot.Chat{ID: sent.DestinationNumber}
	if chat.ID == "" {
		chat.ID = sent.Destination
	}
	if sent.GroupInfo != nil && sent.GroupInfo.GroupID != "" {
		chat = bot.Chat{ID: sent.GroupInfo.GroupID, Group: true}
	}
	m.remember(bot.Message{
		ID:        strconv.FormatInt(sent.Timestamp, 10),
		Chat:      chat,
		Sender:    m.account,
		Text:      sent.Message,
		Timestamp: time.UnixMilli(sent.Timestamp),
		FromMe:    true,
		Media:     mediaRef(sent.Attachments),
	})
}

func (m *Messenger) remember(msg bot.Message) {
	m.recent.SetDefault(recentKey(msg.Sender, msg.Timestamp.UnixMilli()), msg)
}

// learnSelf records the identities of a sync envelope's source. Sync
// messages only ever come from the account's own devices, but a source is
// trusted only when one of its ids is already known.
func (m *Messenger) learnSelf(env *Envelope) {
	ids := []string{env.SourceNumber, env.SourceUUID, env.Source}
	if !m.isSelf(ids...) {
		return
	}

	m.selfMu.Lock()
	defer m.selfMu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := m.self[id]; !ok {
			m.self[id] = struct{}{}
			m.logger.Debug("learned account identity", slog.String("id", MaskAccount(id)))
		}
	}
}

// isSelf reports whether any of ids belongs to the account.
func (m *Messenger) isSelf(ids ...string) bool {
	m.selfMu.RLock()
	defer m.selfMu.RUnlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := m.self[id]; ok {
			return true
		}
	}
	return false
}

// Reply implements bot.Transport.
func (m *Messenger) Reply(ctx context.Context, msg bot.Message, text string) error {
	req := &SendRequest{
		Target:  target(msg.Chat),
		Message: text,
	}
	if !msg.Timestamp.IsZero() && msg.Sender != "" {
		req.QuoteTimestamp = msg.Timestamp.UnixMilli()
		req.QuoteAuthor = msg.Sender
		req.QuoteMessage = msg.Text
	}
	return m.send(ctx, msg.Chat, req)
}

// SendMedia implements bot.Transport.
func (m *Messenger) SendMedia(ctx context.Context, chat bot.Chat, media *bot.Media, caption string) error {
	if media == nil || len(media.Data) == 0 {
		return fmt.Errorf("media cannot be empty")
	}
	return m.send(ctx, chat, &SendRequest{
		Target:      target(chat),
		Message:     caption,
		Attachments: []string{DataURI(media.ContentType, media.Filename, media.Data)},
	})
}

func (m *Messenger) send(ctx context.Context, chat bot.Chat, req *SendRequest) error {
	if chat.ID == "" {
		return fmt.Errorf("recipient cannot be empty")
	}

	resp, err := m.client.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	m.remember(bot.Message{
		ID:        strconv.FormatInt(resp.Timestamp, 10),
		Chat:      chat,
		Sender:    m.account,
		Text:      req.Message,
		Timestamp: time.UnixMilli(resp.Timestamp),
		FromMe:    true,
	})
	return nil
}

// React implements bot.Transport.
func (m *Messenger) React(ctx context.Context, msg bot.Message, emoji string) error {
	err := m.client.SendReaction(ctx, &ReactionRequest{
		Target:          target(msg.Chat),
		Emoji:           emoji,
		TargetAuthor:    msg.Sender,
		TargetTimestamp: msg.Timestamp.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to react: %w", err)
	}
	return nil
}

// Download implements bot.Transport.
func (m *Messenger) Download(ctx context.Context, msg bot.Message) (*bot.Media, error) {
	if msg.Media == nil {
		return nil, ErrNoAttachment
	}
	if msg.Media.AttachmentID == "" {
		return nil, ErrAttachmentUnavailable
	}

	data, err := m.client.GetAttachment(ctx, &AttachmentRequest{
		Target: target(msg.Chat),
		ID:     msg.Media.AttachmentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}

	return &bot.Media{
		ContentType: msg.Media.ContentType,
		Filename:    msg.Media.Filename,
		Data:        data,
	}, nil
}

// Delete implements bot.Transport. Signal only allows deleting the account's
// own messages.
func (m *Messenger) Delete(ctx context.Context, msg bot.Message) error {
	if !msg.FromMe && !m.isSelf(msg.Sender) {
		return fmt.Errorf("%w: message %s was sent by %s", bot.ErrNotDeletable, msg.ID, msg.Sender)
	}

	ts := msg.Timestamp.UnixMilli()
	if err := m.client.RemoteDelete(ctx, &DeleteRequest{Target: target(msg.Chat), TargetTimestamp: ts}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	m.recent.Delete(recentKey(m.account, ts))
	return nil
}

func target(chat bot.Chat) Target {
	if chat.Group {
		return Target{GroupID: chat.ID}
	}
	return Target{Recipients: []string{chat.ID}}
}

func mediaRef(attachments []Attachment) *bot.MediaRef {
	if len(attachments) == 0 {
		return nil
	}
	a := attachments[0]
	return &bot.MediaRef{
		ContentType:  a.ContentType,
		Filename:     a.Filename,
		AttachmentID: a.ID,
		Size:         a.Size,
	}
}

// senderID prefers the phone number, then the ACI, as the stable identity.
func senderID(env *Envelope) string {
	switch {
	case env.SourceNumber != "":
		return env.SourceNumber
	case env.SourceUUID != "":
		return env.SourceUUID
	default:
		return env.Source
	}
}

func quoteAuthor(q *Quote) string {
	switch {
	case q.AuthorNumber != "":
		return q.AuthorNumber
	case q.AuthorUUID != "":
		return q.AuthorUUID
	default:
		return q.Author
	}
}

func recentKey(author string, ts int64) string {
	return author + ":" + strconv.FormatInt(ts, 10)
}
