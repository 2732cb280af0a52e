package bot

import (
	"context"
	"errors"
	"time"
)

// ErrNotDeletable is returned by transports when the platform refuses to
// delete a message, such as another user's message on Signal.
var ErrNotDeletable = errors.New("message cannot be deleted")

// Chat is where replies go: a peer or a group.
type Chat struct {
	ID    string
	Group bool
}

// MediaRef points at an attachment that has not been downloaded yet.
type MediaRef struct {
	ContentType string
	Filename    string
	// AttachmentID is empty when the platform gave no way to fetch the file.
	AttachmentID string
	Size         int64
}

// Media is downloaded attachment content.
type Media struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Message is an inbound chat message after transport decoding.
type Message struct {
	ID        string
	Chat      Chat
	Sender    string
	Text      string
	Timestamp time.Time

	// FromMe is set on messages the bot itself sent.
	FromMe bool
	// ReplyToBot is set when the message quotes one the bot sent.
	ReplyToBot bool

	Quoted *Message
	Media  *MediaRef

	ViewOnce  bool
	Ephemeral bool
}

// HasMedia reports whether m carries an attachment.
func (m *Message) HasMedia() bool {
	return m != nil && m.Media != nil
}

// Transport sends replies and performs media actions on a chat platform.
type Transport interface {
	// Reply sends text to msg's chat, quoting msg.
	Reply(ctx context.Context, msg Message, text string) error

	// React puts an emoji reaction on msg.
	React(ctx context.Context, msg Message, emoji string) error

	// Download fetches msg's attachment.
	Download(ctx context.Context, msg Message) (*Media, error)

	// SendMedia posts media to chat with an optional caption.
	SendMedia(ctx context.Context, chat Chat, media *Media, caption string) error

	// Delete removes msg for everyone in the chat.
	Delete(ctx context.Context, msg Message) error
}
