// Package signal connects the bot to Signal through signal-cli's JSON-RPC
// daemon.
package signal

import (
	"context"

	"github.com/Veraticus/erika/internal/bot"
	"github.com/Veraticus/erika/internal/queue"
)

// Source produces decoded inbound messages. *Messenger implements it.
type Source interface {
	Subscribe(ctx context.Context) (<-chan bot.Message, error)
}

// Submitter runs tasks in per-key order. *queue.Lanes implements it.
type Submitter interface {
	Submit(key string, task queue.Task) error
}

// MessageHandler processes one message. *bot.Dispatcher implements it.
type MessageHandler interface {
	Handle(ctx context.Context, msg bot.Message)
}
