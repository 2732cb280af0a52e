// Package ai turns chat text into persona replies through a completion service.
package ai

import (
	"context"

	"github.com/Veraticus/erika/internal/conversation"
)

// Completer abstracts the remote completion call.
type Completer interface {
	// Complete sends the system instruction, prior turns and a new user
	// prompt and returns the generated text.
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one completion call.
type Request struct {
	System  string
	History []conversation.Turn
	Prompt  string
}
