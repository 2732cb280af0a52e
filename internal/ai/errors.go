package ai

import "errors"

// Completion errors.
var (
	// ErrEmptyResponse is returned when the service answers with no text.
	ErrEmptyResponse = errors.New("completion returned no text")

	// ErrEmptyPrompt is returned when there is nothing to send.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
