package queue

import (
	"errors"
	"fmt"
)

// Common queue errors.
var (
	// ErrQueueStopped indicates the lanes have been shut down.
	ErrQueueStopped = errors.New("queue stopped")

	// ErrLaneFull indicates a sender has too many messages waiting.
	ErrLaneFull = errors.New("lane full")
)

// LaneFullError names the sender whose lane rejected a task.
type LaneFullError struct {
	Key      string
	Capacity int
}

// Error implements the error interface.
func (e *LaneFullError) Error() string {
	return fmt.Sprintf("lane %s full (%d waiting)", e.Key, e.Capacity)
}

// Unwrap lets errors.Is match ErrLaneFull.
func (e *LaneFullError) Unwrap() error {
	return ErrLaneFull
}
