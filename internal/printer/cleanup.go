package printer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// DefaultCleanupDelay is how long a printed file stays in the queue directory.
const DefaultCleanupDelay = 60 * time.Second

// Cleaner removes spooled files after a fixed delay. Each path is scheduled
// at most once and removing a file that is already gone is not an error.
type Cleaner struct {
	scheduler gocron.Scheduler
	delay     time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]uuid.UUID
	closed  bool
}

// CleanerOption configures a Cleaner.
type CleanerOption func(*Cleaner)

// WithCleanerLogger sets a custom logger.
func WithCleanerLogger(logger *slog.Logger) CleanerOption {
	return func(c *Cleaner) {
		c.logger = logger
	}
}

// NewCleaner creates and starts a cleaner.
func NewCleaner(delay time.Duration, opts ...CleanerOption) (*Cleaner, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create cleanup scheduler: %w", err)
	}

	c := &Cleaner{
		scheduler: scheduler,
		delay:     delay,
		logger:    slog.Default(),
		pending:   make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "printer.cleanup"))

	scheduler.Start()
	return c, nil
}

// Schedule arranges for path to be removed after the cleanup delay.
func (c *Cleaner) Schedule(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("cleaner is closed")
	}
	if _, ok := c.pending[path]; ok {
		return nil
	}

	if c.delay <= 0 {
		c.remove(path)
		return nil
	}

	job, err := c.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(c.delay))),
		gocron.NewTask(c.run, path),
		gocron.WithName(path),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup of %s: %w", path, err)
	}
	c.pending[path] = job.ID()
	return nil
}

// Pending returns how many files are waiting for removal.
func (c *Cleaner) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close stops the scheduler and removes every file still pending.
func (c *Cleaner) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.scheduler.Shutdown()

	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.pending {
		c.remove(path)
		delete(c.pending, path)
	}

	if err != nil {
		return fmt.Errorf("failed to stop cleanup scheduler: %w", err)
	}
	return nil
}

func (c *Cleaner) run(path string) {
	c.remove(path)

	c.mu.Lock()
	delete(c.pending, path)
	c.mu.Unlock()
}

// remove deletes path, logging failures. A missing file counts as removed.
func (c *Cleaner) remove(path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		c.logger.InfoContext(context.Background(), "cleaned up print file", slog.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		c.logger.DebugContext(context.Background(), "print file already gone", slog.String("path", path))
	default:
		c.logger.ErrorContext(context.Background(), "cleanup failed",
			slog.String("path", path),
			slog.Any("error", err))
	}
}
