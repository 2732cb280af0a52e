// Package queue serializes work per sender. Each sender gets a lane: a FIFO
// drained by one goroutine, so a sender's messages run in arrival order while
// different senders proceed in parallel.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Lane defaults.
const (
	DefaultLaneCapacity = 100
	DefaultIdleTimeout  = 5 * time.Minute
)

// Task is one unit of work. ctx is canceled when shutdown times out.
type Task func(ctx context.Context)

// Stats describes the lanes at a point in time.
type Stats struct {
	Lanes  int
	Queued int
}

// Lanes runs tasks one lane per key.
type Lanes struct {
	ctx    context.Context
	cancel context.CancelFunc

	capacity     int
	idleTimeout  time.Duration
	ratePerSec   float64
	burst        int
	panicHandler PanicHandler
	logger       *slog.Logger

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

type lane struct {
	key     string
	tasks   chan Task
	limiter RateLimiter
}

// Option configures Lanes.
type Option func(*Lanes)

// WithCapacity sets how many tasks may wait in one lane.
func WithCapacity(n int) Option {
	return func(l *Lanes) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithIdleTimeout sets how long an empty lane lives before it is retired.
func WithIdleTimeout(d time.Duration) Option {
	return func(l *Lanes) {
		if d > 0 {
			l.idleTimeout = d
		}
	}
}

// WithRateLimit paces each lane to perSecond tasks with the given burst.
// Excess tasks wait; none are dropped.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(l *Lanes) {
		l.ratePerSec = perSecond
		l.burst = burst
	}
}

// WithPanicHandler sets the handler for panicking tasks.
func WithPanicHandler(h PanicHandler) Option {
	return func(l *Lanes) {
		l.panicHandler = h
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lanes) {
		l.logger = logger
	}
}

// NewLanes creates an empty set of lanes.
func NewLanes(ctx context.Context, opts ...Option) *Lanes {
	ctx, cancel := context.WithCancel(ctx)
	l := &Lanes{
		ctx:         ctx,
		cancel:      cancel,
		capacity:    DefaultLaneCapacity,
		idleTimeout: DefaultIdleTimeout,
		logger:      slog.Default(),
		lanes:       make(map[string]*lane),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(slog.String("component", "queue"))
	if l.panicHandler == nil {
		l.panicHandler = NewDefaultPanicHandler(l.logger)
	}
	return l
}

// Submit appends task to key's lane, starting the lane if needed. It never
// blocks; a full lane returns a *LaneFullError.
func (l *Lanes) Submit(key string, task Task) error {
	if task == nil {
		return fmt.Errorf("cannot submit nil task")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrQueueStopped
	}

	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{
			key:     key,
			tasks:   make(chan Task, l.capacity),
			limiter: NewRateLimiter(l.ratePerSec, l.burst),
		}
		l.lanes[key] = ln
		l.wg.Add(1)
		go l.run(ln)
	}

	select {
	case ln.tasks <- task:
		return nil
	default:
		return &LaneFullError{Key: key, Capacity: l.capacity}
	}
}

// Stats returns the number of live lanes and waiting tasks.
func (l *Lanes) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Lanes: len(l.lanes)}
	for _, ln := range l.lanes {
		stats.Queued += len(ln.tasks)
	}
	return stats
}

// Shutdown stops accepting tasks and waits for queued ones to finish. If
// they do not finish within timeout, their context is canceled and an error
// is returned.
func (l *Lanes) Shutdown(timeout time.Duration) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		for key, ln := range l.lanes {
			close(ln.tasks)
			delete(l.lanes, key)
		}
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.cancel()
		return nil
	case <-time.After(timeout):
		l.cancel()
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

func (l *Lanes) run(ln *lane) {
	defer l.wg.Done()

	idle := time.NewTimer(l.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case task, ok := <-ln.tasks:
			if !ok {
				return
			}
			l.execute(ln, task)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(l.idleTimeout)

		case <-idle.C:
			if l.retire(ln) {
				return
			}
			idle.Reset(l.idleTimeout)
		}
	}
}

// retire removes ln if nothing is waiting in it. Submit sends under l.mu, so
// an empty lane seen here cannot receive more work once it is unmapped.
func (l *Lanes) retire(ln *lane) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || len(ln.tasks) > 0 {
		return false
	}
	if l.lanes[ln.key] == ln {
		delete(l.lanes, ln.key)
	}
	l.logger.DebugContext(l.ctx, "retired idle lane", slog.String("lane", ln.key))
	return true
}

func (l *Lanes) execute(ln *lane, task Task) {
	defer func() {
		if r := recover(); r != nil {
			HandleRecoveredPanic(ln.key, r, l.panicHandler)
		}
	}()

	if ln.limiter != nil {
		if err := ln.limiter.Wait(l.ctx); err != nil {
			l.logger.WarnContext(l.ctx, "dropping task after shutdown",
				slog.String("lane", ln.key),
				slog.Any("error", err))
			return
		}
	}

	task(l.ctx)
}
