package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Veraticus/erika/internal/ai"
	"github.com/Veraticus/erika/internal/bot"
	"github.com/Veraticus/erika/internal/command"
	"github.com/Veraticus/erika/internal/config"
	"github.com/Veraticus/erika/internal/conversation"
	"github.com/Veraticus/erika/internal/health"
	"github.com/Veraticus/erika/internal/intent"
	"github.com/Veraticus/erika/internal/metrics"
	"github.com/Veraticus/erika/internal/printer"
	"github.com/Veraticus/erika/internal/queue"
	signalpkg "github.com/Veraticus/erika/internal/signal"
)

// ShutdownTimeout bounds how long in-flight messages may keep running after
// a shutdown signal.
const ShutdownTimeout = 30 * time.Second

// app holds every long-lived component.
type app struct {
	logger *slog.Logger

	store   *conversation.Store
	cleaner *printer.Cleaner
	client  signalpkg.Client
	lanes   *queue.Lanes
	handler *signalpkg.Handler
	status  *health.Server
	addr    string
}

// laneSubmitter counts submissions rejected by a full lane.
type laneSubmitter struct {
	lanes   *queue.Lanes
	metrics *metrics.Metrics
}

func (s *laneSubmitter) Submit(key string, task queue.Task) error {
	err := s.lanes.Submit(key, task)
	if errors.Is(err, queue.ErrLaneFull) {
		s.metrics.LaneFull()
	}
	return err
}

func newApp(ctx context.Context, cfg *config.Config, persona config.Persona, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// AI
	gemini, err := ai.NewGemini(ctx, ai.GeminiConfig{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	a.store = conversation.NewStore(conversation.WithMaxTurns(cfg.AI.MaxTurns))
	responder, err := ai.NewResponder(gemini, a.store, persona.AI(),
		ai.WithTimeout(cfg.AI.RequestTimeout),
		ai.WithObserver(m),
		ai.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create responder: %w", err)
	}

	// Printing
	a.cleaner, err = printer.NewCleaner(cfg.Print.CleanupDelay, printer.WithCleanerLogger(logger))
	if err != nil {
		return nil, err
	}
	printDispatcher, err := printer.NewDispatcher(printer.NewCUPS(command.NewExecRunner()), a.cleaner,
		printer.WithQueueDir(cfg.Print.QueueDir),
		printer.WithPrinter(cfg.Print.Printer),
		printer.WithLogger(logger))
	if err != nil {
		_ = a.cleaner.Close()
		return nil, fmt.Errorf("failed to create print dispatcher: %w", err)
	}

	// Signal
	transport, err := signalpkg.NewUnixSocketTransport(ctx, cfg.Signal.Socket, signalpkg.WithTransportLogger(logger))
	if err != nil {
		_ = a.cleaner.Close()
		return nil, err
	}
	a.client = signalpkg.NewClient(transport, signalpkg.WithAccount(cfg.Signal.Account))
	messenger, err := signalpkg.NewMessenger(a.client, cfg.Signal.Account,
		signalpkg.WithQuoteTTL(cfg.Cache.QuoteTTL),
		signalpkg.WithMessengerLogger(logger))
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to create messenger: %w", err)
	}

	dispatcher, err := bot.NewDispatcher(messenger, responder, printDispatcher,
		bot.WithCommands(intent.Config{Prefix: cfg.Bot.Prefix, Trigger: cfg.Bot.Trigger}),
		bot.WithHelpText(persona.HelpText),
		bot.WithRecorder(m),
		bot.WithLogger(logger))
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	// Lanes outlive the signal context so queued replies can drain on shutdown.
	a.lanes = queue.NewLanes(context.WithoutCancel(ctx),
		queue.WithIdleTimeout(cfg.Queue.IdleTimeout),
		queue.WithRateLimit(cfg.Queue.Rate, cfg.Queue.Burst),
		queue.WithPanicHandler(queue.NewMetricsPanicHandler(queue.NewDefaultPanicHandler(logger), m.TaskPanicked)),
		queue.WithLogger(logger))

	a.handler, err = signalpkg.NewHandler(messenger, &laneSubmitter{lanes: a.lanes, metrics: m}, dispatcher,
		signalpkg.WithLogger(logger))
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to create signal handler: %w", err)
	}

	if err := registerGauges(m, a, messenger); err != nil {
		a.closeResources()
		return nil, err
	}

	if cfg.Server.Enabled {
		a.addr = cfg.Server.Addr()
		a.status = health.NewServer(cfg.Bot.Name,
			health.WithRegistry(reg),
			health.WithStats(a.stats),
			health.WithLogger(logger))
	}

	return a, nil
}

func registerGauges(m *metrics.Metrics, a *app, messenger *signalpkg.Messenger) error {
	gauges := []struct {
		name string
		help string
		fn   func() float64
	}{
		{"sessions", "Senders with conversation history", func() float64 { return float64(a.store.Stats().Sessions) }},
		{"lanes_active", "Sender lanes currently running", func() float64 { return float64(a.lanes.Stats().Lanes) }},
		{"lanes_queued", "Messages waiting in sender lanes", func() float64 { return float64(a.lanes.Stats().Queued) }},
		{"quote_cache_entries", "Recent messages remembered for quote lookups", func() float64 { return float64(messenger.Remembered()) }},
		{"print_cleanup_pending", "Printed files waiting for removal", func() float64 { return float64(a.cleaner.Pending()) }},
	}
	for _, g := range gauges {
		if err := m.Gauge(g.name, g.help, g.fn); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) stats() health.Stats {
	lanes := a.lanes.Stats()
	return health.Stats{
		Receiving: a.handler.IsRunning(),
		Sessions:  a.store.Stats().Sessions,
		Lanes:     lanes.Lanes,
		Queued:    lanes.Queued,
	}
}

// run blocks until ctx is canceled or the signal-cli connection drops, then
// shuts everything down.
func (a *app) run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	if a.status != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.status.Listen(a.addr); err != nil {
				errCh <- err
			}
		}()
	}

	handlerDone := make(chan error, 1)
	go func() {
		handlerDone <- a.handler.Start(ctx)
	}()

	a.logger.Info("erika started, listening for messages")

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down gracefully")
	case err := <-handlerDone:
		runErr = err
		if runErr == nil && ctx.Err() == nil {
			runErr = errors.New("signal-cli connection closed")
		}
	case runErr = <-errCh:
	}

	//nolint:contextcheck // the run context is already canceled
	a.shutdown(wg.Wait)
	if runErr != nil {
		a.logger.Error("stopped", slog.Any("error", runErr))
	}
	return runErr
}

func (a *app) shutdown(waitServers func()) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := a.lanes.Shutdown(ShutdownTimeout); err != nil {
		a.logger.Warn("message lanes did not drain", slog.Any("error", err))
	}
	if a.status != nil {
		if err := a.status.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("status server shutdown failed", slog.Any("error", err))
		}
		waitServers()
	}
	a.closeResources()
	a.logger.Info("shutdown complete")
}

func (a *app) closeResources() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("failed to close signal client", slog.Any("error", err))
		}
	}
	if a.cleaner != nil {
		if err := a.cleaner.Close(); err != nil {
			a.logger.Warn("failed to stop print cleanup", slog.Any("error", err))
		}
	}
}
