// Package health serves the liveness page, a JSON health check and the
// Prometheus scrape endpoint.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the live state reported by /healthz.
type Stats struct {
	// Receiving is false while the inbound message loop is down.
	Receiving bool `json:"receiving"`
	Sessions  int  `json:"sessions"`
	Lanes     int  `json:"lanes"`
	Queued    int  `json:"queued"`
}

// StatsFunc samples the bot's state.
type StatsFunc func() Stats

// Server is the status HTTP server.
type Server struct {
	name     string
	app      *fiber.App
	stats    StatsFunc
	registry *prometheus.Registry
	logger   *slog.Logger
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithStats sets the /healthz sampler.
func WithStats(fn StatsFunc) Option {
	return func(s *Server) {
		s.stats = fn
	}
}

// WithRegistry exposes reg at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds the fiber app and its routes.
func NewServer(name string, opts ...Option) *Server {
	s := &Server{
		name:    name,
		logger:  slog.Default(),
		stats:   func() Stats { return Stats{Receiving: true} },
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "health"))

	s.app = fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	s.app.Use(recover.New())

	if s.registry != nil {
		prom := fiberprometheus.NewWithRegistry(s.registry, "erika", "erika", "http", nil)
		prom.RegisterAt(s.app, "/metrics")
		s.app.Use(prom.Middleware)
	}

	s.app.Get("/", s.handleRoot)
	s.app.Get("/healthz", s.handleHealth)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("status server listening", slog.String("addr", addr))
	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.SendString(s.name + " bot is running!")
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	stats := s.stats()
	status, code := "healthy", fiber.StatusOK
	if !stats.Receiving {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"receiving": stats.Receiving,
		"sessions":  stats.Sessions,
		"lanes":     stats.Lanes,
		"queued":    stats.Queued,
		"uptime":    time.Since(s.started).Truncate(time.Second).String(),
	})
}
