// Package metrics exposes Erika's Prometheus instruments.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "erika"

// Metrics holds all custom Prometheus metrics for the bot.
type Metrics struct {
	Commands     *prometheus.CounterVec
	PrintJobs    *prometheus.CounterVec
	ReplyErrors  prometheus.Counter
	Completions  *prometheus.CounterVec
	AILatency    *prometheus.HistogramVec
	TaskPanics   prometheus.Counter
	LaneRejected prometheus.Counter

	reg prometheus.Registerer
}

// New registers the bot metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,

		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Messages dispatched, by classified intent",
		}, []string{"intent"}),

		PrintJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "print_jobs_total",
			Help:      "Print requests by outcome",
		}, []string{"outcome"}),

		ReplyErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_errors_total",
			Help:      "Outbound replies that could not be delivered",
		}),

		Completions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_completions_total",
			Help:      "AI completions by kind and result",
		}, []string{"kind", "result"}),

		AILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_completion_duration_seconds",
			Help:      "AI completion latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 90},
		}, []string{"kind"}),

		TaskPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_panics_total",
			Help:      "Message handlers that panicked",
		}),

		LaneRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lane_rejected_total",
			Help:      "Messages dropped because a sender lane was full",
		}),
	}
}

// CommandHandled counts a dispatched intent.
func (m *Metrics) CommandHandled(intent string) {
	m.Commands.WithLabelValues(intent).Inc()
}

// PrintFinished counts a print outcome.
func (m *Metrics) PrintFinished(outcome string) {
	m.PrintJobs.WithLabelValues(outcome).Inc()
}

// ReplyFailed counts an undeliverable reply.
func (m *Metrics) ReplyFailed() {
	m.ReplyErrors.Inc()
}

// ObserveCompletion records one AI round-trip.
func (m *Metrics) ObserveCompletion(kind string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Completions.WithLabelValues(kind, result).Inc()
	m.AILatency.WithLabelValues(kind).Observe(d.Seconds())
}

// TaskPanicked counts a recovered handler panic. It matches the callback
// expected by queue.NewMetricsPanicHandler.
func (m *Metrics) TaskPanicked(string, any) {
	m.TaskPanics.Inc()
}

// LaneFull counts a rejected submission.
func (m *Metrics) LaneFull() {
	m.LaneRejected.Inc()
}

// Gauge registers a gauge sampled from fn on every scrape.
func (m *Metrics) Gauge(name, help string, fn func() float64) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
	if err := m.reg.Register(g); err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}
	return nil
}
