package metrics_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/erika/internal/ai"
	"github.com/Veraticus/erika/internal/bot"
	"github.com/Veraticus/erika/internal/metrics"
)

var (
	_ bot.Recorder = (*metrics.Metrics)(nil)
	_ ai.Observer  = (*metrics.Metrics)(nil)
)

func TestCounters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.CommandHandled("ping")
	m.CommandHandled("ping")
	m.CommandHandled("print")
	m.PrintFinished("queued")
	m.PrintFinished("unsupported")
	m.ReplyFailed()
	m.TaskPanicked("+15551234567", "boom")
	m.LaneFull()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Commands.WithLabelValues("ping")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Commands.WithLabelValues("print")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PrintJobs.WithLabelValues("unsupported")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ReplyErrors), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TaskPanics), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LaneRejected), 0)
}

func TestObserveCompletion(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveCompletion("chat", 1500*time.Millisecond, nil)
	m.ObserveCompletion("chat", time.Second, errors.New("timeout"))
	m.ObserveCompletion("quote", time.Second, nil)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Completions.WithLabelValues("chat", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Completions.WithLabelValues("chat", "error")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.AILatency))
}

func TestGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sessions := 3
	require.NoError(t, m.Gauge("sessions", "Active chat sessions", func() float64 { return float64(sessions) }))

	expected := `
# HELP erika_sessions Active chat sessions
# TYPE erika_sessions gauge
erika_sessions 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "erika_sessions"))

	err := m.Gauge("sessions", "Active chat sessions", func() float64 { return 0 })
	assert.Error(t, err)
}
