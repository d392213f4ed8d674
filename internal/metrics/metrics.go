// Package metrics defines the Prometheus collectors exported on /metrics.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relaybot"

// Update outcomes.
const (
	OutcomeHandled = "handled"
	OutcomeSkipped = "skipped"
	OutcomeDenied  = "denied"
	OutcomeLimited = "rate_limited"
	OutcomeFailed  = "failed"
)

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	updates      *prometheus.CounterVec
	pollErrors   prometheus.Counter
	batchSize    prometheus.Histogram
	offset       prometheus.Gauge
	replies      *prometheus.CounterVec
	fallbacks    prometheus.Counter
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	tokens       *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "updates_total",
			Help: "Telegram updates processed, by outcome.",
		}, []string{"outcome"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "poll_errors_total",
			Help: "Failed polling cycles.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "batch_size",
			Help:    "Updates returned per getUpdates call.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		offset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "offset",
			Help: "Current getUpdates offset.",
		}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "replies_total",
			Help: "Reply chunks sent, by format.",
		}, []string{"format"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "html_fallbacks_total",
			Help: "Reply chunks re-sent as plain text after HTML was rejected.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "agent", Name: "runs_total",
			Help: "Agent runs, by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "agent", Name: "run_duration_seconds",
			Help:    "Agent run latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "agent", Name: "tokens_total",
			Help: "LLM tokens consumed, by kind.",
		}, []string{"kind"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "agent", Name: "tool_calls_total",
			Help: "Tool invocations, by tool and status.",
		}, []string{"tool", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.pollErrors, m.batchSize, m.offset,
		m.replies, m.fallbacks,
		m.runs, m.runDuration, m.tokens, m.toolCalls,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Update records the outcome of one Telegram update.
func (m *Metrics) Update(outcome string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(outcome).Inc()
}

// PollError records a failed polling cycle.
func (m *Metrics) PollError() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

// Batch records a getUpdates batch and the offset reached after it.
func (m *Metrics) Batch(size int, offset int64) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
	m.offset.Set(float64(offset))
}

// Reply records a sent chunk; format is "html" or "plain".
func (m *Metrics) Reply(format string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(format).Inc()
}

// Fallback records an HTML rejection.
func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// Run records a finished agent run.
func (m *Metrics) Run(err error, elapsed time.Duration, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.tokens.WithLabelValues("prompt").Add(float64(promptTokens))
	m.tokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// ToolCall records one tool invocation.
func (m *Metrics) ToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	status := "ok"
	if isError {
		status = "error"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// HTTPRequest records a served HTTP request.
func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
