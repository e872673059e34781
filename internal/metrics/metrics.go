// Package metrics holds the Prometheus collectors for chat turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	modelRounds    *prometheus.CounterVec
	modelDuration  *prometheus.HistogramVec
	tokensTotal    *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		turnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creatordesk_chat_turns_total",
			Help: "Chat turns by provider and outcome",
		}, []string{"provider", "outcome"}),
		turnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creatordesk_chat_turn_duration_seconds",
			Help:    "Wall time of a chat turn including tool calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"provider"}),
		modelRounds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creatordesk_model_rounds_total",
			Help: "Model calls by provider, model and status",
		}, []string{"provider", "model", "status"}),
		modelDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creatordesk_model_round_duration_seconds",
			Help:    "Duration of one streamed model call",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "model"}),
		tokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creatordesk_model_tokens_total",
			Help: "Tokens reported by the provider",
		}, []string{"provider", "model", "type"}),
		toolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "creatordesk_tool_calls_total",
			Help: "Tool executions by tool and result",
		}, []string{"tool", "result"}),
		toolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creatordesk_tool_duration_seconds",
			Help:    "Tool execution time",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
}

// ObserveTurn records a finished turn. outcome is ok, error, not_converged
// or aborted.
func (m *Metrics) ObserveTurn(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(provider, outcome).Inc()
	m.turnDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveModelRound(provider, model string, inputTokens, outputTokens int64, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.modelRounds.WithLabelValues(provider, model, status).Inc()
	m.modelDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if err == nil {
		m.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
		m.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// ObserveTool records one tool call. result is ok, error (a structured
// error value) or failed (an infrastructure fault).
func (m *Metrics) ObserveTool(tool, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, result).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}
