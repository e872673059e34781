package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTurn("anthropic", "ok", time.Second)
	m.ObserveModelRound("anthropic", "m", 1, 2, nil, time.Second)
	m.ObserveTool("get_pipeline_status", "ok", time.Millisecond)
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveTool("draft_email", "ok", time.Millisecond)
	m.ObserveTool("draft_email", "error", time.Millisecond)
	m.ObserveTool("draft_email", "ok", time.Millisecond)
	m.ObserveModelRound("openai", "gpt", 10, 5, nil, time.Second)
	m.ObserveModelRound("openai", "gpt", 0, 0, errors.New("boom"), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCallsTotal.WithLabelValues("draft_email", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCallsTotal.WithLabelValues("draft_email", "error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("openai", "gpt", "input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelRounds.WithLabelValues("openai", "gpt", "error")))
}
