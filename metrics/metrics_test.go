package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.NodeFinished("classify", "continue", 20*time.Millisecond)
	m.NodeFinished("classify", "continue", 10*time.Millisecond)
	m.NodeFinished("ask_followup", "interrupt", time.Millisecond)
	m.Interrupted("ask_followup")
	m.Completed()
	m.LLMCall("section_coverage", "ok")
	m.LLMCall("section_coverage", "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.nodeExecutions.WithLabelValues("classify", "continue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.interrupts.WithLabelValues("ask_followup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("section_coverage", "error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "semfolio_node_duration_seconds")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.NodeFinished("a", "continue", time.Second)
		m.Interrupted("a")
		m.Completed()
		m.LLMCall("s", "ok")
	})
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
