package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestCollectorsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Message("ok")
	m.Message("ok")
	m.Message("ignored")
	m.ChecksumMismatch()
	m.Transition("BreachDetected")
	m.Dropped()
	m.SetQueueDepth(7)
	m.SetFeedConnected(true)
	m.UnsupportedJurisdiction("ZZ")
	m.ObserveEvaluation(time.Millisecond)
	m.SinkError("kafka")

	assert.Equal(t, 2.0, gather(t, reg, "stakewatch_parser_messages_total", map[string]string{"result": "ok"}))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_parser_messages_total", map[string]string{"result": "ignored"}))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_parser_checksum_mismatch_total", nil))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_monitor_transitions_total", map[string]string{"type": "BreachDetected"}))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_events_dropped_total", nil))
	assert.Equal(t, 7.0, gather(t, reg, "stakewatch_monitor_queue_depth", nil))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_feed_connected", nil))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_unsupported_jurisdiction_total", map[string]string{"jurisdiction": "ZZ"}))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_monitor_evaluation_seconds", nil))
	assert.Equal(t, 1.0, gather(t, reg, "stakewatch_sink_errors_total", map[string]string{"sink": "kafka"}))

	m.SetFeedConnected(false)
	assert.Equal(t, 0.0, gather(t, reg, "stakewatch_feed_connected", nil))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.Message("ok")
		m.Transition("WarningCleared")
		m.SetFeedConnected(true)
		m.ObserveEvaluation(time.Second)
		m.Sweep()
	})
}
