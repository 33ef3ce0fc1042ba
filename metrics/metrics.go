// Package metrics defines the Prometheus collectors stakewatch exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stakewatch"

// Metrics groups every collector. Build one per registry with New; a nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Messages           *prometheus.CounterVec
	ChecksumMismatches prometheus.Counter
	BodyLengthMismatch prometheus.Counter
	Transitions        *prometheus.CounterVec
	EventsDropped      prometheus.Counter
	QueueDepth         prometheus.Gauge
	FeedConnected      prometheus.Gauge
	FeedReconnects     prometheus.Counter
	Unsupported        *prometheus.CounterVec
	EvaluationSeconds  prometheus.Histogram
	SinkErrors         *prometheus.CounterVec
	TrackedSecurities  prometheus.Gauge
	WorkflowActions    *prometheus.CounterVec
	SweepsTotal        prometheus.Counter
}

// New registers the collectors with reg. Passing nil uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "messages_total",
			Help:      "Inbound messages by parse result",
		}, []string{"result"}),
		ChecksumMismatches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "checksum_mismatch_total",
			Help:      "Messages accepted with a bad or missing checksum",
		}),
		BodyLengthMismatch: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "body_length_mismatch_total",
			Help:      "Messages accepted with a wrong BodyLength",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "transitions_total",
			Help:      "Status transitions by event type",
		}, []string{"type"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Execution events evicted from a full ingress queue",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "queue_depth",
			Help:      "Events waiting in the ingress queue",
		}),
		FeedConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 while the upstream feed is connected",
		}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Reconnection attempts to the upstream feed",
		}),
		Unsupported: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsupported_jurisdiction_total",
			Help:      "Evaluations against a jurisdiction with no rule",
		}, []string{"jurisdiction"}),
		EvaluationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "evaluation_seconds",
			Help:      "Time to re-evaluate one security",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes to publishers and the audit journal",
		}, []string{"sink"}),
		TrackedSecurities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tracked_securities",
			Help:      "Securities with live state",
		}),
		WorkflowActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "actions_total",
			Help:      "Alert workflow actions by kind",
		}, []string{"action"}),
		SweepsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Completed periodic re-evaluation sweeps",
		}),
	}
}

func (m *Metrics) Message(result string) {
	if m != nil {
		m.Messages.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ChecksumMismatch() {
	if m != nil {
		m.ChecksumMismatches.Inc()
	}
}

func (m *Metrics) BodyLengthMismatched() {
	if m != nil {
		m.BodyLengthMismatch.Inc()
	}
}

func (m *Metrics) Transition(eventType string) {
	if m != nil {
		m.Transitions.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) SetFeedConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.FeedConnected.Set(1)
	} else {
		m.FeedConnected.Set(0)
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.FeedReconnects.Inc()
	}
}

func (m *Metrics) UnsupportedJurisdiction(j string) {
	if m != nil {
		m.Unsupported.WithLabelValues(j).Inc()
	}
}

func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m != nil {
		m.EvaluationSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) SinkError(sink string) {
	if m != nil {
		m.SinkErrors.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) SetTracked(n int) {
	if m != nil {
		m.TrackedSecurities.Set(float64(n))
	}
}

func (m *Metrics) WorkflowAction(action string) {
	if m != nil {
		m.WorkflowActions.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) Sweep() {
	if m != nil {
		m.SweepsTotal.Inc()
	}
}
