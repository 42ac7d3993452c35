package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Metrics groups all Prometheus instruments used by the coach server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ActiveRecordings  prometheus.Gauge
	RecordingDuration prometheus.Histogram
	WSMessages        *prometheus.CounterVec

	AnalysisRequests *prometheus.CounterVec
	AnalysisLatency  prometheus.Histogram
	AnalysisScore    prometheus.Histogram

	ChatTurns   *prometheus.CounterVec
	ChatLatency prometheus.Histogram

	ConversationsExpired prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_active_connections",
			Help:      "Number of connected websocket clients.",
		}),
		ActiveRecordings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_recordings",
			Help:      "Number of recorders currently holding a microphone.",
		}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Length of finalized recordings.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30},
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		AnalysisRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Pronunciation analyses by outcome.",
		}, []string{"outcome"}),
		AnalysisLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "Time spent waiting for pronunciation analysis.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		AnalysisScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_score",
			Help:      "Distribution of successful pronunciation scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		ChatTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		ChatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_latency_seconds",
			Help:      "Time spent waiting for the coach reply.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		ConversationsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_expired_total",
			Help:      "Conversations marked expired by the cleanup loop.",
		}),
	}
}

func (m *Metrics) ObserveAnalysis(outcome string, elapsed time.Duration, score int) {
	if m == nil {
		return
	}
	m.AnalysisRequests.WithLabelValues(outcome).Inc()
	m.AnalysisLatency.Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		m.AnalysisScore.Observe(float64(score))
	}
}

func (m *Metrics) ObserveChatTurn(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChatTurns.WithLabelValues(outcome).Inc()
	m.ChatLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRecording(d time.Duration) {
	if m == nil {
		return
	}
	m.RecordingDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordingStarted() {
	if m == nil {
		return
	}
	m.ActiveRecordings.Inc()
}

func (m *Metrics) RecordingEnded() {
	if m == nil {
		return
	}
	m.ActiveRecordings.Dec()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) CountWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) AddExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ConversationsExpired.Add(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
