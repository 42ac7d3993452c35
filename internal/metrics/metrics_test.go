package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAnalysis(OutcomeOK, time.Second, 80)
	m.ObserveChatTurn(OutcomeError, time.Second)
	m.RecordingStarted()
	m.RecordingEnded()
	m.ObserveRecording(time.Second)
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.CountWSMessage("in", "ping")
	m.AddExpired(3)
}

func TestObserveAnalysisCountsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ObserveAnalysis(OutcomeOK, 2*time.Second, 85)
	m.ObserveAnalysis(OutcomeFallback, time.Second, 0)
	m.ObserveAnalysis(OutcomeFallback, time.Second, 0)

	if got := counterValue(t, m.AnalysisRequests.WithLabelValues(OutcomeOK)); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := counterValue(t, m.AnalysisRequests.WithLabelValues(OutcomeFallback)); got != 2 {
		t.Errorf("fallback count = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, family := range families {
		if family.GetName() == "test_analysis_score" {
			if count := family.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("score samples = %d, want only the successful analysis", count)
			}
			return
		}
	}
	t.Error("analysis score histogram not registered")
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return metric.GetCounter().GetValue()
}
