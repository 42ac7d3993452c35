package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/internal/metrics"
)

func TestAnalysisService_Success(t *testing.T) {
	coach := &fakeCoach{feedback: entities.FeedbackRecord{
		Score:         85,
		Transcription: "see",
		Suggestions:   []string{"Great job!"},
	}}
	svc := NewAnalysisService(coach, metrics.NewMetrics("test", prometheus.NewRegistry()), zaptest.NewLogger(t))

	got := svc.Analyze(context.Background(), entities.AudioCapture{Data: []byte("audio")}, "  see ")

	want := entities.FeedbackRecord{
		Score:         85,
		Transcription: "see",
		Issues:        []string{},
		Suggestions:   []string{"Great job!"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze() = %+v, want %+v", got, want)
	}
	if coach.lastReference != "see" {
		t.Errorf("reference text = %q, want trimmed", coach.lastReference)
	}
}

func TestAnalysisService_Fallback(t *testing.T) {
	tests := []struct {
		name      string
		coach     *fakeCoach
		audio     entities.AudioCapture
		wantCalls int
	}{
		{
			name:      "network error",
			coach:     &fakeCoach{analyzeErr: errors.New("dial tcp: connection refused")},
			audio:     entities.AudioCapture{Data: []byte("audio")},
			wantCalls: 1,
		},
		{
			name:      "score out of range",
			coach:     &fakeCoach{feedback: entities.FeedbackRecord{Score: 250}},
			audio:     entities.AudioCapture{Data: []byte("audio")},
			wantCalls: 1,
		},
		{
			name:      "coach panics",
			coach:     &fakeCoach{panicOnCall: true},
			audio:     entities.AudioCapture{Data: []byte("audio")},
			wantCalls: 1,
		},
		{
			name:      "empty audio",
			coach:     &fakeCoach{},
			audio:     entities.AudioCapture{},
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAnalysisService(tt.coach, nil, zaptest.NewLogger(t))

			got := svc.Analyze(context.Background(), tt.audio, "")

			if !reflect.DeepEqual(got, entities.FallbackFeedback()) {
				t.Errorf("Analyze() = %+v, want the fallback record", got)
			}
			if tt.coach.analyzeCalls != tt.wantCalls {
				t.Errorf("coach called %d times, want %d", tt.coach.analyzeCalls, tt.wantCalls)
			}
		})
	}
}
