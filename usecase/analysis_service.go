package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
	"github.com/satriahrh/echocoach/internal/metrics"
)

// AnalysisService turns a recording into a FeedbackRecord. It never fails:
// any problem along the way yields entities.FallbackFeedback().
type AnalysisService struct {
	coach   repositories.Coach
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(coach repositories.Coach, m *metrics.Metrics, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{
		coach:   coach,
		metrics: m,
		logger:  logger,
	}
}

// Analyze scores the recording, optionally against the sentence the learner meant to say
func (s *AnalysisService) Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) (feedback entities.FeedbackRecord) {
	start := time.Now()
	outcome := metrics.OutcomeOK

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Pronunciation analysis panicked", zap.Any("panic", p))
			feedback = entities.FallbackFeedback()
			outcome = metrics.OutcomeFallback
		}
		s.metrics.ObserveAnalysis(outcome, time.Since(start), feedback.Score)
	}()

	if audio.Empty() {
		s.logger.Warn("Analysis requested without audio")
		outcome = metrics.OutcomeFallback
		return entities.FallbackFeedback()
	}

	referenceText = strings.TrimSpace(referenceText)

	result, err := s.coach.Analyze(ctx, audio, referenceText)
	if err == nil {
		err = result.Validate()
	}
	if err != nil {
		s.logger.Error("Gemini analysis error",
			zap.Error(err),
			zap.Int("audio_bytes", len(audio.Data)),
			zap.String("reference_text", referenceText))
		outcome = metrics.OutcomeFallback
		return entities.FallbackFeedback()
	}

	s.logger.Info("Analysis completed",
		zap.Int("score", result.Score),
		zap.Bool("passed", result.Passed()),
		zap.Duration("elapsed", time.Since(start)))

	return result.Normalize()
}
