package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/repositories"
)

// MockSpeechToText returns canned captions sized by the amount of audio received
type MockSpeechToText struct {
	logger *zap.Logger
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	logger   *zap.Logger
	received int
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{logger: logger}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Debug("Initializing mock streaming transcription",
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{logger: s.logger}, nil
}

// Stream counts the received audio
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.received += len(data)
	return nil
}

// End returns the mock transcription result
func (m *MockSpeechToTextStream) End() (string, error) {
	if m.received == 0 {
		return "", ErrNoAudio
	}

	var transcription string
	switch {
	case m.received > 10000:
		transcription = "I'd like a cup of tea, please."
	case m.received > 1000:
		transcription = "Think about it."
	default:
		transcription = "See"
	}

	m.logger.Debug("Ending mock transcription stream", zap.String("result", transcription))
	return transcription, nil
}
