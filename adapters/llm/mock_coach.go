package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/satriahrh/echocoach/domain/entities"
	"github.com/satriahrh/echocoach/domain/repositories"
)

// MockCoach is an offline coach for local development without a Gemini key
type MockCoach struct{}

var _ repositories.Coach = MockCoach{}

// NewMockCoach creates a new mock coach
func NewMockCoach() MockCoach {
	return MockCoach{}
}

// Analyze implements repositories.Coach
func (MockCoach) Analyze(ctx context.Context, audio entities.AudioCapture, referenceText string) (entities.FeedbackRecord, error) {
	if err := ctx.Err(); err != nil {
		return entities.FeedbackRecord{}, err
	}
	if audio.Empty() {
		return entities.FeedbackRecord{}, errors.New("audio recording is empty")
	}

	transcription := referenceText
	if transcription == "" {
		transcription = "Hello, nice to meet you."
	}

	return entities.FeedbackRecord{
		Score:         78,
		Transcription: transcription,
		Issues:        []string{"Final consonants are slightly clipped."},
		Suggestions:   []string{"Hold the last sound of each word a little longer."},
	}, nil
}

// Converse implements repositories.Coach
func (MockCoach) Converse(ctx context.Context, history []entities.ChatMessage, text string, audio *entities.AudioCapture) (entities.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return entities.ChatMessage{}, err
	}

	var reply string
	switch {
	case audio != nil && !audio.Empty():
		reply = "Thanks for the recording! Your rhythm sounds good. Try linking the words together a bit more."
	case strings.TrimSpace(text) != "":
		reply = fmt.Sprintf("Nice! You said %q. Can you tell me a bit more?", text)
	default:
		reply = EmptyReplyText
	}

	return entities.NewModelMessage(reply), nil
}
